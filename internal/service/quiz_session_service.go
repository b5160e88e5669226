package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/lock"
	"quiz_engine_backend/pkg/monitoring"
	"quiz_engine_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// Dispatcher 投递会话完成任务，不等待执行结果
type Dispatcher interface {
	Enqueue(ctx context.Context, job model.CompletionJob) error
}

// QuizSettings 可热更新的出题与计时参数
type QuizSettings struct {
	SecondsPerQuestion   int
	DefaultQuestionCount int
	MaxQuestionCount     int
	TimeoutScoring       string
	AbandonAfter         time.Duration
}

func SettingsFromConfig(c config.QuizConfig) QuizSettings {
	return QuizSettings{
		SecondsPerQuestion:   c.SecondsPerQuestion,
		DefaultQuestionCount: c.DefaultQuestionCount,
		MaxQuestionCount:     c.MaxQuestionCount,
		TimeoutScoring:       c.TimeoutScoring,
		AbandonAfter:         time.Duration(c.AbandonAfterHours) * time.Hour,
	}
}

// QuizSessionService 管理会话生命周期、作答与计分
type QuizSessionService struct {
	DB         *gorm.DB
	Sessions   *repository.QuizSessionRepository
	Attempts   *repository.QuizAttemptRepository
	Bank       QuestionBank
	Marks      MarkStore
	Selector   *QuestionSelector
	Recorder   *AttemptRecorder
	Locker     lock.Locker
	Dispatcher Dispatcher

	log      *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
	settings QuizSettings
}

func NewQuizSessionService(
	db *gorm.DB,
	sessions *repository.QuizSessionRepository,
	attempts *repository.QuizAttemptRepository,
	bank QuestionBank,
	marks MarkStore,
	selector *QuestionSelector,
	recorder *AttemptRecorder,
	locker lock.Locker,
	dispatcher Dispatcher,
	settings QuizSettings,
	log *zap.Logger,
) *QuizSessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuizSessionService{
		DB:         db,
		Sessions:   sessions,
		Attempts:   attempts,
		Bank:       bank,
		Marks:      marks,
		Selector:   selector,
		Recorder:   recorder,
		Locker:     locker,
		Dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
		settings:   settings,
	}
}

func (s *QuizSessionService) Settings() QuizSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings 配置热更新回调
func (s *QuizSessionService) UpdateSettings(cfg *config.Config) {
	s.mu.Lock()
	s.settings = SettingsFromConfig(cfg.Quiz)
	s.mu.Unlock()
	s.log.Info("quiz settings reloaded",
		zap.Int("secondsPerQuestion", cfg.Quiz.SecondsPerQuestion),
		zap.String("timeoutScoring", cfg.Quiz.TimeoutScoring))
}

// CreateSessionRequest 创建会话的请求结构
type CreateSessionRequest struct {
	Mode              model.QuizMode           `json:"mode" binding:"required,oneof=tutor practice"`
	Timing            model.QuizTiming         `json:"timing" binding:"required,oneof=timed untimed"`
	QuestionType      model.QuestionTypeFilter `json:"questionType" binding:"omitempty,oneof=all unused needs_review marked mastered"`
	CategorySelection model.CategorySelection  `json:"categorySelection" binding:"omitempty,oneof=all ap_only cp_only custom"`
	CategoryIDs       []uint                   `json:"categoryIds"`
	QuestionCount     int                      `json:"questionCount" binding:"omitempty,min=1"`
	ShuffleQuestions  bool                     `json:"shuffleQuestions"`
	ShuffleAnswers    bool                     `json:"shuffleAnswers"`
	AllowPartial      bool                     `json:"allowPartial"`
}

// CreateSessionResult Partial 非空表示题目不足但已按可用数量创建
type CreateSessionResult struct {
	Session     *model.QuizSession             `json:"session"`
	QuestionIDs []uint                         `json:"questionIds"`
	Partial     *util.PartialFulfillmentError `json:"-"`
}

// SubmitAttemptRequest 提交作答的请求结构
type SubmitAttemptRequest struct {
	QuestionID       uint `json:"questionId" binding:"required"`
	SelectedAnswerID uint `json:"selectedAnswerId" binding:"required"`
	TimeSpent        int  `json:"timeSpent" binding:"min=0"`
}

func (s *QuizSessionService) CreateSession(ctx context.Context, userID uint, req CreateSessionRequest) (res *CreateSessionResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "QuizSessionService.CreateSession",
		attribute.Int64("user.id", int64(userID)),
		attribute.String("quiz.mode", string(req.Mode)))
	defer func() { tracing.EndSpan(span, err) }()

	settings := s.Settings()
	if err = validateCreateRequest(&req, settings); err != nil {
		return nil, err
	}

	ids, partial, err := s.Selector.SelectQuestions(ctx, userID, SelectionFilter{
		QuestionType:      req.QuestionType,
		CategorySelection: req.CategorySelection,
		CategoryIDs:       req.CategoryIDs,
		Shuffle:           req.ShuffleQuestions,
	}, req.QuestionCount)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, util.ErrNoQuestions
	}

	res = &CreateSessionResult{QuestionIDs: ids}
	if partial {
		res.Partial = &util.PartialFulfillmentError{Requested: req.QuestionCount, Available: len(ids)}
		if !req.AllowPartial {
			return nil, res.Partial
		}
	}

	session := &model.QuizSession{
		UserID:             userID,
		Mode:               req.Mode,
		Timing:             req.Timing,
		QuestionType:       req.QuestionType,
		CategorySelection:  req.CategorySelection,
		ShuffleQuestions:   req.ShuffleQuestions,
		ShuffleAnswers:     req.ShuffleAnswers,
		TotalQuestions:     len(ids),
		RequestedQuestions: req.QuestionCount,
		Status:             model.SessionNotStarted,
	}
	if req.CategorySelection == model.CategoryCustom {
		raw, err := json.Marshal(req.CategoryIDs)
		if err != nil {
			return nil, fmt.Errorf("encode category ids: %w", err)
		}
		session.CategoryIDs = datatypes.JSON(raw)
	}
	if limit := ComputeTotalBudget(req.Timing, len(ids), settings.SecondsPerQuestion); limit != nil {
		remaining := *limit
		session.SecondsPerQuestion = settings.SecondsPerQuestion
		session.TotalTimeLimit = limit
		session.TimeRemaining = &remaining
	}
	for i, id := range ids {
		session.Questions = append(session.Questions, model.QuizSessionQuestion{QuestionID: id, Position: i + 1})
	}

	if err = s.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	monitoring.SessionCounter.WithLabelValues(string(model.SessionNotStarted)).Inc()
	s.log.Info("quiz session created",
		zap.String("sessionId", session.ID),
		zap.Uint("userId", userID),
		zap.Int("questions", len(ids)),
		zap.Bool("partial", partial))

	res.Session = session
	return res, nil
}

func validateCreateRequest(req *CreateSessionRequest, settings QuizSettings) error {
	switch req.Mode {
	case model.ModeTutor, model.ModePractice:
	default:
		return fmt.Errorf("%w: unknown mode %q", util.ErrInvalidInput, req.Mode)
	}
	switch req.Timing {
	case model.TimingTimed, model.TimingUntimed:
	default:
		return fmt.Errorf("%w: unknown timing %q", util.ErrInvalidInput, req.Timing)
	}
	if req.QuestionType == "" {
		req.QuestionType = model.QuestionTypeAll
	}
	if req.CategorySelection == "" {
		req.CategorySelection = model.CategoryAll
	}
	if req.CategorySelection != model.CategoryCustom {
		req.CategoryIDs = nil
	}
	if req.QuestionCount == 0 {
		req.QuestionCount = settings.DefaultQuestionCount
	}
	if req.QuestionCount < 1 {
		return fmt.Errorf("%w: questionCount must be positive", util.ErrInvalidInput)
	}
	if settings.MaxQuestionCount > 0 && req.QuestionCount > settings.MaxQuestionCount {
		return fmt.Errorf("%w: questionCount must not exceed %d", util.ErrInvalidInput, settings.MaxQuestionCount)
	}
	return nil
}

// GetSession 返回会话详情；超时的计时会话在读取时结束
func (s *QuizSessionService) GetSession(ctx context.Context, sessionID string, userID uint) (*model.QuizSessionView, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if Expired(session, now) {
		if session, _, err = s.expireOne(ctx, sessionID, now); err != nil {
			return nil, err
		}
	}

	questions, err := s.Sessions.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.TimeRemaining = RemainingAt(session, now)
	view := &model.QuizSessionView{QuizSession: session}
	for _, q := range questions {
		view.QuestionIDs = append(view.QuestionIDs, q.QuestionID)
	}
	if !session.IsTerminal() {
		view.NextQuestionID = nextUnanswered(questions, attempts)
	}
	return view, nil
}

func (s *QuizSessionService) ListSessions(ctx context.Context, userID uint, status model.SessionStatus, page, limit int) ([]model.QuizSession, int64, error) {
	switch status {
	case "", model.SessionNotStarted, model.SessionInProgress, model.SessionPaused, model.SessionCompleted, model.SessionAbandoned:
	default:
		return nil, 0, fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, status)
	}
	return s.Sessions.ListByUser(ctx, userID, status, page, limit)
}

// GetQuestionView 返回会话中的一道题，开启 shuffleAnswers 时选项顺序固定打乱
func (s *QuizSessionService) GetQuestionView(ctx context.Context, sessionID string, userID, questionID uint) (*model.QuestionView, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Sessions.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	position := positionOf(questions, questionID)
	if position == 0 {
		return nil, util.ErrQuestionNotInSession
	}

	question, err := s.getQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	answered, err := s.Recorder.AlreadyAnswered(ctx, sessionID, questionID)
	if err != nil {
		return nil, err
	}

	options := question.Options
	if session.ShuffleAnswers {
		options = ShuffleOptions(session.ID, questionID, options)
	}
	return &model.QuestionView{
		SessionID:  session.ID,
		Position:   position,
		QuestionID: question.ID,
		Stem:       question.Stem,
		Difficulty: question.Difficulty,
		Category:   question.CategoryName,
		Options:    options,
		Answered:   answered,
	}, nil
}

// SubmitAttempt 记录一次作答并更新实时得分
func (s *QuizSessionService) SubmitAttempt(ctx context.Context, sessionID string, userID uint, req SubmitAttemptRequest) (res *model.AttemptResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "QuizSessionService.SubmitAttempt",
		attribute.String("quiz.session_id", sessionID),
		attribute.Int64("quiz.question_id", int64(req.QuestionID)))
	defer func() { tracing.EndSpan(span, err) }()

	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch session.Status {
	case model.SessionCompleted, model.SessionAbandoned:
		return nil, util.ErrSessionClosed
	case model.SessionPaused:
		return nil, util.ErrSessionPaused
	}
	if Expired(session, now) {
		if err = s.forceComplete(ctx, session, model.EndReasonTimeExpired, now); err != nil {
			return nil, err
		}
		return nil, util.ErrTimeExpired
	}

	questions, err := s.Sessions.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if positionOf(questions, req.QuestionID) == 0 {
		return nil, util.ErrQuestionNotInSession
	}

	answered, err := s.Recorder.AlreadyAnswered(ctx, sessionID, req.QuestionID)
	if err != nil {
		return nil, err
	}
	if answered {
		return nil, util.ErrAlreadyAnswered
	}

	question, err := s.getQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}
	in := AttemptInput{
		SessionID:        sessionID,
		UserID:           userID,
		QuestionID:       req.QuestionID,
		SelectedAnswerID: req.SelectedAnswerID,
		TimeSpent:        req.TimeSpent,
	}
	if err = s.Recorder.Validate(in, question); err != nil {
		return nil, err
	}

	var attempt *model.QuizAttempt
	var attempts []model.QuizAttempt
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.Recorder.Record(ctx, tx, in, question, now)
		if err != nil {
			return err
		}
		attempt = a

		attempts, err = s.Attempts.WithTx(tx).ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		applyProgress(session, attempts, now)
		return s.Sessions.WithTx(tx).Save(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptCounter.WithLabelValues(strconv.FormatBool(attempt.IsCorrect)).Inc()

	complete := session.Status == model.SessionCompleted
	res = &model.AttemptResult{
		AttemptID:         attempt.ID,
		IsCorrect:         attempt.IsCorrect,
		CorrectAnswerID:   question.CorrectOptionID,
		IsSessionComplete: complete,
		SessionScore:      session.Score,
		QuestionNumber:    len(attempts),
		TotalQuestions:    session.TotalQuestions,
		TimeRemaining:     RemainingAt(session, now),
	}
	if session.Mode == model.ModeTutor {
		res.Explanation = question.Explanation
	}
	if complete {
		monitoring.SessionCounter.WithLabelValues(string(model.SessionCompleted)).Inc()
		s.dispatchCompletion(ctx, session, attempts)
	} else {
		res.NextQuestionID = nextUnanswered(questions, attempts)
	}
	return res, nil
}

// PauseSession 暂停计时，保存剩余时间
func (s *QuizSessionService) PauseSession(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.SessionCompleted, model.SessionAbandoned:
		return nil, util.ErrSessionClosed
	case model.SessionInProgress:
	default:
		return nil, util.ErrSessionNotRunning
	}

	now := s.now()
	if Expired(session, now) {
		if err := s.forceComplete(ctx, session, model.EndReasonTimeExpired, now); err != nil {
			return nil, err
		}
		return session, util.ErrTimeExpired
	}

	session.TimeRemaining = RemainingAt(session, now)
	session.PausedAt = &now
	session.Status = model.SessionPaused
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	monitoring.SessionCounter.WithLabelValues(string(model.SessionPaused)).Inc()
	return session, nil
}

// ResumeSession 恢复计时，起点重新锚定为 now-已用时间
func (s *QuizSessionService) ResumeSession(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.SessionCompleted, model.SessionAbandoned:
		return nil, util.ErrSessionClosed
	case model.SessionPaused:
	default:
		return nil, util.ErrSessionNotPaused
	}

	now := s.now()
	if session.IsTimed() && session.TotalTimeLimit != nil && session.TimeRemaining != nil && session.QuizStartedAt != nil {
		start := ReanchorStart(*session.TotalTimeLimit, *session.TimeRemaining, now)
		session.QuizStartedAt = &start
	}
	session.PausedAt = nil
	session.Status = model.SessionInProgress
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	monitoring.SessionCounter.WithLabelValues("resumed").Inc()
	return session, nil
}

// AbandonSession 放弃会话，已有作答保留，不触发统计任务
func (s *QuizSessionService) AbandonSession(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, util.ErrSessionClosed
	}

	if err := s.abandon(ctx, session, model.EndReasonUser, s.now()); err != nil {
		return nil, err
	}
	return session, nil
}

// TimeoutSession 客户端计时结束时主动结算
func (s *QuizSessionService) TimeoutSession(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.IsTerminal() {
		return nil, util.ErrSessionClosed
	}
	if !session.IsTimed() {
		return nil, fmt.Errorf("%w: session is not timed", util.ErrInvalidState)
	}
	if session.Status != model.SessionInProgress && session.Status != model.SessionPaused {
		return nil, util.ErrSessionNotRunning
	}

	if err := s.forceComplete(ctx, session, model.EndReasonTimeExpired, s.now()); err != nil {
		return nil, err
	}
	return session, nil
}

// ExpireOverdueSessions 结算所有已超时的计时会话，返回处理数量
func (s *QuizSessionService) ExpireOverdueSessions(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.Sessions.FindOverdue(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		_, done, err := s.expireOne(ctx, candidates[i].ID, now)
		if err != nil {
			s.log.Warn("expire session failed", zap.String("sessionId", candidates[i].ID), zap.Error(err))
			continue
		}
		if done {
			expired++
		}
	}
	return expired, nil
}

// AbandonStaleSessions 放弃长时间未活动的未开始或已暂停会话
func (s *QuizSessionService) AbandonStaleSessions(ctx context.Context) (int, error) {
	settings := s.Settings()
	if settings.AbandonAfter <= 0 {
		return 0, nil
	}

	now := s.now()
	cutoff := now.Add(-settings.AbandonAfter)
	statuses := []model.SessionStatus{model.SessionNotStarted, model.SessionPaused}
	candidates, err := s.Sessions.FindStale(ctx, statuses, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, c := range candidates {
		done, err := s.abandonIfStale(ctx, c.ID, cutoff, now)
		if err != nil {
			s.log.Warn("abandon stale session failed", zap.String("sessionId", c.ID), zap.Error(err))
			continue
		}
		if done {
			abandoned++
		}
	}
	return abandoned, nil
}

func (s *QuizSessionService) abandonIfStale(ctx context.Context, sessionID string, cutoff, now time.Time) (bool, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	defer unlock()

	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session.Status != model.SessionNotStarted && session.Status != model.SessionPaused {
		return false, nil
	}
	if !session.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	return true, s.abandon(ctx, session, model.EndReasonStale, now)
}

// GetSessionResult 基于本次会话的作答生成汇总，不读取全局统计
func (s *QuizSessionService) GetSessionResult(ctx context.Context, sessionID string, userID uint) (*model.SessionResult, error) {
	view, err := s.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	session := view.QuizSession

	questions, err := s.Sessions.Questions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uint]model.QuizAttempt, len(attempts))
	for _, a := range attempts {
		byQuestion[a.QuestionID] = a
	}

	result := &model.SessionResult{
		SessionID:      session.ID,
		Status:         session.Status,
		EndReason:      session.EndReason,
		TotalQuestions: session.TotalQuestions,
		Attempted:      len(attempts),
		Correct:        session.CorrectAnswers,
		Score:          session.Score,
		TotalTimeSpent: session.TotalTimeSpent,
		Questions:      make([]model.QuestionReview, 0, len(questions)),
	}

	categories := map[uint]*model.BreakdownItem{}
	difficulties := map[string]*model.BreakdownItem{}
	reveal := session.IsTerminal() || session.Mode == model.ModeTutor

	for _, q := range questions {
		info, err := s.getQuestion(ctx, q.QuestionID)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			return nil, err
		}

		row := model.QuestionReview{QuestionID: q.QuestionID, Position: q.Position}
		a, attempted := byQuestion[q.QuestionID]
		if attempted {
			at := a.AttemptedAt
			row.Attempted = true
			row.SelectedAnswerID = a.SelectedAnswerID
			row.IsCorrect = a.IsCorrect
			row.TimeSpent = a.TimeSpent
			row.AttemptedAt = &at
		}
		if info != nil {
			if attempted || session.IsTerminal() {
				row.CorrectAnswerID = info.CorrectOptionID
				if reveal {
					row.Explanation = info.Explanation
				}
			}
			if attempted {
				addBreakdown(categories, info.CategoryID, strconv.FormatUint(uint64(info.CategoryID), 10), info.CategoryName, a.IsCorrect)
				addBreakdown(difficulties, string(info.Difficulty), string(info.Difficulty), "", a.IsCorrect)
			}
		}
		result.Questions = append(result.Questions, row)
	}

	result.ByCategory = sortedBreakdown(categories, func(a, b uint) bool { return a < b })
	result.ByDifficulty = sortedBreakdown(difficulties, func(a, b string) bool {
		return difficultyRank(model.Difficulty(a)) < difficultyRank(model.Difficulty(b)) ||
			(difficultyRank(model.Difficulty(a)) == difficultyRank(model.Difficulty(b)) && a < b)
	})
	return result, nil
}

// MarkQuestion 标记题目，供 marked 筛选使用
func (s *QuizSessionService) MarkQuestion(ctx context.Context, userID, questionID uint) error {
	if _, err := s.getQuestion(ctx, questionID); err != nil {
		return err
	}
	return s.Marks.Mark(ctx, userID, questionID)
}

func (s *QuizSessionService) UnmarkQuestion(ctx context.Context, userID, questionID uint) error {
	return s.Marks.Unmark(ctx, userID, questionID)
}

func (s *QuizSessionService) lockSession(ctx context.Context, sessionID string) (func(), error) {
	unlock, err := s.Locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	return unlock, nil
}

func (s *QuizSessionService) loadOwned(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error) {
	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSessionNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, util.ErrNotSessionOwner
	}
	return session, nil
}

func (s *QuizSessionService) getQuestion(ctx context.Context, questionID uint) (*model.QuestionInfo, error) {
	q, err := s.Bank.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question %d: %w", questionID, err)
	}
	return q, nil
}

// expireOne 加锁后重新读取，仍超时则结算
func (s *QuizSessionService) expireOne(ctx context.Context, sessionID string, now time.Time) (*model.QuizSession, bool, error) {
	unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	session, err := s.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if !Expired(session, now) {
		return session, false, nil
	}
	if err := s.forceComplete(ctx, session, model.EndReasonTimeExpired, now); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// forceComplete 按已有作答结算，未作答的题目不计为错误
func (s *QuizSessionService) forceComplete(ctx context.Context, session *model.QuizSession, reason string, now time.Time) error {
	scoring := s.Settings().TimeoutScoring

	var attempts []model.QuizAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		attempts, err = s.Attempts.WithTx(tx).ListBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		applyProgress(session, attempts, now)
		if scoring == config.TimeoutScoringTotal {
			session.Score = Percent(session.CorrectAnswers, session.TotalQuestions)
		}
		if session.Status != model.SessionCompleted {
			markCompleted(session, reason, now)
		}
		if reason == model.EndReasonTimeExpired && session.IsTimed() {
			zero := 0
			session.TimeRemaining = &zero
		}
		return s.Sessions.WithTx(tx).Save(ctx, session)
	})
	if err != nil {
		return fmt.Errorf("complete session %s: %w", session.ID, err)
	}

	monitoring.SessionCounter.WithLabelValues(string(model.SessionCompleted)).Inc()
	s.log.Info("quiz session force completed",
		zap.String("sessionId", session.ID),
		zap.String("reason", reason),
		zap.Int("attempted", len(attempts)),
		zap.Int("score", session.Score))

	if len(attempts) > 0 {
		s.dispatchCompletion(ctx, session, attempts)
	}
	return nil
}

func (s *QuizSessionService) abandon(ctx context.Context, session *model.QuizSession, reason string, now time.Time) error {
	if session.IsTimed() && session.Status == model.SessionInProgress {
		session.TimeRemaining = RemainingAt(session, now)
	}
	session.Status = model.SessionAbandoned
	session.AbandonedAt = &now
	session.PausedAt = nil
	session.EndReason = reason
	if err := s.Sessions.Save(ctx, session); err != nil {
		return err
	}
	monitoring.SessionCounter.WithLabelValues(string(model.SessionAbandoned)).Inc()
	return nil
}

// dispatchCompletion 投递统计与目标任务，失败只记录日志
func (s *QuizSessionService) dispatchCompletion(ctx context.Context, session *model.QuizSession, attempts []model.QuizAttempt) {
	if s.Dispatcher == nil {
		return
	}
	job := model.CompletionJob{
		SessionID:   session.ID,
		UserID:      session.UserID,
		QuestionIDs: attemptedQuestionIDs(attempts),
		Summary:     summaryOf(session, attempts),
	}
	if err := s.Dispatcher.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		monitoring.JobCounter.WithLabelValues("enqueue", "error").Inc()
		s.log.Error("enqueue completion job failed", zap.String("sessionId", session.ID), zap.Error(err))
	}
}

// applyProgress 以作答日志为准重新计算会话进度与得分
func applyProgress(session *model.QuizSession, attempts []model.QuizAttempt, now time.Time) {
	correct, spent := 0, 0
	for _, a := range attempts {
		if a.IsCorrect {
			correct++
		}
		spent += a.TimeSpent
	}

	session.CurrentQuestionIndex = len(attempts)
	session.CorrectAnswers = correct
	session.TotalTimeSpent = spent
	session.Score = Percent(correct, len(attempts))

	if session.Status == model.SessionNotStarted && len(attempts) > 0 {
		session.Status = model.SessionInProgress
		if session.IsTimed() && session.QuizStartedAt == nil {
			started := now
			session.QuizStartedAt = &started
		}
	}
	if session.Status == model.SessionInProgress && len(attempts) >= session.TotalQuestions {
		markCompleted(session, model.EndReasonAllAnswered, now)
	}
}

func markCompleted(session *model.QuizSession, reason string, now time.Time) {
	session.TimeRemaining = RemainingAt(session, now)
	session.Status = model.SessionCompleted
	session.CompletedAt = &now
	session.PausedAt = nil
	session.EndReason = reason
}

func summaryOf(session *model.QuizSession, attempts []model.QuizAttempt) model.SessionSummary {
	correct, spent := 0, 0
	for _, a := range attempts {
		if a.IsCorrect {
			correct++
		}
		spent += a.TimeSpent
	}
	return model.SessionSummary{
		SessionID:         session.ID,
		QuestionsAnswered: len(attempts),
		QuizzesCompleted:  1,
		StudyTimeMinutes:  int(math.Round(float64(spent) / 60)),
		Accuracy:          Percent(correct, len(attempts)),
	}
}

func attemptedQuestionIDs(attempts []model.QuizAttempt) []uint {
	seen := make(map[uint]struct{}, len(attempts))
	ids := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.QuestionID]; ok {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		ids = append(ids, a.QuestionID)
	}
	return ids
}

func positionOf(questions []model.QuizSessionQuestion, questionID uint) int {
	for _, q := range questions {
		if q.QuestionID == questionID {
			return q.Position
		}
	}
	return 0
}

func nextUnanswered(questions []model.QuizSessionQuestion, attempts []model.QuizAttempt) *uint {
	answered := make(map[uint]struct{}, len(attempts))
	for _, a := range attempts {
		answered[a.QuestionID] = struct{}{}
	}
	for _, q := range questions {
		if _, ok := answered[q.QuestionID]; !ok {
			id := q.QuestionID
			return &id
		}
	}
	return nil
}

func addBreakdown[K comparable](m map[K]*model.BreakdownItem, key K, label, name string, correct bool) {
	item, ok := m[key]
	if !ok {
		item = &model.BreakdownItem{Key: label, Label: name}
		m[key] = item
	}
	item.Attempted++
	if correct {
		item.Correct++
	}
	item.Accuracy = Percent(item.Correct, item.Attempted)
}

func sortedBreakdown[K comparable](m map[K]*model.BreakdownItem, less func(a, b K) bool) []model.BreakdownItem {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	out := make([]model.BreakdownItem, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m[k])
	}
	return out
}

func difficultyRank(d model.Difficulty) int {
	switch d {
	case model.DifficultyEasy:
		return 0
	case model.DifficultyMedium:
		return 1
	case model.DifficultyHard:
		return 2
	}
	return 3
}
