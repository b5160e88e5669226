package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/lock"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GoalProgressService 处理用户目标的增删查，以及按完成的会话推进目标进度
type GoalProgressService struct {
	DB       *gorm.DB
	GoalRepo *repository.GoalRepository
	Sessions *repository.QuizSessionRepository
	Locker   lock.Locker
	Sink     ActivitySink

	log *zap.Logger
	now func() time.Time
}

func NewGoalProgressService(
	db *gorm.DB,
	goalRepo *repository.GoalRepository,
	sessions *repository.QuizSessionRepository,
	locker lock.Locker,
	sink ActivitySink,
	log *zap.Logger,
) *GoalProgressService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GoalProgressService{
		DB:       db,
		GoalRepo: goalRepo,
		Sessions: sessions,
		Locker:   locker,
		Sink:     sink,
		log:      log,
		now:      time.Now,
	}
}

// CreateGoalRequest 创建目标的请求结构
type CreateGoalRequest struct {
	Title       string             `json:"title" binding:"max=255"`
	Category    model.GoalCategory `json:"category" binding:"required,oneof=questions quizzes study_time accuracy"`
	TargetValue int                `json:"targetValue" binding:"required,min=1"`
	EndsAt      time.Time          `json:"endsAt" binding:"required"`
}

// CreateGoal 创建新的目标
func (s *GoalProgressService) CreateGoal(ctx context.Context, userID uint, req CreateGoalRequest) (*model.UserGoal, error) {
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown goal category %q", util.ErrInvalidInput, req.Category)
	}
	if req.TargetValue <= 0 {
		return nil, fmt.Errorf("%w: targetValue must be positive", util.ErrInvalidInput)
	}
	if req.Category == model.GoalAccuracy && req.TargetValue > 100 {
		return nil, fmt.Errorf("%w: accuracy target must not exceed 100", util.ErrInvalidInput)
	}
	if !req.EndsAt.After(s.now()) {
		return nil, fmt.Errorf("%w: endsAt must be in the future", util.ErrInvalidInput)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("%s %d", req.Category, req.TargetValue)
	}

	goal := &model.UserGoal{
		UserID:      userID,
		Title:       title,
		Category:    req.Category,
		TargetValue: req.TargetValue,
		EndsAt:      req.EndsAt,
	}
	if err := s.GoalRepo.Create(ctx, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

// GetUserGoals 获取用户的所有目标
func (s *GoalProgressService) GetUserGoals(ctx context.Context, userID uint) ([]model.UserGoal, error) {
	return s.GoalRepo.FindByUserID(ctx, userID)
}

// GetGoalByID 获取特定ID的目标
func (s *GoalProgressService) GetGoalByID(ctx context.Context, userID, goalID uint) (*model.UserGoal, error) {
	goal, err := s.GoalRepo.FindByIDAndUserID(ctx, goalID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrGoalNotFound
		}
		return nil, err
	}
	return goal, nil
}

// DeleteGoal 删除目标
func (s *GoalProgressService) DeleteGoal(ctx context.Context, userID, goalID uint) error {
	deleted, err := s.GoalRepo.Delete(ctx, goalID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return util.ErrGoalNotFound
	}
	return nil
}

// ApplyCompletedSession 将会话摘要计入用户未完成且未过期的目标。
// summary.SessionID 非空时同一会话只计入一次，返回本次达成的目标。
func (s *GoalProgressService) ApplyCompletedSession(ctx context.Context, userID uint, summary model.SessionSummary) ([]model.UserGoal, error) {
	unlock, err := s.Locker.Lock(ctx, fmt.Sprintf("goals:%d", userID))
	if err != nil {
		return nil, fmt.Errorf("lock goals of user %d: %w", userID, err)
	}
	defer unlock()

	now := s.now()
	var achieved []model.UserGoal
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if summary.SessionID != "" {
			claimed, err := s.Sessions.WithTx(tx).ClaimGoalsApplied(ctx, summary.SessionID, now)
			if err != nil {
				return err
			}
			if !claimed {
				s.log.Debug("session already applied to goals", zap.String("sessionId", summary.SessionID))
				return nil
			}
		}

		goals, err := s.GoalRepo.WithTx(tx).FindActive(ctx, userID, now)
		if err != nil {
			return err
		}

		for i := range goals {
			goal := &goals[i]
			if goal.Expired(now) || goal.IsCompleted {
				continue
			}
			if !advanceGoal(goal, summary, now) {
				continue
			}
			if err := s.GoalRepo.WithTx(tx).UpdateProgress(ctx, goal); err != nil {
				return fmt.Errorf("update goal %d: %w", goal.ID, err)
			}
			if goal.IsCompleted {
				achieved = append(achieved, *goal)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, goal := range achieved {
		s.emitAchieved(ctx, goal)
	}
	return achieved, nil
}

func (s *GoalProgressService) emitAchieved(ctx context.Context, goal model.UserGoal) {
	s.log.Info("goal achieved",
		zap.Uint("goalId", goal.ID),
		zap.Uint("userId", goal.UserID),
		zap.String("category", string(goal.Category)))
	if s.Sink == nil {
		return
	}
	s.Sink.Emit(ctx, model.ActivityEvent{
		Type:       model.ActivityGoalAchieved,
		UserID:     goal.UserID,
		OccurredAt: s.now(),
		Data: map[string]any{
			"goalId":       goal.ID,
			"title":        goal.Title,
			"category":     goal.Category,
			"targetValue":  goal.TargetValue,
			"currentValue": goal.CurrentValue,
		},
	})
}

// advanceGoal 计数类目标累加并截断到 [0, target]，accuracy 直接替换为最近一次的正确率
func advanceGoal(goal *model.UserGoal, summary model.SessionSummary, now time.Time) bool {
	var next int
	switch goal.Category {
	case model.GoalQuestions:
		next = clamp(goal.CurrentValue+summary.QuestionsAnswered, 0, goal.TargetValue)
	case model.GoalQuizzes:
		next = clamp(goal.CurrentValue+summary.QuizzesCompleted, 0, goal.TargetValue)
	case model.GoalStudyTime:
		next = clamp(goal.CurrentValue+summary.StudyTimeMinutes, 0, goal.TargetValue)
	case model.GoalAccuracy:
		next = clamp(summary.Accuracy, 0, 100)
	default:
		return false
	}

	changed := next != goal.CurrentValue
	goal.CurrentValue = next
	if next >= goal.TargetValue && !goal.IsCompleted {
		goal.IsCompleted = true
		goal.CompletedAt = &now
		changed = true
	}
	return changed
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
