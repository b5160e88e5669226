package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/testutil"
	"quiz_engine_backend/pkg/lock"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []model.CompletionJob
}

func (d *recordingDispatcher) Enqueue(_ context.Context, job model.CompletionJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) Jobs() []model.CompletionJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.CompletionJob(nil), d.jobs...)
}

type testEnv struct {
	db         *gorm.DB
	sessions   *QuizSessionService
	analytics  *AnalyticsAggregator
	goals      *GoalProgressService
	dispatcher *recordingDispatcher
	sink       *testutil.RecordingSink
	category   model.Category
	clock      time.Time
}

func testQuizSettings() QuizSettings {
	return QuizSettings{
		SecondsPerQuestion:   60,
		DefaultQuestionCount: 10,
		MaxQuestionCount:     100,
		TimeoutScoring:       config.TimeoutScoringAttempted,
		AbandonAfter:         24 * time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	sessionRepo := repository.NewQuizSessionRepository(db)
	attemptRepo := repository.NewQuizAttemptRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	locker := lock.NewMemoryLocker()

	env := &testEnv{
		db:         db,
		dispatcher: &recordingDispatcher{},
		sink:       &testutil.RecordingSink{},
		category:   testutil.SeedCategory(t, db, "Biology", model.CategoryKindAP),
		clock:      time.Now().UTC().Truncate(time.Second),
	}

	env.sessions = NewQuizSessionService(
		db,
		sessionRepo,
		attemptRepo,
		questionRepo,
		questionRepo,
		NewQuestionSelector(questionRepo, attemptRepo, questionRepo),
		NewAttemptRecorder(attemptRepo),
		locker,
		env.dispatcher,
		testQuizSettings(),
		nil,
	)
	env.sessions.now = env.now

	env.analytics = NewAnalyticsAggregator(
		attemptRepo,
		repository.NewQuestionAnalyticsRepository(db),
		AnalyticsSettings{BatchSize: 50, BatchPause: time.Millisecond, Concurrency: 4},
		nil,
	)
	env.goals = NewGoalProgressService(db, repository.NewGoalRepository(db), sessionRepo, locker, env.sink, nil)
	env.goals.now = env.now
	return env
}

func (e *testEnv) now() time.Time { return e.clock }

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

func (e *testEnv) createSession(t *testing.T, userID uint, req CreateSessionRequest) *CreateSessionResult {
	t.Helper()
	if req.Mode == "" {
		req.Mode = model.ModePractice
	}
	if req.Timing == "" {
		req.Timing = model.TimingUntimed
	}
	res, err := e.sessions.CreateSession(context.Background(), userID, req)
	require.NoError(t, err)
	return res
}

func (e *testEnv) answer(t *testing.T, sessionID string, userID uint, q model.Question, correct bool) *model.AttemptResult {
	t.Helper()
	selected := testutil.WrongOption(q)
	if correct {
		selected = testutil.CorrectOption(q)
	}
	res, err := e.sessions.SubmitAttempt(context.Background(), sessionID, userID, SubmitAttemptRequest{
		QuestionID:       q.ID,
		SelectedAnswerID: selected,
		TimeSpent:        30,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) attemptCount(t *testing.T, sessionID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.QuizAttempt{}).Where("quiz_session_id = ?", sessionID).Count(&n).Error)
	return n
}

func (e *testEnv) reload(t *testing.T, sessionID string) *model.QuizSession {
	t.Helper()
	s, err := e.sessions.Sessions.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	return s
}
