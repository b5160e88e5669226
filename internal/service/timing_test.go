package service

import (
	"testing"
	"time"

	"quiz_engine_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestComputeTotalBudget(t *testing.T) {
	assert.Nil(t, ComputeTotalBudget(model.TimingUntimed, 10, 90))

	budget := ComputeTotalBudget(model.TimingTimed, 10, 90)
	require.NotNil(t, budget)
	assert.Equal(t, 900, *budget)
}

func TestRemainingOnResume(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"not yet elapsed", start, 600},
		{"partially elapsed", start.Add(250 * time.Second), 350},
		{"exactly elapsed", start.Add(600 * time.Second), 0},
		{"overrun clamps to zero", start.Add(time.Hour), 0},
		{"clock skew", start.Add(-time.Minute), 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemainingOnResume(600, start, tt.now))
		})
	}
}

func TestReanchorStart(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	start := ReanchorStart(600, 450, now)
	assert.Equal(t, now.Add(-150*time.Second), start)
	assert.Equal(t, 450, RemainingOnResume(600, start, now))

	assert.Equal(t, now, ReanchorStart(600, 700, now))
}

func TestRemainingAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-100 * time.Second)

	assert.Nil(t, RemainingAt(&model.QuizSession{Timing: model.TimingUntimed}, now))

	notStarted := &model.QuizSession{Timing: model.TimingTimed, Status: model.SessionNotStarted, TotalTimeLimit: intPtr(300)}
	assert.Equal(t, 300, *RemainingAt(notStarted, now))

	running := &model.QuizSession{Timing: model.TimingTimed, Status: model.SessionInProgress, TotalTimeLimit: intPtr(300), QuizStartedAt: &started}
	assert.Equal(t, 200, *RemainingAt(running, now))

	paused := &model.QuizSession{Timing: model.TimingTimed, Status: model.SessionPaused, TotalTimeLimit: intPtr(300), TimeRemaining: intPtr(42), QuizStartedAt: &started}
	assert.Equal(t, 42, *RemainingAt(paused, now.Add(time.Hour)))

	done := &model.QuizSession{Timing: model.TimingTimed, Status: model.SessionCompleted, TotalTimeLimit: intPtr(300), TimeRemaining: intPtr(0), QuizStartedAt: &started}
	assert.Equal(t, 0, *RemainingAt(done, now))
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-301 * time.Second)

	s := &model.QuizSession{Timing: model.TimingTimed, Status: model.SessionInProgress, TotalTimeLimit: intPtr(300), QuizStartedAt: &started}
	assert.True(t, Expired(s, now))

	s.Status = model.SessionPaused
	assert.False(t, Expired(s, now))

	s.Status = model.SessionInProgress
	s.Timing = model.TimingUntimed
	assert.False(t, Expired(s, now))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 100, Percent(1, 1))
	assert.Equal(t, 50, Percent(1, 2))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 40, Percent(2, 5))
}
