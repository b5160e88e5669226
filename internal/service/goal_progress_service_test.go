package service

import (
	"context"
	"testing"
	"time"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/testutil"
	"quiz_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedGoal(t *testing.T, userID uint, category model.GoalCategory, target, current int, endsAt time.Time) model.UserGoal {
	t.Helper()
	goal := model.UserGoal{
		UserID:       userID,
		Title:        string(category),
		Category:     category,
		TargetValue:  target,
		CurrentValue: current,
		EndsAt:       endsAt,
	}
	require.NoError(t, e.db.Create(&goal).Error)
	return goal
}

func (e *testEnv) goal(t *testing.T, id uint) model.UserGoal {
	t.Helper()
	var goal model.UserGoal
	require.NoError(t, e.db.First(&goal, id).Error)
	return goal
}

func TestApplyCompletedSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	week := env.clock.Add(7 * 24 * time.Hour)

	questions := env.seedGoal(t, testUser, model.GoalQuestions, 10, 8, week)
	accuracy := env.seedGoal(t, testUser, model.GoalAccuracy, 80, 90, week)
	quizzes := env.seedGoal(t, testUser, model.GoalQuizzes, 3, 0, week)
	study := env.seedGoal(t, testUser, model.GoalStudyTime, 60, 10, week)
	expired := env.seedGoal(t, testUser, model.GoalQuestions, 10, 0, env.clock.Add(-time.Hour))
	foreign := env.seedGoal(t, testUser+1, model.GoalQuestions, 10, 0, week)

	achieved, err := env.goals.ApplyCompletedSession(ctx, testUser, model.SessionSummary{
		QuestionsAnswered: 5,
		QuizzesCompleted:  1,
		StudyTimeMinutes:  12,
		Accuracy:          67,
	})
	require.NoError(t, err)
	require.Len(t, achieved, 1)
	assert.Equal(t, questions.ID, achieved[0].ID)

	got := env.goal(t, questions.ID)
	assert.Equal(t, 10, got.CurrentValue, "clamped to target")
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.CompletedAt)

	got = env.goal(t, accuracy.ID)
	assert.Equal(t, 67, got.CurrentValue, "accuracy is replaced, not accumulated")
	assert.False(t, got.IsCompleted)

	assert.Equal(t, 1, env.goal(t, quizzes.ID).CurrentValue)
	assert.Equal(t, 22, env.goal(t, study.ID).CurrentValue)
	assert.Equal(t, 0, env.goal(t, expired.ID).CurrentValue)
	assert.Equal(t, 0, env.goal(t, foreign.ID).CurrentValue)

	events := env.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.ActivityGoalAchieved, events[0].Type)
	assert.Equal(t, testUser, events[0].UserID)
	assert.Equal(t, questions.ID, events[0].Data["goalId"])
}

func TestApplyCompletedSession_CompletedGoalsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.seedGoal(t, testUser, model.GoalQuizzes, 1, 0, env.clock.Add(time.Hour))

	achieved, err := env.goals.ApplyCompletedSession(ctx, testUser, model.SessionSummary{QuizzesCompleted: 1})
	require.NoError(t, err)
	require.Len(t, achieved, 1)
	completedAt := env.goal(t, goal.ID).CompletedAt

	achieved, err = env.goals.ApplyCompletedSession(ctx, testUser, model.SessionSummary{QuizzesCompleted: 1})
	require.NoError(t, err)
	assert.Empty(t, achieved)

	got := env.goal(t, goal.ID)
	assert.Equal(t, 1, got.CurrentValue)
	assert.True(t, got.CompletedAt.Equal(*completedAt))
	assert.Len(t, env.sink.Events(), 1)
}

func TestApplyCompletedSession_AccuracyGoalAchievedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	goal := env.seedGoal(t, testUser, model.GoalAccuracy, 90, 0, env.clock.Add(24*time.Hour))

	achieved, err := env.goals.ApplyCompletedSession(ctx, testUser, model.SessionSummary{QuizzesCompleted: 1, Accuracy: 95})
	require.NoError(t, err)
	require.Len(t, achieved, 1)
	assert.Equal(t, goal.ID, achieved[0].ID)

	got := env.goal(t, goal.ID)
	assert.Equal(t, 95, got.CurrentValue)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.CompletedAt)

	events := env.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.ActivityGoalAchieved, events[0].Type)
	assert.Equal(t, goal.ID, events[0].Data["goalId"])

	// 已达成的目标不再被较低的正确率覆盖
	env.advance(time.Hour)
	achieved, err = env.goals.ApplyCompletedSession(ctx, testUser, model.SessionSummary{QuizzesCompleted: 1, Accuracy: 80})
	require.NoError(t, err)
	assert.Empty(t, achieved)

	got = env.goal(t, goal.ID)
	assert.Equal(t, 95, got.CurrentValue)
	assert.True(t, got.IsCompleted)
	assert.Len(t, env.sink.Events(), 1)
}

func TestApplyCompletedSession_OncePerSession(t *testing.T) {
	env := newTestEnv(t)
	qs := testutil.SeedQuestions(t, env.db, env.category.ID, 2)
	ctx := context.Background()
	goal := env.seedGoal(t, testUser, model.GoalQuestions, 100, 0, env.clock.Add(time.Hour))

	sessionID := env.createSession(t, testUser, CreateSessionRequest{QuestionCount: 2}).Session.ID
	env.answer(t, sessionID, testUser, qs[0], true)
	env.answer(t, sessionID, testUser, qs[1], true)

	jobs := env.dispatcher.Jobs()
	require.Len(t, jobs, 1)
	processor := NewCompletionProcessor(env.analytics, env.goals)

	// 任务重试时不能重复累加
	require.NoError(t, processor.ProcessGoals(ctx, jobs[0]))
	require.NoError(t, processor.ProcessGoals(ctx, jobs[0]))

	assert.Equal(t, 2, env.goal(t, goal.ID).CurrentValue)
	assert.NotNil(t, env.reload(t, sessionID).GoalsAppliedAt)
}

func TestAdvanceGoal(t *testing.T) {
	now := time.Now()
	summary := model.SessionSummary{QuestionsAnswered: 4, QuizzesCompleted: 1, StudyTimeMinutes: 3, Accuracy: 150}

	tests := []struct {
		name          string
		goal          model.UserGoal
		wantValue     int
		wantCompleted bool
		wantChanged   bool
	}{
		{"questions below target", model.UserGoal{Category: model.GoalQuestions, TargetValue: 10, CurrentValue: 1}, 5, false, true},
		{"questions clamp", model.UserGoal{Category: model.GoalQuestions, TargetValue: 3, CurrentValue: 1}, 3, true, true},
		{"accuracy clamps to 100", model.UserGoal{Category: model.GoalAccuracy, TargetValue: 100}, 100, true, true},
		{"negative current value", model.UserGoal{Category: model.GoalStudyTime, TargetValue: 10, CurrentValue: -5}, 0, false, true},
		{"unknown category", model.UserGoal{Category: "streak", TargetValue: 10}, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goal := tt.goal
			changed := advanceGoal(&goal, summary, now)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantValue, goal.CurrentValue)
			assert.Equal(t, tt.wantCompleted, goal.IsCompleted)
		})
	}
}

func TestGoalCRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	future := env.clock.Add(24 * time.Hour)

	goal, err := env.goals.CreateGoal(ctx, testUser, CreateGoalRequest{
		Category: model.GoalQuestions, TargetValue: 50, EndsAt: future,
	})
	require.NoError(t, err)
	assert.Equal(t, "questions 50", goal.Title)
	assert.Zero(t, goal.CurrentValue)

	invalid := []CreateGoalRequest{
		{Category: "streak", TargetValue: 1, EndsAt: future},
		{Category: model.GoalQuizzes, TargetValue: 0, EndsAt: future},
		{Category: model.GoalAccuracy, TargetValue: 101, EndsAt: future},
		{Category: model.GoalQuizzes, TargetValue: 1, EndsAt: env.clock.Add(-time.Minute)},
	}
	for _, req := range invalid {
		_, err := env.goals.CreateGoal(ctx, testUser, req)
		assert.ErrorIs(t, err, util.ErrInvalidInput, "%+v", req)
	}

	got, err := env.goals.GetGoalByID(ctx, testUser, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, got.ID)

	_, err = env.goals.GetGoalByID(ctx, testUser+1, goal.ID)
	assert.ErrorIs(t, err, util.ErrGoalNotFound)

	goals, err := env.goals.GetUserGoals(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, goals, 1)

	assert.ErrorIs(t, env.goals.DeleteGoal(ctx, testUser+1, goal.ID), util.ErrGoalNotFound)
	require.NoError(t, env.goals.DeleteGoal(ctx, testUser, goal.ID))
	assert.ErrorIs(t, env.goals.DeleteGoal(ctx, testUser, goal.ID), util.ErrGoalNotFound)
}
