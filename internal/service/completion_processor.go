package service

import (
	"context"

	"quiz_engine_backend/internal/model"
)

// CompletionProcessor 执行会话完成后的两类后台任务，二者互不依赖
type CompletionProcessor struct {
	Analytics *AnalyticsAggregator
	Goals     *GoalProgressService
}

func NewCompletionProcessor(analytics *AnalyticsAggregator, goals *GoalProgressService) *CompletionProcessor {
	return &CompletionProcessor{Analytics: analytics, Goals: goals}
}

func (p *CompletionProcessor) ProcessAnalytics(ctx context.Context, job model.CompletionJob) error {
	return p.Analytics.Recalculate(ctx, job.QuestionIDs)
}

func (p *CompletionProcessor) ProcessGoals(ctx context.Context, job model.CompletionJob) error {
	summary := job.Summary
	if summary.SessionID == "" {
		summary.SessionID = job.SessionID
	}
	_, err := p.Goals.ApplyCompletedSession(ctx, job.UserID, summary)
	return err
}
