// Package jobs 会话完成后的后台任务：进程内 worker 池或基于 redis 的 asynq 队列。
package jobs

import (
	"context"

	"quiz_engine_backend/internal/model"
)

const (
	TypeAnalytics = "quiz:analytics"
	TypeGoals     = "quiz:goals"
)

// Handler 任务执行方，每类任务各自独立失败
type Handler interface {
	ProcessAnalytics(ctx context.Context, job model.CompletionJob) error
	ProcessGoals(ctx context.Context, job model.CompletionJob) error
}
