package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/pkg/monitoring"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqQueue 基于 redis 的持久化队列，统计与目标任务分别入队并各自重试
type AsynqQueue struct {
	client   *asynq.Client
	server   *asynq.Server
	mux      *asynq.ServeMux
	maxRetry int
	log      *zap.Logger
}

func NewAsynqQueue(addr, password string, db, concurrency, maxRetry int, log *zap.Logger) *AsynqQueue {
	if log == nil {
		log = zap.NewNop()
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"quiz": 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			monitoring.JobCounter.WithLabelValues(task.Type(), "error").Inc()
			log.Error("completion task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
		Logger: &AsynqLogger{log: log.Sugar()},
	})

	return &AsynqQueue{
		client:   client,
		server:   server,
		mux:      asynq.NewServeMux(),
		maxRetry: maxRetry,
		log:      log,
	}
}

func (q *AsynqQueue) RegisterHandler(h Handler) {
	q.mux.HandleFunc(TypeAnalytics, q.wrap(TypeAnalytics, h.ProcessAnalytics))
	q.mux.HandleFunc(TypeGoals, q.wrap(TypeGoals, h.ProcessGoals))
}

// Start 非阻塞启动 worker
func (q *AsynqQueue) Start() error {
	q.log.Info("starting asynq worker")
	return q.server.Start(q.mux)
}

func (q *AsynqQueue) Stop(_ context.Context) error {
	q.log.Info("stopping asynq worker")
	q.server.Stop()
	q.server.Shutdown()
	return q.client.Close()
}

func (q *AsynqQueue) Enqueue(ctx context.Context, job model.CompletionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal completion job: %w", err)
	}

	opts := []asynq.Option{
		asynq.Queue("quiz"),
		asynq.MaxRetry(q.maxRetry),
		asynq.Timeout(jobTimeout),
	}
	for _, taskType := range []string{TypeAnalytics, TypeGoals} {
		info, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
		}
		q.log.Debug("queued completion task",
			zap.String("id", info.ID),
			zap.String("type", taskType),
			zap.String("sessionId", job.SessionID))
	}
	return nil
}

func (q *AsynqQueue) wrap(taskType string, fn func(context.Context, model.CompletionJob) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var job model.CompletionJob
		if err := json.Unmarshal(task.Payload(), &job); err != nil {
			return fmt.Errorf("failed to unmarshal completion job: %w: %w", err, asynq.SkipRetry)
		}
		start := time.Now()
		if err := fn(ctx, job); err != nil {
			return err
		}
		monitoring.JobCounter.WithLabelValues(taskType, "ok").Inc()
		q.log.Debug("completion task done",
			zap.String("type", taskType),
			zap.String("sessionId", job.SessionID),
			zap.Duration("took", time.Since(start)))
		return nil
	}
}

// AsynqLogger 将 asynq 内部日志转到 zap
type AsynqLogger struct {
	log *zap.SugaredLogger
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.log.Debug(args...) }
func (l *AsynqLogger) Info(args ...interface{})  { l.log.Info(args...) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.log.Warn(args...) }
func (l *AsynqLogger) Error(args ...interface{}) { l.log.Error(args...) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.log.Error(args...) }
