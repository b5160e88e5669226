package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrPoolStopped = errors.New("job pool stopped")

const jobTimeout = 2 * time.Minute

// Pool 进程内 worker 池，队列满时临时开 goroutine 执行，Enqueue 从不阻塞
type Pool struct {
	handler Handler
	workers int
	queue   chan model.CompletionJob
	log     *zap.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(handler Handler, workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		handler: handler,
		workers: workers,
		queue:   make(chan model.CompletionJob, queueSize),
		log:     log,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.queue {
				p.process(job)
			}
		}()
	}
	p.log.Info("job pool started", zap.Int("workers", p.workers), zap.Int("queueSize", cap(p.queue)))
}

func (p *Pool) Enqueue(_ context.Context, job model.CompletionJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
	default:
		monitoring.JobCounter.WithLabelValues("enqueue", "overflow").Inc()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.process(job)
		}()
	}
	return nil
}

// Stop 停止接收新任务并等待已入队任务执行完
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("job pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) process(job model.CompletionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return p.run(ctx, TypeAnalytics, job, p.handler.ProcessAnalytics)
	})
	g.Go(func() error {
		return p.run(ctx, TypeGoals, job, p.handler.ProcessGoals)
	})
	_ = g.Wait()
}

func (p *Pool) run(ctx context.Context, taskType string, job model.CompletionJob, fn func(context.Context, model.CompletionJob) error) error {
	if err := fn(ctx, job); err != nil {
		monitoring.JobCounter.WithLabelValues(taskType, "error").Inc()
		p.log.Error("completion job failed",
			zap.String("type", taskType),
			zap.String("sessionId", job.SessionID),
			zap.Error(err))
		return nil
	}
	monitoring.JobCounter.WithLabelValues(taskType, "ok").Inc()
	return nil
}
