package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/monitoring"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AnalyticsSettings 批量重算参数
type AnalyticsSettings struct {
	BatchSize   int
	BatchPause  time.Duration
	Concurrency int
}

func AnalyticsSettingsFromConfig(c config.AnalyticsConfig) AnalyticsSettings {
	return AnalyticsSettings{
		BatchSize:   c.BatchSize,
		BatchPause:  time.Duration(c.BatchPauseMS) * time.Millisecond,
		Concurrency: c.Concurrency,
	}
}

// AnalyticsAggregator 从作答日志重算题目统计，结果可重复计算
type AnalyticsAggregator struct {
	Attempts  *repository.QuizAttemptRepository
	Analytics *repository.QuestionAnalyticsRepository

	log      *zap.Logger
	now      func() time.Time
	mu       sync.RWMutex
	settings AnalyticsSettings
}

func NewAnalyticsAggregator(
	attempts *repository.QuizAttemptRepository,
	analytics *repository.QuestionAnalyticsRepository,
	settings AnalyticsSettings,
	log *zap.Logger,
) *AnalyticsAggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsAggregator{
		Attempts:  attempts,
		Analytics: analytics,
		log:       log,
		now:       time.Now,
		settings:  settings,
	}
}

func (a *AnalyticsAggregator) Settings() AnalyticsSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *AnalyticsAggregator) UpdateSettings(cfg *config.Config) {
	a.mu.Lock()
	a.settings = AnalyticsSettingsFromConfig(cfg.Analytics)
	a.mu.Unlock()
}

// Recalculate 逐题重算，单题失败不影响其他题目，失败项汇总在 AggregationError 中
func (a *AnalyticsAggregator) Recalculate(ctx context.Context, questionIDs []uint) error {
	ids := dedupeIDs(questionIDs)
	if len(ids) == 0 {
		return nil
	}

	limit := a.Settings().Concurrency
	if limit <= 0 {
		limit = 1
	}

	var mu sync.Mutex
	failed := map[uint]error{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := a.recalculateOne(gctx, id); err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
				monitoring.AggregationFailures.WithLabelValues("analytics").Inc()
				a.log.Error("recalculate question analytics failed", zap.Uint("questionId", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return &util.AggregationError{Failed: failed}
	}
	return nil
}

// RecalculateAll 全量重建，按批处理并在批次间暂停，返回成功重算的题目数
func (a *AnalyticsAggregator) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := a.Attempts.DistinctQuestionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list attempted questions: %w", err)
	}

	settings := a.Settings()
	size := settings.BatchSize
	if size <= 0 {
		size = 50
	}

	failed := map[uint]error{}
	done := 0
	for start := 0; start < len(ids); start += size {
		if start > 0 && settings.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return done, ctx.Err()
			case <-time.After(settings.BatchPause):
			}
		}

		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		err := a.Recalculate(ctx, batch)
		var aggErr *util.AggregationError
		switch {
		case err == nil:
			done += len(batch)
		case errors.As(err, &aggErr):
			done += len(batch) - len(aggErr.Failed)
			for id, e := range aggErr.Failed {
				failed[id] = e
			}
		default:
			return done, err
		}
	}

	a.log.Info("question analytics rebuilt", zap.Int("questions", len(ids)), zap.Int("failed", len(failed)))
	if len(failed) > 0 {
		return done, &util.AggregationError{Failed: failed}
	}
	return done, nil
}

func (a *AnalyticsAggregator) GetQuestionAnalytics(ctx context.Context, questionIDs []uint) ([]model.QuestionAnalytics, error) {
	return a.Analytics.FindByQuestionIDs(ctx, dedupeIDs(questionIDs))
}

func (a *AnalyticsAggregator) recalculateOne(ctx context.Context, questionID uint) error {
	total, correct, err := a.Attempts.QuestionTotals(ctx, questionID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	successRate := float64(correct) / float64(total)
	row := &model.QuestionAnalytics{
		QuestionID:       questionID,
		TotalAttempts:    total,
		CorrectAttempts:  correct,
		SuccessRate:      successRate,
		DifficultyScore:  1 - successRate,
		LastCalculatedAt: a.now(),
	}
	if err := a.Analytics.Upsert(ctx, row); err != nil {
		return err
	}
	monitoring.AnalyticsRecalculated.Inc()
	return nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
