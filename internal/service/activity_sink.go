package service

import (
	"context"
	"encoding/json"
	"time"

	"quiz_engine_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ActivitySink 动态/通知服务的事件出口，只投递不等待确认
type ActivitySink interface {
	Emit(ctx context.Context, event model.ActivityEvent)
}

const ActivityChannel = "quiz:activity"

// RedisActivitySink 通过 PUBLISH 发送事件
type RedisActivitySink struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisActivitySink(rdb *redis.Client, log *zap.Logger) *RedisActivitySink {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisActivitySink{rdb: rdb, channel: ActivityChannel, log: log}
}

func (s *RedisActivitySink) Emit(ctx context.Context, event model.ActivityEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("marshal activity event failed", zap.Error(err))
		return
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.rdb.Publish(pubCtx, s.channel, payload).Err(); err != nil {
			s.log.Warn("publish activity event failed",
				zap.String("type", event.Type),
				zap.Uint("userId", event.UserID),
				zap.Error(err))
		}
	}()
}

// LogActivitySink 未启用 redis 时只写日志
type LogActivitySink struct {
	log *zap.Logger
}

func NewLogActivitySink(log *zap.Logger) *LogActivitySink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogActivitySink{log: log}
}

func (s *LogActivitySink) Emit(_ context.Context, event model.ActivityEvent) {
	s.log.Info("activity event",
		zap.String("type", event.Type),
		zap.Uint("userId", event.UserID),
		zap.Any("data", event.Data))
}
