// Package testutil 提供基于内存 sqlite 的测试数据库与题库数据。
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 每个测试一个独立的内存库，单连接，已执行迁移
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func SeedCategory(t *testing.T, db *gorm.DB, name string, kind model.CategoryKind) model.Category {
	t.Helper()
	c := model.Category{Name: name, Kind: kind}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// SeedQuestion 创建题目，第一个选项为正确答案
func SeedQuestion(t *testing.T, db *gorm.DB, categoryID uint, difficulty model.Difficulty, status model.QuestionStatus) model.Question {
	t.Helper()
	q := model.Question{
		CategoryID:  categoryID,
		Stem:        "stem " + uuid.NewString()[:8],
		Explanation: "because",
		Difficulty:  difficulty,
		Status:      status,
		Options: []model.QuestionOption{
			{Content: "A", IsCorrect: true, Order: 1},
			{Content: "B", Order: 2},
			{Content: "C", Order: 3},
			{Content: "D", Order: 4},
		},
	}
	require.NoError(t, db.Create(&q).Error)
	return q
}

// SeedQuestions 在同一分类下创建 n 道已发布的中等难度题目
func SeedQuestions(t *testing.T, db *gorm.DB, categoryID uint, n int) []model.Question {
	t.Helper()
	out := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SeedQuestion(t, db, categoryID, model.DifficultyMedium, model.QuestionPublished))
	}
	return out
}

func CorrectOption(q model.Question) uint {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return 0
}

func WrongOption(q model.Question) uint {
	for _, o := range q.Options {
		if !o.IsCorrect {
			return o.ID
		}
	}
	return 0
}

// RecordingSink 记录发出的动态事件
type RecordingSink struct {
	mu     sync.Mutex
	events []model.ActivityEvent
}

func (s *RecordingSink) Emit(_ context.Context, event model.ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *RecordingSink) Events() []model.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ActivityEvent(nil), s.events...)
}
