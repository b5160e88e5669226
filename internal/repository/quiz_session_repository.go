package repository

import (
	"context"
	"time"

	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

type QuizSessionRepository struct {
	DB *gorm.DB
}

func NewQuizSessionRepository(db *gorm.DB) *QuizSessionRepository {
	return &QuizSessionRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *QuizSessionRepository) WithTx(tx *gorm.DB) *QuizSessionRepository {
	return &QuizSessionRepository{DB: tx}
}

// Create 同时写入会话及其有序题目列表
func (r *QuizSessionRepository) Create(ctx context.Context, session *model.QuizSession) error {
	return r.DB.WithContext(ctx).Create(session).Error
}

func (r *QuizSessionRepository) FindByID(ctx context.Context, id string) (*model.QuizSession, error) {
	var s model.QuizSession
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Save 持久化运行状态（配置字段创建后不再变化），截止时间随状态重新计算
func (r *QuizSessionRepository) Save(ctx context.Context, s *model.QuizSession) error {
	s.DeadlineAt = s.Deadline()
	return r.DB.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":                 s.Status,
			"current_question_index": s.CurrentQuestionIndex,
			"correct_answers":        s.CorrectAnswers,
			"score":                  s.Score,
			"total_time_spent":       s.TotalTimeSpent,
			"time_remaining":         s.TimeRemaining,
			"quiz_started_at":        s.QuizStartedAt,
			"paused_at":              s.PausedAt,
			"deadline_at":            s.DeadlineAt,
			"completed_at":           s.CompletedAt,
			"abandoned_at":           s.AbandonedAt,
			"end_reason":             s.EndReason,
			"updated_at":             time.Now(),
		}).Error
}

// Questions 返回会话题目，按出题顺序排列
func (r *QuizSessionRepository) Questions(ctx context.Context, sessionID string) ([]model.QuizSessionQuestion, error) {
	var qs []model.QuizSessionQuestion
	err := r.DB.WithContext(ctx).
		Where("quiz_session_id = ?", sessionID).
		Order("position ASC").
		Find(&qs).Error
	return qs, err
}

func (r *QuizSessionRepository) ListByUser(ctx context.Context, userID uint, status model.SessionStatus, page, limit int) ([]model.QuizSession, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.QuizSession{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []model.QuizSession
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

// FindOverdue 返回截止时间已过的进行中会话，最早到期的在前
func (r *QuizSessionRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]model.QuizSession, error) {
	var sessions []model.QuizSession
	err := r.DB.WithContext(ctx).
		Where("status = ? AND deadline_at IS NOT NULL AND deadline_at <= ?", model.SessionInProgress, now).
		Order("deadline_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// FindStale 返回长时间未活动的未完成会话
func (r *QuizSessionRepository) FindStale(ctx context.Context, statuses []model.SessionStatus, updatedBefore time.Time, limit int) ([]model.QuizSession, error) {
	var sessions []model.QuizSession
	err := r.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// ClaimGoalsApplied 标记会话已计入目标进度，只有首次调用返回 true
func (r *QuizSessionRepository) ClaimGoalsApplied(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.QuizSession{}).
		Where("id = ? AND goals_applied_at IS NULL", sessionID).
		Update("goals_applied_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
