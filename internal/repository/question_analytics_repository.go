package repository

import (
	"context"

	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionAnalyticsRepository struct {
	DB *gorm.DB
}

func NewQuestionAnalyticsRepository(db *gorm.DB) *QuestionAnalyticsRepository {
	return &QuestionAnalyticsRepository{DB: db}
}

// Upsert 以 question_id 为键插入或覆盖，后写入者生效
func (r *QuestionAnalyticsRepository) Upsert(ctx context.Context, row *model.QuestionAnalytics) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_attempts",
				"correct_attempts",
				"success_rate",
				"difficulty_score",
				"last_calculated_at",
			}),
		}).
		Create(row).Error
}

func (r *QuestionAnalyticsRepository) FindByQuestionIDs(ctx context.Context, ids []uint) ([]model.QuestionAnalytics, error) {
	var rows []model.QuestionAnalytics
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.DB.WithContext(ctx).
		Where("question_id IN ?", ids).
		Order("question_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *QuestionAnalyticsRepository) FindByQuestionID(ctx context.Context, id uint) (*model.QuestionAnalytics, error) {
	var row model.QuestionAnalytics
	if err := r.DB.WithContext(ctx).Where("question_id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
