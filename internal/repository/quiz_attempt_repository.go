package repository

import (
	"context"

	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

// QuizAttemptRepository 作答日志只提供追加与查询
type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

func (r *QuizAttemptRepository) WithTx(tx *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: tx}
}

func (r *QuizAttemptRepository) Create(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *QuizAttemptRepository) Exists(ctx context.Context, sessionID string, questionID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("quiz_session_id = ? AND question_id = ?", sessionID, questionID).
		Count(&count).Error
	return count > 0, err
}

func (r *QuizAttemptRepository) ListBySession(ctx context.Context, sessionID string) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("quiz_session_id = ?", sessionID).
		Order("attempted_at ASC, id ASC").
		Find(&attempts).Error
	return attempts, err
}

// QuestionTotals 统计某题在所有会话中的作答数与正确数
func (r *QuizAttemptRepository) QuestionTotals(ctx context.Context, questionID uint) (total int, correct int, err error) {
	var row struct {
		Total   int64
		Correct int64
	}
	err = r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0) AS correct").
		Where("question_id = ?", questionID).
		Scan(&row).Error
	return int(row.Total), int(row.Correct), err
}

// DistinctQuestionIDs 日志中出现过的全部题目ID
func (r *QuizAttemptRepository) DistinctQuestionIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Distinct("question_id").
		Order("question_id ASC").
		Pluck("question_id", &ids).Error
	return ids, err
}

// UserHistory 用户在每道题上的累计作答与答错次数
func (r *QuizAttemptRepository) UserHistory(ctx context.Context, userID uint) (map[uint]model.QuestionHistory, error) {
	var rows []model.QuestionHistory
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Select("question_id, COUNT(*) AS attempts, "+
			"COALESCE(SUM(CASE WHEN is_correct THEN 0 ELSE 1 END), 0) AS incorrect").
		Where("user_id = ?", userID).
		Group("question_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]model.QuestionHistory, len(rows))
	for _, h := range rows {
		out[h.QuestionID] = h
	}
	return out, nil
}
