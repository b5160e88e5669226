package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/util"

	"gorm.io/gorm"
)

// AttemptRecorder 校验并写入单题作答，同一会话同一题只允许一条记录
type AttemptRecorder struct {
	Attempts *repository.QuizAttemptRepository
}

func NewAttemptRecorder(attempts *repository.QuizAttemptRepository) *AttemptRecorder {
	return &AttemptRecorder{Attempts: attempts}
}

type AttemptInput struct {
	SessionID        string
	UserID           uint
	QuestionID       uint
	SelectedAnswerID uint
	TimeSpent        int
}

// Validate 检查提交内容与题目选项是否匹配
func (r *AttemptRecorder) Validate(in AttemptInput, question *model.QuestionInfo) error {
	if in.TimeSpent < 0 {
		return fmt.Errorf("%w: timeSpent must not be negative", util.ErrInvalidInput)
	}
	for _, o := range question.Options {
		if o.ID == in.SelectedAnswerID {
			return nil
		}
	}
	return fmt.Errorf("%w: answer %d is not an option of question %d", util.ErrInvalidInput, in.SelectedAnswerID, question.ID)
}

// AlreadyAnswered 写入前的重复检查
func (r *AttemptRecorder) AlreadyAnswered(ctx context.Context, sessionID string, questionID uint) (bool, error) {
	return r.Attempts.Exists(ctx, sessionID, questionID)
}

// Record 在事务内追加作答记录，唯一索引冲突视为重复提交
func (r *AttemptRecorder) Record(ctx context.Context, tx *gorm.DB, in AttemptInput, question *model.QuestionInfo, now time.Time) (*model.QuizAttempt, error) {
	attempt := &model.QuizAttempt{
		QuizSessionID:    in.SessionID,
		QuestionID:       in.QuestionID,
		UserID:           in.UserID,
		SelectedAnswerID: in.SelectedAnswerID,
		IsCorrect:        in.SelectedAnswerID == question.CorrectOptionID,
		TimeSpent:        in.TimeSpent,
		AttemptedAt:      now,
	}

	if err := r.Attempts.WithTx(tx).Create(ctx, attempt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyAnswered
		}
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}
