package model

import "time"

// QuizAttempt 单题作答记录，只追加不修改
type QuizAttempt struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizSessionID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_session_question" json:"quizSessionId"`
	QuestionID       uint      `gorm:"not null;type:bigint unsigned;uniqueIndex:idx_attempt_session_question;index" json:"questionId"`
	UserID           uint      `gorm:"not null;type:bigint unsigned;index" json:"userId"`
	SelectedAnswerID uint      `gorm:"type:bigint unsigned" json:"selectedAnswerId"`
	IsCorrect        bool      `gorm:"not null" json:"isCorrect"`
	TimeSpent        int       `gorm:"default:0" json:"timeSpent"`
	AttemptedAt      time.Time `gorm:"index;not null" json:"attemptedAt"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
