package model

import "time"

// QuestionAnalytics 由作答日志重新计算得到的题目统计，可随时重建
type QuestionAnalytics struct {
	QuestionID       uint      `gorm:"primaryKey;autoIncrement:false;type:bigint unsigned" json:"questionId"`
	TotalAttempts    int       `json:"totalAttempts"`
	CorrectAttempts  int       `json:"correctAttempts"`
	SuccessRate      float64   `json:"successRate"`
	DifficultyScore  float64   `json:"difficultyScore"`
	LastCalculatedAt time.Time `json:"lastCalculatedAt"`
}

func (QuestionAnalytics) TableName() string {
	return "question_analytics"
}
