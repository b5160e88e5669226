package model

import "time"

type GoalCategory string

const (
	GoalQuestions GoalCategory = "questions"
	GoalQuizzes   GoalCategory = "quizzes"
	GoalStudyTime GoalCategory = "study_time"
	GoalAccuracy  GoalCategory = "accuracy"
)

func (c GoalCategory) Valid() bool {
	switch c {
	case GoalQuestions, GoalQuizzes, GoalStudyTime, GoalAccuracy:
		return true
	}
	return false
}

// swagger:model UserGoal
type UserGoal struct {
	BaseModel
	UserID       uint         `gorm:"index;not null;type:bigint unsigned" json:"userId"`
	Title        string       `gorm:"size:255" json:"title"`
	Category     GoalCategory `gorm:"size:20;not null" json:"category"`
	TargetValue  int          `gorm:"not null" json:"targetValue"`
	CurrentValue int          `gorm:"default:0" json:"currentValue"`
	IsCompleted  bool         `gorm:"default:false;index" json:"isCompleted"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	EndsAt       time.Time    `gorm:"not null;index" json:"endsAt"`
}

func (UserGoal) TableName() string {
	return "user_goals"
}

func (g *UserGoal) Expired(now time.Time) bool {
	return now.After(g.EndsAt)
}
