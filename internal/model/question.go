package model

import "time"

type CategoryKind string

const (
	CategoryKindAP CategoryKind = "ap"
	CategoryKindCP CategoryKind = "cp"
)

type QuestionStatus string

const (
	QuestionDraft     QuestionStatus = "draft"
	QuestionPublished QuestionStatus = "published"
	QuestionArchived  QuestionStatus = "archived"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Category 题库分类（由题库内容服务维护）
type Category struct {
	BaseModel
	Name string       `gorm:"size:100;not null" json:"name"`
	Kind CategoryKind `gorm:"size:10;not null;index" json:"kind"`
}

func (Category) TableName() string {
	return "categories"
}

// Question 题目，本引擎只读
type Question struct {
	BaseModel
	CategoryID  uint             `gorm:"index;not null;type:bigint unsigned" json:"categoryId"`
	Stem        string           `gorm:"type:text" json:"stem"`
	Explanation string           `gorm:"type:text" json:"explanation"`
	Difficulty  Difficulty       `gorm:"size:10;default:'medium'" json:"difficulty"`
	Status      QuestionStatus   `gorm:"size:20;index;not null" json:"status"`
	Category    Category         `gorm:"foreignKey:CategoryID" json:"-"`
	Options     []QuestionOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null;type:bigint unsigned" json:"questionId"`
	Content    string `gorm:"type:text" json:"content"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}

// QuestionMark 用户标记的题目
type QuestionMark struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"not null;type:bigint unsigned;uniqueIndex:idx_mark_user_question" json:"userId"`
	QuestionID uint      `gorm:"not null;type:bigint unsigned;uniqueIndex:idx_mark_user_question" json:"questionId"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (QuestionMark) TableName() string {
	return "question_marks"
}
