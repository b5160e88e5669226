package model

import "time"

// AttemptResult 每次提交后返回给客户端的结果
type AttemptResult struct {
	AttemptID         uint   `json:"attemptId"`
	IsCorrect         bool   `json:"isCorrect"`
	CorrectAnswerID   uint   `json:"correctAnswerId"`
	Explanation       string `json:"explanation,omitempty"`
	NextQuestionID    *uint  `json:"nextQuestionId"`
	IsSessionComplete bool   `json:"isSessionComplete"`
	SessionScore      int    `json:"sessionScore"`
	QuestionNumber    int    `json:"questionNumber"`
	TotalQuestions    int    `json:"totalQuestions"`
	TimeRemaining     *int   `json:"timeRemaining,omitempty"`
}

// BreakdownItem 按分类或难度的小计
type BreakdownItem struct {
	Key       string `json:"key"`
	Label     string `json:"label,omitempty"`
	Attempted int    `json:"attempted"`
	Correct   int    `json:"correct"`
	Accuracy  int    `json:"accuracy"`
}

type QuestionReview struct {
	QuestionID       uint       `json:"questionId"`
	Position         int        `json:"position"`
	Attempted        bool       `json:"attempted"`
	SelectedAnswerID uint       `json:"selectedAnswerId,omitempty"`
	CorrectAnswerID  uint       `json:"correctAnswerId"`
	IsCorrect        bool       `json:"isCorrect"`
	TimeSpent        int        `json:"timeSpent"`
	Explanation      string     `json:"explanation,omitempty"`
	AttemptedAt      *time.Time `json:"attemptedAt,omitempty"`
}

// SessionResult 会话结束后的汇总，只基于本次会话的作答
type SessionResult struct {
	SessionID      string           `json:"sessionId"`
	Status         SessionStatus    `json:"status"`
	EndReason      string           `json:"endReason,omitempty"`
	TotalQuestions int              `json:"totalQuestions"`
	Attempted      int              `json:"attempted"`
	Correct        int              `json:"correct"`
	Score          int              `json:"score"`
	TotalTimeSpent int              `json:"totalTimeSpent"`
	ByCategory     []BreakdownItem  `json:"byCategory"`
	ByDifficulty   []BreakdownItem  `json:"byDifficulty"`
	Questions      []QuestionReview `json:"questions"`
}

// SessionSummary 用于推进用户目标的会话摘要
type SessionSummary struct {
	SessionID         string `json:"sessionId,omitempty"`
	QuestionsAnswered int    `json:"questionsAnswered"`
	QuizzesCompleted  int    `json:"quizzesCompleted"`
	StudyTimeMinutes  int    `json:"studyTimeMinutes"`
	Accuracy          int    `json:"accuracy"`
}
