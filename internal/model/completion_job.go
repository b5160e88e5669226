package model

// CompletionJob 会话完成后投递给后台的任务描述
type CompletionJob struct {
	SessionID   string         `json:"sessionId"`
	UserID      uint           `json:"userId"`
	QuestionIDs []uint         `json:"questionIds"`
	Summary     SessionSummary `json:"summary"`
}
