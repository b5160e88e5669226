package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuizMode string

const (
	ModeTutor    QuizMode = "tutor"
	ModePractice QuizMode = "practice"
)

type QuizTiming string

const (
	TimingTimed   QuizTiming = "timed"
	TimingUntimed QuizTiming = "untimed"
)

// QuestionTypeFilter 按用户答题历史筛选题目
type QuestionTypeFilter string

const (
	QuestionTypeAll         QuestionTypeFilter = "all"
	QuestionTypeUnused      QuestionTypeFilter = "unused"
	QuestionTypeNeedsReview QuestionTypeFilter = "needs_review"
	QuestionTypeMarked      QuestionTypeFilter = "marked"
	QuestionTypeMastered    QuestionTypeFilter = "mastered"
)

type CategorySelection string

const (
	CategoryAll    CategorySelection = "all"
	CategoryAPOnly CategorySelection = "ap_only"
	CategoryCPOnly CategorySelection = "cp_only"
	CategoryCustom CategorySelection = "custom"
)

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionPaused     SessionStatus = "paused"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// 会话结束原因
const (
	EndReasonAllAnswered = "all_answered"
	EndReasonTimeExpired = "time_expired"
	EndReasonUser        = "user"
	EndReasonStale       = "stale"
)

// swagger:model QuizSession
type QuizSession struct {
	UUIDBase

	UserID uint `gorm:"index;not null;type:bigint unsigned" json:"userId"`

	// 创建后不可变的配置
	Mode               QuizMode           `gorm:"size:20;not null" json:"mode"`
	Timing             QuizTiming         `gorm:"size:20;not null" json:"timing"`
	QuestionType       QuestionTypeFilter `gorm:"size:20;not null" json:"questionType"`
	CategorySelection  CategorySelection  `gorm:"size:20;not null" json:"categorySelection"`
	CategoryIDs        datatypes.JSON     `json:"categoryIds,omitempty"`
	ShuffleQuestions   bool               `json:"shuffleQuestions"`
	ShuffleAnswers     bool               `json:"shuffleAnswers"`
	TotalQuestions     int                `gorm:"not null" json:"totalQuestions"`
	RequestedQuestions int                `json:"requestedQuestions"`
	SecondsPerQuestion int                `json:"secondsPerQuestion,omitempty"`

	// 运行状态
	Status               SessionStatus `gorm:"size:20;index;not null" json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	CorrectAnswers       int           `json:"correctAnswers"`
	Score                int           `json:"score"`
	TotalTimeSpent       int           `json:"totalTimeSpent"`

	// 计时状态（仅 timed）
	TotalTimeLimit *int       `json:"totalTimeLimit,omitempty"`
	TimeRemaining  *int       `json:"timeRemaining,omitempty"`
	QuizStartedAt  *time.Time `gorm:"index" json:"quizStartedAt,omitempty"`
	PausedAt       *time.Time `json:"pausedAt,omitempty"`
	DeadlineAt     *time.Time `gorm:"index" json:"-"`

	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	AbandonedAt    *time.Time `json:"abandonedAt,omitempty"`
	EndReason      string     `gorm:"size:20" json:"endReason,omitempty"`
	GoalsAppliedAt *time.Time `json:"-"`

	Questions []QuizSessionQuestion `gorm:"foreignKey:QuizSessionID" json:"-"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

func (s *QuizSession) IsTimed() bool {
	return s.Timing == TimingTimed
}

func (s *QuizSession) IsTerminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// Deadline 进行中的计时会话的截止时间，未开始、暂停或已结束时为 nil
func (s *QuizSession) Deadline() *time.Time {
	if s.Status != SessionInProgress || !s.IsTimed() || s.QuizStartedAt == nil || s.TotalTimeLimit == nil {
		return nil
	}
	deadline := s.QuizStartedAt.Add(time.Duration(*s.TotalTimeLimit) * time.Second)
	return &deadline
}

// QuizSessionQuestion 会话中的有序题目列表
type QuizSessionQuestion struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizSessionID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_session_question;uniqueIndex:idx_session_position" json:"quizSessionId"`
	QuestionID    uint   `gorm:"not null;type:bigint unsigned;uniqueIndex:idx_session_question" json:"questionId"`
	Position      int    `gorm:"not null;uniqueIndex:idx_session_position" json:"position"`
}

func (QuizSessionQuestion) TableName() string {
	return "quiz_session_questions"
}
