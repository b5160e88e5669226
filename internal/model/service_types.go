package model

// QuestionInfo 题库服务返回的判题所需信息
type QuestionInfo struct {
	ID              uint           `json:"id"`
	CategoryID      uint           `json:"categoryId"`
	CategoryName    string         `json:"categoryName"`
	CategoryKind    CategoryKind   `json:"categoryKind"`
	Difficulty      Difficulty     `json:"difficulty"`
	Status          QuestionStatus `json:"status"`
	Stem            string         `json:"stem,omitempty"`
	Explanation     string         `json:"explanation,omitempty"`
	CorrectOptionID uint           `json:"-"`
	Options         []OptionInfo   `json:"options"`
}

type OptionInfo struct {
	ID      uint   `json:"id"`
	Content string `json:"content"`
}

// CandidateFilter 候选题目查询条件；RestrictToInclude 为 true 时只在 IncludeIDs 中选择
type CandidateFilter struct {
	CategoryKinds     []CategoryKind
	CategoryIDs       []uint
	IncludeIDs        []uint
	RestrictToInclude bool
	ExcludeIDs        []uint
}

// QuestionHistory 某用户在某题上的累计作答情况
type QuestionHistory struct {
	QuestionID uint
	Attempts   int
	Incorrect  int
}

// Mastered 至少作答一次且从未答错
func (h QuestionHistory) Mastered() bool {
	return h.Attempts > 0 && h.Incorrect == 0
}

// QuizSessionView 会话详情（含下一题）
type QuizSessionView struct {
	*QuizSession
	QuestionIDs    []uint `json:"questionIds"`
	NextQuestionID *uint  `json:"nextQuestionId"`
}

// QuestionView 会话中展示的题目，选项顺序可能已打乱
type QuestionView struct {
	SessionID  string       `json:"sessionId"`
	Position   int          `json:"position"`
	QuestionID uint         `json:"questionId"`
	Stem       string       `json:"stem"`
	Difficulty Difficulty   `json:"difficulty"`
	Category   string       `json:"category"`
	Options    []OptionInfo `json:"options"`
	Answered   bool         `json:"answered"`
}
