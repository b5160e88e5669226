package service

import (
	"math"
	"time"

	"quiz_engine_backend/internal/model"
)

// ComputeTotalBudget 计时会话的总时长（秒），不计时返回 nil
func ComputeTotalBudget(timing model.QuizTiming, questionCount, secondsPerQuestion int) *int {
	if timing != model.TimingTimed {
		return nil
	}
	budget := questionCount * secondsPerQuestion
	return &budget
}

// RemainingOnResume max(0, totalLimit - (now - startedAt))
func RemainingOnResume(totalLimit int, startedAt, now time.Time) int {
	elapsed := int(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := totalLimit - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReanchorStart 恢复时把起点移到 now-已用时间，暂停期间不计入
func ReanchorStart(totalLimit, remaining int, now time.Time) time.Time {
	used := totalLimit - remaining
	if used < 0 {
		used = 0
	}
	return now.Add(-time.Duration(used) * time.Second)
}

// RemainingAt 会话在 now 时刻的剩余秒数
func RemainingAt(s *model.QuizSession, now time.Time) *int {
	if !s.IsTimed() || s.TotalTimeLimit == nil {
		return nil
	}
	var remaining int
	switch {
	case s.Status == model.SessionPaused && s.TimeRemaining != nil:
		remaining = *s.TimeRemaining
	case s.IsTerminal() && s.TimeRemaining != nil:
		remaining = *s.TimeRemaining
	case s.QuizStartedAt == nil:
		remaining = *s.TotalTimeLimit
	default:
		remaining = RemainingOnResume(*s.TotalTimeLimit, *s.QuizStartedAt, now)
	}
	return &remaining
}

// Expired 进行中的计时会话是否已用完时间
func Expired(s *model.QuizSession, now time.Time) bool {
	if s.Status != model.SessionInProgress || !s.IsTimed() || s.QuizStartedAt == nil || s.TotalTimeLimit == nil {
		return false
	}
	return RemainingOnResume(*s.TotalTimeLimit, *s.QuizStartedAt, now) == 0
}

// Percent round(part / whole * 100)，whole 为 0 时返回 0
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
