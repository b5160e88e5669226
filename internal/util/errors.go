package util

import (
	"errors"
	"fmt"
)

// 错误分类，调用方使用 errors.Is 判断
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidState       = errors.New("invalid state")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPartialFulfillment = errors.New("partial fulfillment")
	ErrAggregationFailure = errors.New("aggregation failure")
)

var (
	ErrSessionNotFound      = fmt.Errorf("%w: quiz session", ErrNotFound)
	ErrQuestionNotFound     = fmt.Errorf("%w: question", ErrNotFound)
	ErrQuestionNotInSession = fmt.Errorf("%w: question is not part of this session", ErrNotFound)
	ErrGoalNotFound         = fmt.Errorf("%w: goal", ErrNotFound)
	ErrNotSessionOwner      = fmt.Errorf("%w: session belongs to another user", ErrForbidden)
	ErrAlreadyAnswered      = fmt.Errorf("%w: question already answered", ErrConflict)
	ErrSessionClosed        = fmt.Errorf("%w: session is already finished", ErrInvalidState)
	ErrSessionNotRunning    = fmt.Errorf("%w: session is not in progress", ErrInvalidState)
	ErrSessionNotPaused     = fmt.Errorf("%w: session is not paused", ErrInvalidState)
	ErrSessionPaused        = fmt.Errorf("%w: session is paused", ErrInvalidState)
	ErrTimeExpired          = fmt.Errorf("%w: time limit reached", ErrInvalidState)
	ErrNoQuestions          = fmt.Errorf("%w: no questions match the selection", ErrPartialFulfillment)
)

// PartialFulfillmentError 候选题目数量少于请求数量
type PartialFulfillmentError struct {
	Requested int
	Available int
}

func (e *PartialFulfillmentError) Error() string {
	return fmt.Sprintf("partial fulfillment: requested %d questions, %d available", e.Requested, e.Available)
}

func (e *PartialFulfillmentError) Unwrap() error {
	return ErrPartialFulfillment
}

// AggregationError 汇总批量统计中失败的条目
type AggregationError struct {
	Failed map[uint]error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed for %d question(s)", len(e.Failed))
}

func (e *AggregationError) Unwrap() error {
	return ErrAggregationFailure
}
