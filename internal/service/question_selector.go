package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/util"
)

// QuestionBank 题库服务，引擎只读
type QuestionBank interface {
	GetQuestion(ctx context.Context, id uint) (*model.QuestionInfo, error)
	ListCandidates(ctx context.Context, filter model.CandidateFilter) ([]uint, error)
}

// HistoryReader 用户答题历史
type HistoryReader interface {
	UserHistory(ctx context.Context, userID uint) (map[uint]model.QuestionHistory, error)
}

// MarkStore 用户题目标记
type MarkStore interface {
	Mark(ctx context.Context, userID, questionID uint) error
	Unmark(ctx context.Context, userID, questionID uint) error
	MarkedIDs(ctx context.Context, userID uint) ([]uint, error)
}

// SelectionFilter 出题策略
type SelectionFilter struct {
	QuestionType      model.QuestionTypeFilter
	CategorySelection model.CategorySelection
	CategoryIDs       []uint
	ExcludeIDs        []uint
	Shuffle           bool
}

type QuestionSelector struct {
	Bank    QuestionBank
	History HistoryReader
	Marks   MarkStore

	shuffle func(n int, swap func(i, j int))
}

func NewQuestionSelector(bank QuestionBank, history HistoryReader, marks MarkStore) *QuestionSelector {
	return &QuestionSelector{
		Bank:    bank,
		History: history,
		Marks:   marks,
		shuffle: rand.Shuffle,
	}
}

// SelectQuestions 返回有序题目ID；候选不足时返回全部候选并标记 partial
func (s *QuestionSelector) SelectQuestions(ctx context.Context, userID uint, filter SelectionFilter, count int) ([]uint, bool, error) {
	cf, err := s.buildFilter(ctx, userID, filter)
	if err != nil {
		return nil, false, err
	}

	pool, err := s.Bank.ListCandidates(ctx, cf)
	if err != nil {
		return nil, false, fmt.Errorf("list candidates: %w", err)
	}

	if filter.Shuffle {
		s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}

	if len(pool) < count {
		return pool, true, nil
	}
	return pool[:count], false, nil
}

func (s *QuestionSelector) buildFilter(ctx context.Context, userID uint, filter SelectionFilter) (model.CandidateFilter, error) {
	cf := model.CandidateFilter{
		ExcludeIDs: append([]uint(nil), filter.ExcludeIDs...),
	}

	switch filter.CategorySelection {
	case "", model.CategoryAll:
	case model.CategoryAPOnly:
		cf.CategoryKinds = []model.CategoryKind{model.CategoryKindAP}
	case model.CategoryCPOnly:
		cf.CategoryKinds = []model.CategoryKind{model.CategoryKindCP}
	case model.CategoryCustom:
		if len(filter.CategoryIDs) == 0 {
			return cf, fmt.Errorf("%w: custom category selection requires categoryIds", util.ErrInvalidInput)
		}
		cf.CategoryIDs = filter.CategoryIDs
	default:
		return cf, fmt.Errorf("%w: unknown category selection %q", util.ErrInvalidInput, filter.CategorySelection)
	}

	switch filter.QuestionType {
	case "", model.QuestionTypeAll:
		return cf, nil
	case model.QuestionTypeMarked:
		ids, err := s.Marks.MarkedIDs(ctx, userID)
		if err != nil {
			return cf, fmt.Errorf("load marked questions: %w", err)
		}
		cf.RestrictToInclude = true
		cf.IncludeIDs = ids
		return cf, nil
	case model.QuestionTypeUnused, model.QuestionTypeNeedsReview, model.QuestionTypeMastered:
	default:
		return cf, fmt.Errorf("%w: unknown question type %q", util.ErrInvalidInput, filter.QuestionType)
	}

	history, err := s.History.UserHistory(ctx, userID)
	if err != nil {
		return cf, fmt.Errorf("load answer history: %w", err)
	}

	switch filter.QuestionType {
	case model.QuestionTypeUnused:
		for id := range history {
			cf.ExcludeIDs = append(cf.ExcludeIDs, id)
		}
	case model.QuestionTypeNeedsReview:
		cf.RestrictToInclude = true
		for id, h := range history {
			if h.Incorrect > 0 {
				cf.IncludeIDs = append(cf.IncludeIDs, id)
			}
		}
	case model.QuestionTypeMastered:
		cf.RestrictToInclude = true
		for id, h := range history {
			if h.Mastered() {
				cf.IncludeIDs = append(cf.IncludeIDs, id)
			}
		}
	}
	return cf, nil
}

// ShuffleOptions 按 (sessionID, questionID) 生成固定的选项顺序，刷新或恢复后保持一致
func ShuffleOptions(sessionID string, questionID uint, options []model.OptionInfo) []model.OptionInfo {
	out := append([]model.OptionInfo(nil), options...)
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", sessionID, questionID)
	r := rand.New(rand.NewPCG(h.Sum64(), uint64(questionID)))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
