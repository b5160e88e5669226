package repository

import (
	"context"

	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestionRepository 题库的只读访问，以及用户题目标记
type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// GetQuestion 加载题目、分类与选项，选项按 order 排序
func (r *QuestionRepository) GetQuestion(ctx context.Context, id uint) (*model.QuestionInfo, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).
		Preload("Category").
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("`order` ASC, id ASC")
		}).
		First(&q, id).Error
	if err != nil {
		return nil, err
	}

	info := &model.QuestionInfo{
		ID:           q.ID,
		CategoryID:   q.CategoryID,
		CategoryName: q.Category.Name,
		CategoryKind: q.Category.Kind,
		Difficulty:   q.Difficulty,
		Status:       q.Status,
		Stem:         q.Stem,
		Explanation:  q.Explanation,
		Options:      make([]model.OptionInfo, 0, len(q.Options)),
	}
	for _, o := range q.Options {
		info.Options = append(info.Options, model.OptionInfo{ID: o.ID, Content: o.Content})
		if o.IsCorrect {
			info.CorrectOptionID = o.ID
		}
	}
	return info, nil
}

// ListCandidates 返回满足条件的已发布题目ID，按ID升序
func (r *QuestionRepository) ListCandidates(ctx context.Context, f model.CandidateFilter) ([]uint, error) {
	var ids []uint
	if f.RestrictToInclude && len(f.IncludeIDs) == 0 {
		return ids, nil
	}

	query := r.DB.WithContext(ctx).Model(&model.Question{}).
		Joins("JOIN categories ON categories.id = questions.category_id AND categories.deleted_at IS NULL").
		Where("questions.status = ?", model.QuestionPublished)

	if len(f.CategoryKinds) > 0 {
		query = query.Where("categories.kind IN ?", f.CategoryKinds)
	}
	if len(f.CategoryIDs) > 0 {
		query = query.Where("questions.category_id IN ?", f.CategoryIDs)
	}
	if f.RestrictToInclude {
		query = query.Where("questions.id IN ?", f.IncludeIDs)
	}
	if len(f.ExcludeIDs) > 0 {
		query = query.Where("questions.id NOT IN ?", f.ExcludeIDs)
	}

	err := query.Order("questions.id ASC").Pluck("questions.id", &ids).Error
	return ids, err
}

// Mark 标记题目，重复标记不报错
func (r *QuestionRepository) Mark(ctx context.Context, userID, questionID uint) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.QuestionMark{UserID: userID, QuestionID: questionID}).Error
}

func (r *QuestionRepository) Unmark(ctx context.Context, userID, questionID uint) error {
	return r.DB.WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Delete(&model.QuestionMark{}).Error
}

// MarkedIDs 用户标记过的题目ID
func (r *QuestionRepository) MarkedIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.QuestionMark{}).
		Where("user_id = ?", userID).
		Order("question_id ASC").
		Pluck("question_id", &ids).Error
	return ids, err
}
