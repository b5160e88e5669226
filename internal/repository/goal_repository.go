package repository

import (
	"context"
	"time"

	"quiz_engine_backend/internal/model"

	"gorm.io/gorm"
)

// GoalRepository 处理用户目标的数据访问
type GoalRepository struct {
	DB *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{DB: db}
}

func (r *GoalRepository) WithTx(tx *gorm.DB) *GoalRepository {
	return &GoalRepository{DB: tx}
}

// Create 创建新的目标
func (r *GoalRepository) Create(ctx context.Context, goal *model.UserGoal) error {
	return r.DB.WithContext(ctx).Create(goal).Error
}

// UpdateProgress 更新目标进度与完成状态
func (r *GoalRepository) UpdateProgress(ctx context.Context, goal *model.UserGoal) error {
	return r.DB.WithContext(ctx).Model(&model.UserGoal{}).
		Where("id = ?", goal.ID).
		Updates(map[string]interface{}{
			"current_value": goal.CurrentValue,
			"is_completed":  goal.IsCompleted,
			"completed_at":  goal.CompletedAt,
			"updated_at":    time.Now(),
		}).Error
}

// Delete 删除目标，返回是否有记录被删除
func (r *GoalRepository) Delete(ctx context.Context, id, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.UserGoal{})
	return res.RowsAffected > 0, res.Error
}

// FindByIDAndUserID 根据ID和用户ID查找目标
func (r *GoalRepository) FindByIDAndUserID(ctx context.Context, id, userID uint) (*model.UserGoal, error) {
	var goal model.UserGoal
	err := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&goal).Error
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// FindByUserID 获取用户的所有目标
func (r *GoalRepository) FindByUserID(ctx context.Context, userID uint) ([]model.UserGoal, error) {
	var goals []model.UserGoal
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("ends_at").Find(&goals).Error
	return goals, err
}

// FindActive 获取用户未完成且未过期的目标
func (r *GoalRepository) FindActive(ctx context.Context, userID uint, now time.Time) ([]model.UserGoal, error) {
	var goals []model.UserGoal
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND is_completed = ? AND ends_at >= ?", userID, false, now).
		Order("id ASC").
		Find(&goals).Error
	return goals, err
}
