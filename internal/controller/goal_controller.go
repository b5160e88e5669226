package controller

import (
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GoalController 处理用户目标的API请求
type GoalController struct {
	GoalService *service.GoalProgressService
}

func NewGoalController(goalService *service.GoalProgressService) *GoalController {
	return &GoalController{GoalService: goalService}
}

// @Summary 创建目标
// @Description 创建题量、测验数、学习时长或正确率目标
// @Tags 目标
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param goal body service.CreateGoalRequest true "目标信息"
// @Success 201 {object} util.Response
// @Router /api/goals [post]
func (c *GoalController) CreateGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateGoalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	goal, err := c.GoalService.CreateGoal(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, goal)
}

// @Summary 获取所有目标
// @Tags 目标
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/goals [get]
func (c *GoalController) GetUserGoals(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	goals, err := c.GoalService.GetUserGoals(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, goals)
}

// @Summary 获取目标详情
// @Tags 目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Success 200 {object} util.Response
// @Router /api/goals/{id} [get]
func (c *GoalController) GetGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	goalID := util.MustParseUint(ctx.Param("id"))
	if goalID == 0 {
		util.BadRequest(ctx, "无效的目标ID")
		return
	}

	goal, err := c.GoalService.GetGoalByID(ctx.Request.Context(), user.UserID, goalID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, goal)
}

// @Summary 删除目标
// @Tags 目标
// @Produce json
// @Security BearerAuth
// @Param id path int true "目标ID"
// @Success 200 {object} util.Response
// @Router /api/goals/{id} [delete]
func (c *GoalController) DeleteGoal(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	goalID := util.MustParseUint(ctx.Param("id"))
	if goalID == 0 {
		util.BadRequest(ctx, "无效的目标ID")
		return
	}

	if err := c.GoalService.DeleteGoal(ctx.Request.Context(), user.UserID, goalID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}
