package controller

import (
	"context"

	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QuizSessionController 处理答题会话的API请求
type QuizSessionController struct {
	QuizSessionService *service.QuizSessionService
}

func NewQuizSessionController(quizSessionService *service.QuizSessionService) *QuizSessionController {
	return &QuizSessionController{QuizSessionService: quizSessionService}
}

// @Summary 创建答题会话
// @Description 按模式、计时、题型与分类筛选出题；题目不足且 allowPartial=true 时返回 warning
// @Tags 答题会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body service.CreateSessionRequest true "会话配置"
// @Success 201 {object} util.Response
// @Failure 422 {object} util.Response
// @Router /api/quiz/sessions [post]
func (c *QuizSessionController) CreateSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.QuizSessionService.CreateSession(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	if res.Partial != nil {
		util.CreatedWithWarning(ctx, res, res.Partial.Error())
		return
	}
	util.Created(ctx, res)
}

// @Summary 获取我的会话列表
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param status query string false "会话状态"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions [get]
func (c *QuizSessionController) ListSessions(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := util.Pagination(ctx.Query("page"), ctx.Query("limit"))
	status := model.SessionStatus(ctx.Query("status"))

	sessions, total, err := c.QuizSessionService.ListSessions(ctx.Request.Context(), user.UserID, status, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  sessions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary 获取会话详情
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id} [get]
func (c *QuizSessionController) GetSession(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.QuizSessionService.GetSession(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 获取会话中的题目
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param qid path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/questions/{qid} [get]
func (c *QuizSessionController) GetQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	questionID := util.MustParseUint(ctx.Param("qid"))
	if questionID == 0 {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	view, err := c.QuizSessionService.GetQuestionView(ctx.Request.Context(), ctx.Param("id"), user.UserID, questionID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 提交作答
// @Description 同一会话同一题只能提交一次，重复提交返回 409
// @Tags 答题会话
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Param attempt body service.SubmitAttemptRequest true "作答"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Failure 422 {object} util.Response
// @Router /api/quiz/sessions/{id}/attempts [post]
func (c *QuizSessionController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.QuizSessionService.SubmitAttempt(ctx.Request.Context(), ctx.Param("id"), user.UserID, req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 暂停会话
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/pause [post]
func (c *QuizSessionController) PauseSession(ctx *gin.Context) {
	c.transition(ctx, c.QuizSessionService.PauseSession)
}

// @Summary 恢复会话
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/resume [post]
func (c *QuizSessionController) ResumeSession(ctx *gin.Context) {
	c.transition(ctx, c.QuizSessionService.ResumeSession)
}

// @Summary 放弃会话
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/abandon [post]
func (c *QuizSessionController) AbandonSession(ctx *gin.Context) {
	c.transition(ctx, c.QuizSessionService.AbandonSession)
}

// @Summary 计时结束
// @Description 客户端倒计时结束时调用，按已作答题目结算
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/timeout [post]
func (c *QuizSessionController) TimeoutSession(ctx *gin.Context) {
	c.transition(ctx, c.QuizSessionService.TimeoutSession)
}

// @Summary 获取会话结果
// @Description 分类与难度小计只基于本次会话的作答
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/sessions/{id}/result [get]
func (c *QuizSessionController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.QuizSessionService.GetSessionResult(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 标记题目
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param qid path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/questions/{qid}/mark [post]
func (c *QuizSessionController) MarkQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	questionID := util.MustParseUint(ctx.Param("qid"))
	if questionID == 0 {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	if err := c.QuizSessionService.MarkQuestion(ctx.Request.Context(), user.UserID, questionID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"questionId": questionID, "marked": true})
}

// @Summary 取消标记
// @Tags 答题会话
// @Produce json
// @Security BearerAuth
// @Param qid path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/quiz/questions/{qid}/mark [delete]
func (c *QuizSessionController) UnmarkQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	questionID := util.MustParseUint(ctx.Param("qid"))
	if questionID == 0 {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	if err := c.QuizSessionService.UnmarkQuestion(ctx.Request.Context(), user.UserID, questionID); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"questionId": questionID, "marked": false})
}

type sessionTransition func(ctx context.Context, sessionID string, userID uint) (*model.QuizSession, error)

func (c *QuizSessionController) transition(ctx *gin.Context, fn sessionTransition) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	session, err := fn(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, session)
}
