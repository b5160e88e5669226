package controller

import (
	"errors"

	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AnalyticsController struct {
	Aggregator *service.AnalyticsAggregator
}

func NewAnalyticsController(aggregator *service.AnalyticsAggregator) *AnalyticsController {
	return &AnalyticsController{Aggregator: aggregator}
}

// @Summary 获取题目统计
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param ids query string true "逗号分隔的题目ID"
// @Success 200 {object} util.Response
// @Router /api/analytics/questions [get]
func (c *AnalyticsController) GetQuestionAnalytics(ctx *gin.Context) {
	ids := util.ParseUintList(ctx.Query("ids"))
	if len(ids) == 0 {
		util.BadRequest(ctx, "ids is required")
		return
	}
	if len(ids) > util.MaxLimit {
		util.BadRequest(ctx, "too many ids")
		return
	}

	rows, err := c.Aggregator.GetQuestionAnalytics(ctx.Request.Context(), ids)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

type recalculateRequest struct {
	QuestionIDs []uint `json:"questionIds"`
}

// @Summary 重算题目统计
// @Description 不传 questionIds 时全量重建；部分失败时返回失败的题目ID
// @Tags 统计
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/analytics/recalculate [post]
func (c *AnalyticsController) Recalculate(ctx *gin.Context) {
	var req recalculateRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	var (
		count int
		err   error
	)
	if len(req.QuestionIDs) > 0 {
		count = len(req.QuestionIDs)
		err = c.Aggregator.Recalculate(ctx.Request.Context(), req.QuestionIDs)
	} else {
		count, err = c.Aggregator.RecalculateAll(ctx.Request.Context())
	}

	var aggErr *util.AggregationError
	if errors.As(err, &aggErr) {
		failed := make([]uint, 0, len(aggErr.Failed))
		for id := range aggErr.Failed {
			failed = append(failed, id)
		}
		// RecalculateAll 返回的数量已扣除失败项
		if len(req.QuestionIDs) > 0 {
			count -= len(failed)
		}
		util.Success(ctx, gin.H{"recalculated": count, "failed": failed})
		return
	}
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"recalculated": count, "failed": []uint{}})
}
