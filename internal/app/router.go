package app

import (
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/middleware"
	"quiz_engine_backend/internal/model"
	"quiz_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), a.limiter.Middleware())
	{
		a.registerQuizRoutes(authGroup, c)
		a.registerGoalRoutes(authGroup, c)

		authGroup.GET("/analytics/questions", c.analytics.GetQuestionAnalytics)
	}

	// 3. 管理员相关接口
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/analytics/recalculate", c.analytics.Recalculate)
	}
}

func (a *App) registerQuizRoutes(rg *gin.RouterGroup, c *controllers) {
	quiz := rg.Group("/quiz")

	sessions := quiz.Group("/sessions")
	{
		sessions.POST("", c.session.CreateSession)
		sessions.GET("", c.session.ListSessions)
		sessions.GET("/:id", c.session.GetSession)
		sessions.GET("/:id/questions/:qid", c.session.GetQuestion)
		sessions.POST("/:id/attempts", c.session.SubmitAttempt)
		sessions.POST("/:id/pause", c.session.PauseSession)
		sessions.POST("/:id/resume", c.session.ResumeSession)
		sessions.POST("/:id/abandon", c.session.AbandonSession)
		sessions.POST("/:id/timeout", c.session.TimeoutSession)
		sessions.GET("/:id/result", c.session.GetResult)
	}

	quiz.POST("/questions/:qid/mark", c.session.MarkQuestion)
	quiz.DELETE("/questions/:qid/mark", c.session.UnmarkQuestion)
}

func (a *App) registerGoalRoutes(rg *gin.RouterGroup, c *controllers) {
	goals := rg.Group("/goals")
	{
		goals.GET("", c.goal.GetUserGoals)
		goals.POST("", c.goal.CreateGoal)
		goals.GET("/:id", c.goal.GetGoal)
		goals.DELETE("/:id", c.goal.DeleteGoal)
	}
}
