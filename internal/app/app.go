package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/controller"
	"quiz_engine_backend/internal/jobs"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/internal/util"
	"quiz_engine_backend/pkg/configwatcher"
	"quiz_engine_backend/pkg/database"
	"quiz_engine_backend/pkg/lock"
	"quiz_engine_backend/pkg/logger"
	"quiz_engine_backend/pkg/monitoring"
	"quiz_engine_backend/pkg/security"
	"quiz_engine_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

// jobQueue 会话完成任务的执行后端
type jobQueue interface {
	service.Dispatcher
	Stop(ctx context.Context) error
}

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	queue           jobQueue
	limiter         *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	session   *repository.QuizSessionRepository
	attempt   *repository.QuizAttemptRepository
	analytics *repository.QuestionAnalyticsRepository
	goal      *repository.GoalRepository
	question  *repository.QuestionRepository
}

type services struct {
	session    *service.QuizSessionService
	analytics  *service.AnalyticsAggregator
	goal       *service.GoalProgressService
	completion *service.CompletionProcessor
}

type controllers struct {
	session   *controller.QuizSessionController
	goal      *controller.GoalController
	analytics *controller.AnalyticsController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		session:   repository.NewQuizSessionRepository(db),
		attempt:   repository.NewQuizAttemptRepository(db),
		analytics: repository.NewQuestionAnalyticsRepository(db),
		goal:      repository.NewGoalRepository(db),
		question:  repository.NewQuestionRepository(db),
	}
}

func (a *App) newLocker(cfg *config.Config) lock.Locker {
	if cfg.Locks.Backend == util.LocksBackendRedis && a.Redis != nil {
		return lock.NewRedisLocker(a.Redis, time.Duration(cfg.Locks.TTLSeconds)*time.Second, logger.Named(logger.Log, "lock"))
	}
	return lock.NewMemoryLocker()
}

func (a *App) newActivitySink() service.ActivitySink {
	log := logger.Named(logger.Log, "activity")
	if a.Redis != nil {
		return service.NewRedisActivitySink(a.Redis, log)
	}
	return service.NewLogActivitySink(log)
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}
	locker := a.newLocker(cfg)

	s.analytics = service.NewAnalyticsAggregator(
		repos.attempt,
		repos.analytics,
		service.AnalyticsSettingsFromConfig(cfg.Analytics),
		logger.Named(logger.Log, "analytics"),
	)
	s.goal = service.NewGoalProgressService(
		db,
		repos.goal,
		repos.session,
		locker,
		a.newActivitySink(),
		logger.Named(logger.Log, "goals"),
	)
	s.completion = service.NewCompletionProcessor(s.analytics, s.goal)

	a.queue = a.newJobQueue(cfg, s.completion)

	selector := service.NewQuestionSelector(repos.question, repos.attempt, repos.question)
	s.session = service.NewQuizSessionService(
		db,
		repos.session,
		repos.attempt,
		repos.question,
		repos.question,
		selector,
		service.NewAttemptRecorder(repos.attempt),
		locker,
		a.queue,
		service.SettingsFromConfig(cfg.Quiz),
		logger.Named(logger.Log, "session"),
	)

	a.RegisterConfigCallback(s.session.UpdateSettings)
	a.RegisterConfigCallback(s.analytics.UpdateSettings)
	return s
}

func (a *App) newJobQueue(cfg *config.Config, handler jobs.Handler) jobQueue {
	log := logger.Named(logger.Log, "jobs")
	if cfg.Jobs.Backend == util.JobsBackendAsynq && a.Redis != nil {
		q := jobs.NewAsynqQueue(cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Jobs.Workers, cfg.Jobs.MaxRetry, log)
		q.RegisterHandler(handler)
		if err := q.Start(); err != nil {
			logger.Log.Fatal("Failed to start asynq worker", zap.Error(err))
		}
		return q
	}

	pool := jobs.NewPool(handler, cfg.Jobs.Workers, cfg.Jobs.QueueSize, log)
	pool.Start()
	return pool
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		session:   controller.NewQuizSessionController(s.session),
		goal:      controller.NewGoalController(s.goal),
		analytics: controller.NewAnalyticsController(s.analytics),
		health:    controller.NewHealthController(db, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时结算超时会话、放弃过期会话、清理限流条目
func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	interval := time.Duration(a.Config.Quiz.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.session.ExpireOverdueSessions(ctx); err != nil {
					logger.Log.Error("expire overdue sessions error", zap.Error(err))
				} else if n > 0 {
					logger.Log.Info("expired overdue sessions", zap.Int("count", n))
				}
				if n, err := s.session.AbandonStaleSessions(ctx); err != nil {
					logger.Log.Error("abandon stale sessions error", zap.Error(err))
				} else if n > 0 {
					logger.Log.Info("abandoned stale sessions", zap.Int("count", n))
				}
			}
		}
	}()

	go a.limiter.Run(ctx.Done())

	go func() {
		if err := configwatcher.WatchConfig(ctx, configFile, a.applyConfig); err != nil {
			logger.Log.Warn("config hot reload disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, services)

	return app
}

// RebuildAnalytics 全量重建题目统计
func (a *App) RebuildAnalytics(ctx context.Context) (int, error) {
	return a.services.analytics.RecalculateAll(ctx)
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(ctx)
	logger.Log.Info("Server exiting")
}

// Close 停止后台任务并等待已入队的完成任务执行完
func (a *App) Close(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			logger.Log.Warn("job queue did not drain", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}
