// 手动全量重建题目统计
//
// 正常情况下每次会话完成都会重算涉及的题目，此脚本用于首次部署、
// 数据导入或统计任务长时间失败后的修复。不启动 HTTP 服务与后台任务。
//
// 用法: go run scripts/rebuild_analytics.go

package main

import (
	"context"
	"log"

	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/internal/repository"
	"quiz_engine_backend/internal/service"
	"quiz_engine_backend/pkg/database"
	"quiz_engine_backend/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	aggregator := service.NewAnalyticsAggregator(
		repository.NewQuizAttemptRepository(db),
		repository.NewQuestionAnalyticsRepository(db),
		service.AnalyticsSettingsFromConfig(cfg.Analytics),
		logger.Named(logger.Log, "analytics"),
	)

	log.Println("开始重建题目统计...")
	n, err := aggregator.RecalculateAll(context.Background())
	if err != nil {
		logger.Log.Error("部分题目重建失败", zap.Error(err))
	}
	log.Printf("完成！共重建 %d 道题目", n)
}
