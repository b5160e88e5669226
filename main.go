// @title Quiz Engine API
// @version 1.0
// @description 答题会话、作答记录、题目统计与用户目标服务。

// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"

	"quiz_engine_backend/internal/app"
	"quiz_engine_backend/internal/config"
	"quiz_engine_backend/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	rebuild := flag.Bool("rebuild-analytics", false, "全量重建题目统计，完成后退出")
	flag.Parse()

	// .env 可选
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly
	cfg.RebuildAnalytics = *rebuild

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if cfg.MigrateOnly {
		logger.Log.Info("数据库迁移完成，退出程序")
		return
	}

	if cfg.RebuildAnalytics {
		ctx := context.Background()
		n, err := application.RebuildAnalytics(ctx)
		application.Close(ctx)
		if err != nil {
			logger.Log.Fatal("重建题目统计失败", zap.Int("rebuilt", n), zap.Error(err))
		}
		logger.Log.Info("题目统计重建完成", zap.Int("questions", n))
		return
	}

	application.Run()
}
