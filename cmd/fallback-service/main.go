package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/supportbot/finassist-go/internal/bootstrap"
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/internal/handler"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "configs/fallback-service.yaml"
	if p := os.Getenv("FINASSIST_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, logger.WithFile(cfg.Log.File))
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("fallback-service 启动中...",
		zap.String("strategy", cfg.Fallback.Strategy),
		zap.Bool("disabled", cfg.Fallback.Disabled),
		zap.String("backend", cfg.Generation.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化失败", zap.Error(err))
	}
	defer container.Close(context.Background())

	if err := container.BuildFallback(ctx); err != nil {
		zapLogger.Fatal("初始化兜底服务失败", zap.Error(err))
	}
	// 知识库加载失败不阻止启动，/health 会报告未初始化
	if err := container.LoadKnowledge(ctx); err != nil {
		zapLogger.Error("加载知识库失败", zap.Error(err))
	}

	strategy, _ := model.ParseStrategy(cfg.Fallback.Strategy)
	r := bootstrap.NewRouter(zapLogger)
	handler.NewFallbackHandler(container.Fallback, container.Knowledge, strategy, cfg.Fallback.Disabled, cfg.Server.Name, zapLogger).Register(r)

	if err := bootstrap.Serve(ctx, cfg.Server.Port, r, zapLogger); err != nil {
		zapLogger.Fatal("服务启动失败", zap.Error(err))
	}
}
