package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/supportbot/finassist-go/internal/bootstrap"
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/internal/handler"
	"github.com/supportbot/finassist-go/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfgPath := "configs/dialogue-service.yaml"
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

	zapLogger.Info("dialogue-service 启动中...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := bootstrap.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("初始化失败", zap.Error(err))
	}
	defer container.Close(context.Background())

	if err := container.BuildDialogue(ctx); err != nil {
		zapLogger.Fatal("初始化对话服务失败", zap.Error(err))
	}

	// 心跳检测
	go container.Sessions.Run(ctx)

	r := bootstrap.NewRouter(zapLogger)
	handler.NewTurnHandler(container.Turns, container.States, zapLogger).Register(r)
	r.GET("/ws", handler.NewWebSocketHandler(container.Sessions, container.Turns, zapLogger).HandleWebSocket)
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "UP",
			"service":  cfg.Server.Name,
			"strategy": container.Turns.Strategy(),
			"sessions": container.Sessions.Count(),
		})
	})

	if err := bootstrap.Serve(ctx, cfg.Server.Port, r, zapLogger); err != nil {
		zapLogger.Fatal("服务启动失败", zap.Error(err))
	}
}
