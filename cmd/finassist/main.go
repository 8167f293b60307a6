// Command finassist 在本地调用兜底回答与对话状态，便于调试知识库与提示词。
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/supportbot/finassist-go/internal/bootstrap"
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/pkg/logger"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "finassist",
	Short:         "BillMart support assistant toolbox",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/fallback-service.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.AddCommand(askCmd, turnCmd, ingestCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// newContainer 加载配置并创建依赖容器，调用方负责 Close
func newContainer(ctx context.Context) (*bootstrap.Container, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return bootstrap.New(ctx, cfg, zapLogger)
}
