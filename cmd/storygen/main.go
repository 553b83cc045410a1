// Package main storygen 命令行入口：run 单次生成，serve 提供 HTTP API，worker 消费生成任务
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"z-novel-storygen/internal/config"
	"z-novel-storygen/pkg/logger"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storygen",
		Short:         "Generate long-form stories from a single topic",
		Long:          "storygen drafts an outline, splits it into chapter units and expands every unit into prose, writing the document to a text file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/config.yaml)")

	root.AddCommand(newRunCmd(), newServeCmd(), newWorkerCmd())
	return root
}

// loadConfig 加载 .env 与配置文件并初始化日志
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
