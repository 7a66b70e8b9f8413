// Package commands som 命令行
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/getcharzp/go-som/internal/logging"
)

type rootOptions struct {
	envFile  string
	logLevel string
	logJSON  bool
	logger   *slog.Logger
}

// Execute 运行命令行
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "som",
		Short:        "Set-of-Mark 视觉提示: 分割、标注与视觉问答",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "环境变量文件")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "以 JSON 输出日志")

	root.AddCommand(
		segmentCmd(opts),
		serveCmd(opts),
		clientCmd(opts),
		askCmd(opts),
		setupCmd(opts),
		deployCmd(opts),
	)
	return root
}

// init 加载 .env 并配置日志, 默认的 .env 不存在时忽略
func (o *rootOptions) init(cmd *cobra.Command) error {
	if err := godotenv.Load(o.envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
			return fmt.Errorf("加载环境变量文件 %s 失败: %w", o.envFile, err)
		}
	}

	dev := os.Getenv("SOM_ENV") == "dev"
	level := o.logLevel
	if level == "" && dev {
		level = "debug"
	}
	logger, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:  level,
		JSON:   o.logJSON,
		Pretty: !o.logJSON && (dev || level == "debug"),
	})
	if err != nil {
		return err
	}
	o.logger = logger
	slog.SetDefault(logger)
	return nil
}
