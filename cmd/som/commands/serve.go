package commands

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/gpt4v"
	"github.com/getcharzp/go-som/history"
	"github.com/getcharzp/go-som/pipeline"
	"github.com/getcharzp/go-som/server"
	"github.com/getcharzp/go-som/visualizer"
)

func serveCmd(root *rootOptions) *cobra.Command {
	cfg := server.DefaultConfig()
	var (
		dbPath       string
		noTranscript bool
		font         string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动演示服务",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := root.logger
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			vis, err := visualizer.New(font)
			if err != nil {
				return err
			}
			defer vis.Close()

			reg := pipeline.Load(som.ModelPathsFromEnv(), vis, logger)
			defer reg.Close()

			deps := server.Deps{Segmenter: reg, Runs: history.NewRuns(0), Logger: logger}
			chat, err := gpt4v.New(gpt4v.ConfigFromEnv())
			switch {
			case err == nil:
				deps.Chat = chat
			case errors.Is(err, gpt4v.ErrAPIKeyMissing):
				logger.Warn("未配置视觉问答, /api/chat 不可用", "error", err)
			default:
				return err
			}

			if !noTranscript {
				if dbPath == "" {
					dbPath = envOr("SOM_DB", "som.db")
				}
				transcript, err := history.OpenTranscript(dbPath)
				if err != nil {
					return err
				}
				defer transcript.Close()
				deps.Transcript = transcript
			}

			srv, err := server.New(cfg, deps)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "监听地址")
	f.StringVar(&dbPath, "db", "", "对话记录数据库, 默认读取 SOM_DB, 都为空时为 som.db")
	f.BoolVar(&noTranscript, "no-transcript", false, "不保存对话记录")
	f.StringVar(&font, "font", "", "标记字体, 为空时使用内置字体")
	f.Int64Var(&cfg.MaxBodyBytes, "max-body", cfg.MaxBodyBytes, "请求体上限 (字节)")
	return cmd
}
