package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/up-zero/gotool/imageutil"

	"github.com/getcharzp/go-som/gpt4v"
	"github.com/getcharzp/go-som/internal/cli"
	"github.com/getcharzp/go-som/internal/render"
	"github.com/getcharzp/go-som/marks"
)

func askCmd(root *rootOptions) *cobra.Command {
	var metaPrompt bool
	cmd := &cobra.Command{
		Use:   "ask <image> <prompt>...",
		Short: "对已标注的图片提问, 并列出回答中引用的标记",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imageutil.Open(args[0])
			if err != nil {
				return fmt.Errorf("打开图片失败: %w", err)
			}
			cfg := gpt4v.ConfigFromEnv()
			if metaPrompt {
				cfg.MetaPrompt = gpt4v.MetaPrompt
			}
			c, err := gpt4v.New(cfg)
			if err != nil {
				return err
			}

			prompt := strings.Join(args[1:], " ")
			ctx := cmd.Context()
			reply, err := cli.ExecuteWithSpinner("等待回答...", func() (string, error) {
				return c.Ask(ctx, prompt, img)
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Markdown(reply, cli.IsATTY()))
			if refs := marks.Parse(reply); len(refs) > 0 {
				root.logger.Info("引用的标记", "marks", refs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&metaPrompt, "meta-prompt", true, "发送标记说明作为 system 消息")
	return cmd
}
