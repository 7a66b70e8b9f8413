package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getcharzp/go-som/api"
	"github.com/getcharzp/go-som/client"
	"github.com/getcharzp/go-som/internal/cli"
	"github.com/getcharzp/go-som/internal/render"
)

func clientCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		prompt string
	)
	cmd := &cobra.Command{
		Use:   "client [server-url]",
		Short: "使用示例参数调用演示服务",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverURL := fmt.Sprintf("http://localhost:%d", api.DefaultPort)
			if len(args) == 1 {
				serverURL = args[0]
			}
			ctx := cmd.Context()
			c := client.New(serverURL, nil)

			resp, err := cli.ExecuteWithSpinner("请求 "+serverURL, func() (*api.InferenceResponse, error) {
				return c.Predict(ctx, client.ExampleRequest())
			})
			if err != nil {
				return err
			}
			root.logger.Info("标注完成", "run", resp.RunID, "model", resp.Model, "marks", len(resp.Marks))
			if err := client.SaveResult(resp, output); err != nil {
				return err
			}
			root.logger.Info("结果已保存", "path", output)

			if prompt == "" {
				return nil
			}
			reply, err := c.Chat(ctx, prompt)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), render.Markdown(reply.Reply, cli.IsATTY()))
			if len(reply.Marks) > 0 {
				root.logger.Info("引用的标记", "marks", reply.Marks)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "som_result.png", "结果保存路径")
	cmd.Flags().StringVar(&prompt, "prompt", "", "(可选) 标注后对结果提问")
	return cmd
}
