package commands

import (
	"errors"

	"github.com/spf13/cobra"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/pipeline"
	"github.com/getcharzp/go-som/visualizer"
)

// errNoModels 一个模型都没有加载成功
var errNoModels = errors.New("没有可用的模型")

func setupCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "逐个加载模型以检查权重与运行时, 失败只记录日志",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.logger.Info("开始检查模型")
			vis, err := visualizer.New("")
			if err != nil {
				return err
			}
			defer vis.Close()

			reg := pipeline.Load(som.ModelPathsFromEnv(), vis, root.logger)
			defer reg.Close()
			if len(reg.Available()) == 0 {
				return errNoModels
			}
			return nil
		},
	}
}
