package commands

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/up-zero/gotool/imageutil"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/internal/cli"
	"github.com/getcharzp/go-som/pipeline"
	"github.com/getcharzp/go-som/visualizer"
)

const defaultImage = "./examples/ironing_man.jpg"

type segmentOptions struct {
	slider    float64
	mode      string
	alpha     float64
	labelMode string
	annoMode  []string
	mask      string
	font      string
	outputDir string
}

func segmentCmd(root *rootOptions) *cobra.Command {
	def := som.DefaultOptions()
	o := &segmentOptions{}
	cmd := &cobra.Command{
		Use:   "segment [image]",
		Short: "分割图片并保存带标记的结果",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultImage
			if len(args) == 1 {
				path = args[0]
			}
			return o.run(cmd.Context(), root, path)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&o.slider, "slider", def.Slider, "粒度 [1, 3], 越大分割越细")
	f.StringVar(&o.mode, "mode", string(def.Mode), "分割模式 (Automatic, Interactive)")
	f.Float64Var(&o.alpha, "alpha", def.Alpha, "mask 透明度 [0, 1]")
	f.StringVar(&o.labelMode, "label-mode", string(def.LabelMode), "标记样式 (Number, Alphabet)")
	f.StringSliceVar(&o.annoMode, "anno-mode", annoStrings(def.AnnoMode), "标注方式 (Mask, Box, Mark)")
	f.StringVar(&o.mask, "mask", "", "交互模式的涂抹图片, 白色为涂抹区域")
	f.StringVar(&o.font, "font", "", "标记字体, 为空时使用内置字体")
	f.StringVar(&o.outputDir, "output-dir", "", "输出目录, 默认读取 OUTPUT_DIR, 都为空时为当前目录")
	return cmd
}

// options 解析命令行参数
func (o *segmentOptions) options() (som.Options, error) {
	mode, err := som.ParseMode(o.mode)
	if err != nil {
		return som.Options{}, err
	}
	labelMode, err := som.ParseLabelMode(o.labelMode)
	if err != nil {
		return som.Options{}, err
	}
	annoMode, err := som.ParseAnnoModes(o.annoMode)
	if err != nil {
		return som.Options{}, err
	}
	return som.Options{
		Slider:    o.slider,
		Mode:      mode,
		Alpha:     o.alpha,
		LabelMode: labelMode,
		AnnoMode:  annoMode,
	}, nil
}

func (o *segmentOptions) run(ctx context.Context, root *rootOptions, path string) error {
	opts, err := o.options()
	if err != nil {
		return err
	}
	img, err := imageutil.Open(path)
	if err != nil {
		return fmt.Errorf("打开图片失败: %w", err)
	}
	req := pipeline.Request{Image: img, Options: opts}
	if o.mask != "" {
		if req.Scribble, err = imageutil.Open(o.mask); err != nil {
			return fmt.Errorf("打开涂抹图片失败: %w", err)
		}
	}

	vis, err := visualizer.New(o.font)
	if err != nil {
		return err
	}
	defer vis.Close()

	reg, err := cli.ExecuteWithSpinner("加载模型...", func() (*pipeline.Registry, error) {
		return pipeline.Load(som.ModelPathsFromEnv(), vis, root.logger), nil
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	res, err := cli.ExecuteWithSpinner("分割中...", func() (*pipeline.Result, error) {
		return reg.Run(ctx, req)
	})
	if err != nil {
		return err
	}

	dir := o.outputDir
	if dir == "" {
		dir = envOr("OUTPUT_DIR", ".")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	out := outputPath(dir, path)
	if err := saveImage(out, res.Image); err != nil {
		return err
	}
	root.logger.Info("结果已保存", "path", out, "model", res.Selection.Model, "marks", len(res.Marks))
	return nil
}

// outputPath 输出路径为 dir/seg-<文件名>
func outputPath(dir, imagePath string) string {
	return filepath.Join(dir, "seg-"+filepath.Base(imagePath))
}

func saveImage(path string, img image.Image) error {
	if err := imageutil.Save(path, img, 100); err != nil {
		return fmt.Errorf("保存图片失败: %w", err)
	}
	return nil
}

func annoStrings(modes []som.AnnoMode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
