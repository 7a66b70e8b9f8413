package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/spf13/cobra"

	"github.com/getcharzp/go-som/deploy"
	"github.com/getcharzp/go-som/internal/cli"
)

// deployEnv 部署命令共用的客户端
type deployEnv struct {
	cfg      deploy.Config
	deployer *deploy.Deployer
	builder  *deploy.Builder
}

func newDeployEnv(ctx context.Context, root *rootOptions) (*deployEnv, error) {
	cfg, err := deploy.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	awsCfg, err := deploy.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	logger := root.logger
	gh := deploy.NewGitHubClient(cfg.GitHubToken)
	return &deployEnv{
		cfg: cfg,
		deployer: &deploy.Deployer{
			Config:      cfg,
			Provisioner: deploy.NewProvisioner(cfg, ec2.NewFromConfig(awsCfg), logger),
			Configurer:  deploy.NewConfigurer(cfg, nil, logger),
			Secrets:     deploy.NewSecrets(cfg, gh.Actions, logger),
			Git:         deploy.NewGit(dir, nil, logger),
			Logger:      logger,
		},
		builder: deploy.NewBuilder(cfg, ecr.NewFromConfig(awsCfg), codebuild.NewFromConfig(awsCfg), logger),
	}, nil
}

// deploySub 创建需要部署环境的子命令
func deploySub(root *rootOptions, use, short string, run func(cmd *cobra.Command, env *deployEnv) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newDeployEnv(cmd.Context(), root)
			if err != nil {
				return err
			}
			return run(cmd, env)
		},
	}
}

func deployCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "在 AWS EC2 上部署演示服务",
	}

	start := deploySub(root, "start", "创建或复用实例, 配置 Docker 并推送构建工作流", func(cmd *cobra.Command, env *deployEnv) error {
		url, err := env.deployer.Start(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	})
	pause := deploySub(root, "pause", "停止运行中的实例", func(cmd *cobra.Command, env *deployEnv) error {
		return env.deployer.Provisioner.Pause(cmd.Context())
	})
	stop := deploySub(root, "stop", "终止实例并删除安全组", func(cmd *cobra.Command, env *deployEnv) error {
		ctx := cmd.Context()
		_, err := cli.ExecuteWithSpinner("终止实例...", func() (struct{}, error) {
			return struct{}{}, env.deployer.Provisioner.Stop(ctx)
		})
		return err
	})
	status := deploySub(root, "status", "列出项目的实例", func(cmd *cobra.Command, env *deployEnv) error {
		instances, err := env.deployer.Provisioner.Status(cmd.Context())
		if err != nil {
			return err
		}
		if len(instances) == 0 {
			root.logger.Info("没有实例")
		}
		return nil
	})
	ssh := deploySub(root, "ssh", "登录运行中的实例", func(cmd *cobra.Command, env *deployEnv) error {
		running, err := env.deployer.Provisioner.Running(cmd.Context())
		if err != nil {
			return err
		}
		args := deploy.SSHArgs(env.cfg, running[0].PublicIP)
		root.logger.Info("连接实例", "id", running[0].ID, "cmd", append([]string{"ssh"}, args...))
		c := exec.CommandContext(cmd.Context(), "ssh", args...)
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		return c.Run()
	})
	workflow := deploySub(root, "workflow", "只生成 GitHub Actions 工作流文件", func(cmd *cobra.Command, env *deployEnv) error {
		path, err := env.deployer.Workflow(cmd.Context())
		if err != nil {
			return err
		}
		root.logger.Info("已生成工作流", "path", path)
		return nil
	})
	secrets := deploySub(root, "secrets", "设置仓库的 Actions secret", func(cmd *cobra.Command, env *deployEnv) error {
		return env.deployer.Secrets.SetAll(cmd.Context())
	})

	cmd.AddCommand(start, pause, stop, status, ssh, workflow, secrets, registryCmd(root))
	return cmd
}

func registryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "使用 ECR 与 CodeBuild 构建镜像",
	}
	build := deploySub(root, "build", "确保镜像仓库与构建项目存在并启动构建", func(cmd *cobra.Command, env *deployEnv) error {
		ctx := cmd.Context()
		uri, err := env.builder.EnsureRepository(ctx)
		if err != nil {
			return err
		}
		if err := env.builder.EnsureProject(ctx, uri); err != nil {
			return err
		}
		id, err := env.builder.StartBuild(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
	remove := deploySub(root, "delete", "删除构建项目与镜像仓库", func(cmd *cobra.Command, env *deployEnv) error {
		ctx := cmd.Context()
		if err := env.builder.DeleteProject(ctx); err != nil {
			root.logger.Error("删除构建项目失败", "error", err)
		}
		return env.builder.DeleteRepository(ctx)
	})
	cmd.AddCommand(build, remove)
	return cmd
}
