package deploy

import (
	"context"
	"fmt"
	"log/slog"
)

// Deployer 完整的部署流程
type Deployer struct {
	Config      Config
	Provisioner *Provisioner
	Configurer  *Configurer
	Secrets     *Secrets
	Git         *Git
	Logger      *slog.Logger
}

// Start 设置 secret、准备实例、生成工作流并推送, 推送后由 GitHub Actions 在实例上构建并启动服务
//
// git 相关的失败只记录日志, 返回运行中实例的服务地址.
func (d *Deployer) Start(ctx context.Context) (string, error) {
	logger := orDefault(d.Logger)

	if err := d.Secrets.SetAll(ctx); err != nil {
		return "", err
	}

	inst, err := d.Provisioner.DeployInstance(ctx)
	if err != nil {
		return "", err
	}
	if inst.PublicIP == "" {
		return "", fmt.Errorf("实例 %s 没有公网 IP", inst.ID)
	}
	if err := d.Configurer.Configure(ctx, inst.PublicIP); err != nil {
		return "", err
	}

	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	path, err := WriteWorkflow(d.Git.Dir, NewWorkflowData(d.Config, branch, inst.PublicIP))
	if err != nil {
		return "", err
	}
	logger.Info("已生成 GitHub Actions 工作流", "path", path)

	if err := d.Git.SetRemoteWithToken(ctx, d.Config.GitHubOwner, d.Config.GitHubRepo, d.Config.GitHubToken); err != nil {
		logger.Error("更新 git remote 失败", "error", err)
	}
	if err := d.Git.Commit(ctx, "add workflow file", WorkflowPath); err != nil {
		logger.Error("提交工作流失败", "error", err)
	} else if err := d.Git.PushUpstream(ctx, branch); err != nil {
		logger.Error("推送失败", "error", err)
	}

	serverURL := d.Config.ServerURL(inst.PublicIP)
	logger.Info("部署完成")
	logger.Info("查看 GitHub Actions", "url", d.Config.ActionsURL())
	logger.Info("构建完成后运行", "cmd", "som client "+serverURL)
	return serverURL, nil
}

// Workflow 只为运行中的实例生成工作流文件
func (d *Deployer) Workflow(ctx context.Context) (string, error) {
	inst, err := d.Provisioner.DeployInstance(ctx)
	if err != nil {
		return "", err
	}
	branch, err := d.Git.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	return WriteWorkflow(d.Git.Dir, NewWorkflowData(d.Config, branch, inst.PublicIP))
}
