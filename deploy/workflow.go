package deploy

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// WorkflowPath 生成的工作流文件路径 (相对仓库根目录)
const WorkflowPath = ".github/workflows/docker-build-ec2.yml"

const workflowHeader = "# Autogenerated via som deploy, do not edit!\n\n"

//go:embed templates/docker-build-ec2.yml.tmpl
var workflowText string

// 工作流中的 ${{ }} 属于 GitHub Actions, 模板使用 [[ ]]
var workflowTmpl = template.Must(template.New("workflow").Delims("[[", "]]").Parse(workflowText))

// WorkflowData 工作流模板参数
type WorkflowData struct {
	BranchName  string
	Host        string
	Username    string
	ProjectName string
	GitHubPath  string
	GitHubRepo  string
}

// NewWorkflowData 由部署配置生成模板参数
func NewWorkflowData(cfg Config, branch, host string) WorkflowData {
	return WorkflowData{
		BranchName:  branch,
		Host:        host,
		Username:    cfg.User,
		ProjectName: cfg.ProjectName,
		GitHubPath:  cfg.GitHubPath(),
		GitHubRepo:  cfg.GitHubRepo,
	}
}

// RenderWorkflow 渲染工作流, 带自动生成的文件头
func RenderWorkflow(data WorkflowData) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(workflowHeader)
	if err := workflowTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("渲染工作流失败: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteWorkflow 渲染并写入 root 下的 WorkflowPath, 返回文件路径
func WriteWorkflow(root string, data WorkflowData) (string, error) {
	content, err := RenderWorkflow(data)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, WorkflowPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("创建工作流目录失败: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("写入工作流失败: %w", err)
	}
	return path, nil
}
