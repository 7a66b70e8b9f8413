// Package deploy 在 AWS EC2 上部署演示服务, 并通过 GitHub Actions 构建镜像
package deploy

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/getcharzp/go-som/api"
)

// ErrNoInstance 没有找到项目对应的实例
var ErrNoInstance = errors.New("没有找到项目对应的 EC2 实例")

// 默认值
const (
	DefaultAMI          = "ami-0f9c346cdcac09fb5" // Deep Learning AMI GPU PyTorch 2.0.1 (Ubuntu 20.04)
	DefaultDiskSize     = 100                     // GB
	DefaultInstanceType = "g4dn.xlarge"           // T4 16GB
	DefaultUser         = "ubuntu"
	DefaultBuildImage   = "aws/codebuild/standard:7.0"
)

// Config 部署配置, 来自环境变量或 .env 文件
type Config struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	GitHubOwner        string
	GitHubRepo         string
	GitHubToken        string
	ProjectName        string
	OpenAIAPIKey       string // (可选)

	AMI          string
	DiskSize     int32
	InstanceType string
	User         string
	Port         int

	// 镜像构建 (可选)
	CodeBuildRoleARN string
	BuildImage       string
}

// ConfigFromEnv 读取部署配置, 缺少必填项时返回错误
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          os.Getenv("AWS_REGION"),
		GitHubOwner:        os.Getenv("GITHUB_OWNER"),
		GitHubRepo:         os.Getenv("GITHUB_REPO"),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		ProjectName:        os.Getenv("PROJECT_NAME"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),

		AMI:          envOr("AWS_EC2_AMI", DefaultAMI),
		DiskSize:     DefaultDiskSize,
		InstanceType: envOr("AWS_EC2_INSTANCE_TYPE", DefaultInstanceType),
		User:         envOr("AWS_EC2_USER", DefaultUser),
		Port:         api.DefaultPort,

		CodeBuildRoleARN: os.Getenv("AWS_CODEBUILD_ROLE_ARN"),
		BuildImage:       envOr("AWS_CODEBUILD_IMAGE", DefaultBuildImage),
	}
	if v, err := strconv.Atoi(os.Getenv("AWS_EC2_DISK_SIZE")); err == nil && v > 0 {
		cfg.DiskSize = int32(v)
	}
	return cfg, cfg.Validate()
}

// Validate 检查必填项
func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"AWS_ACCESS_KEY_ID", c.AWSAccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey},
		{"AWS_REGION", c.AWSRegion},
		{"GITHUB_OWNER", c.GitHubOwner},
		{"GITHUB_REPO", c.GitHubRepo},
		{"GITHUB_TOKEN", c.GitHubToken},
		{"PROJECT_NAME", c.ProjectName},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少环境变量: %s", strings.Join(missing, ", "))
	}
	return nil
}

// KeyName EC2 密钥对名称
func (c Config) KeyName() string { return c.ProjectName + "-key" }

// KeyPath 私钥保存路径
func (c Config) KeyPath() string { return "./" + c.KeyName() + ".pem" }

// SecurityGroupName 安全组名称
func (c Config) SecurityGroupName() string { return c.ProjectName + "-SecurityGroup" }

// GitHubPath owner/repo
func (c Config) GitHubPath() string { return c.GitHubOwner + "/" + c.GitHubRepo }

// ActionsURL 仓库的 GitHub Actions 页面
func (c Config) ActionsURL() string {
	return fmt.Sprintf("https://github.com/%s/actions", c.GitHubPath())
}

// ServerURL 实例上演示服务的地址
func (c Config) ServerURL(ip string) string {
	return fmt.Sprintf("http://%s:%d", ip, c.Port)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
