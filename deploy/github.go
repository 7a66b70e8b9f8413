package deploy

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/go-github/v66/github"
	"golang.org/x/crypto/nacl/box"
)

// SecretsAPI 仓库 Actions secret 接口, *github.ActionsService 实现了该接口
type SecretsAPI interface {
	GetRepoPublicKey(ctx context.Context, owner, repo string) (*github.PublicKey, *github.Response, error)
	CreateOrUpdateRepoSecret(ctx context.Context, owner, repo string, eSecret *github.EncryptedSecret) (*github.Response, error)
}

// NewGitHubClient 使用个人访问令牌创建 GitHub 客户端
func NewGitHubClient(token string) *github.Client {
	return github.NewClient(nil).WithAuthToken(token)
}

// EncryptSecret 使用仓库公钥 (base64) 以 sealed box 加密 value, 返回 base64 密文
func EncryptSecret(publicKey, value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		return "", fmt.Errorf("解码仓库公钥失败: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("仓库公钥长度错误: %d", len(raw))
	}
	var pk [32]byte
	copy(pk[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(value), &pk, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("加密 secret 失败: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Secrets 设置仓库的 Actions secret
type Secrets struct {
	cfg    Config
	api    SecretsAPI
	logger *slog.Logger
}

// NewSecrets 创建 Secrets
func NewSecrets(cfg Config, api SecretsAPI, logger *slog.Logger) *Secrets {
	return &Secrets{cfg: cfg, api: api, logger: orDefault(logger)}
}

// Set 设置单个 secret
func (s *Secrets) Set(ctx context.Context, name, value string) error {
	key, _, err := s.api.GetRepoPublicKey(ctx, s.cfg.GitHubOwner, s.cfg.GitHubRepo)
	if err != nil {
		return fmt.Errorf("获取仓库公钥失败: %w", err)
	}
	encrypted, err := EncryptSecret(key.GetKey(), value)
	if err != nil {
		return err
	}
	_, err = s.api.CreateOrUpdateRepoSecret(ctx, s.cfg.GitHubOwner, s.cfg.GitHubRepo, &github.EncryptedSecret{
		Name:           name,
		KeyID:          key.GetKeyID(),
		EncryptedValue: encrypted,
	})
	if err != nil {
		return fmt.Errorf("设置 secret %s 失败: %w", name, err)
	}
	s.logger.Info("已设置 secret", "name", name)
	return nil
}

// SetAll 设置 AWS 凭证、OpenAI key 与 SSH 私钥, 私钥读取失败只记录日志
func (s *Secrets) SetAll(ctx context.Context) error {
	values := []struct{ name, value string }{
		{"AWS_ACCESS_KEY_ID", s.cfg.AWSAccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", s.cfg.AWSSecretAccessKey},
		{"OPENAI_API_KEY", s.cfg.OpenAIAPIKey},
	}
	for _, v := range values {
		if err := s.Set(ctx, v.name, v.value); err != nil {
			return err
		}
	}

	pem, err := os.ReadFile(s.cfg.KeyPath())
	if err != nil {
		s.logger.Error("读取 SSH 私钥失败", "path", s.cfg.KeyPath(), "error", err)
		return nil
	}
	return s.Set(ctx, "SSH_PRIVATE_KEY", string(pem))
}
