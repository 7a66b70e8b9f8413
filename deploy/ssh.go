package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SetupCommands 在实例上安装 Docker 与 docker-compose
var SetupCommands = []string{
	"sudo apt-get update",
	"sudo apt-get install -y docker.io",
	"sudo systemctl start docker",
	"sudo systemctl enable docker",
	"sudo usermod -a -G docker ${USER}",
	`sudo curl -L "https://github.com/docker/compose/releases/download/1.29.2/docker-compose-$(uname -s)-$(uname -m)" -o /usr/local/bin/docker-compose`,
	"sudo chmod +x /usr/local/bin/docker-compose",
	"sudo ln -s /usr/local/bin/docker-compose /usr/bin/docker-compose",
}

// dpkg 被占用时的错误信息
const dpkgLocked = "Could not get lock"

// Retry 固定次数、固定间隔的重试参数
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Runner 在远程主机上执行命令
type Runner interface {
	// Run 执行命令, 返回标准错误输出
	Run(cmd string) (stderr string, err error)
	Close() error
}

// Dialer 建立 SSH 连接
type Dialer func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Runner, error)

// Configurer 通过 SSH 配置实例
type Configurer struct {
	cfg      Config
	dial     Dialer
	logger   *slog.Logger
	Commands []string
	SSHRetry Retry // 连接重试, 默认 10 次, 间隔 10 秒
	CmdRetry Retry // dpkg 被占用时的命令重试, 默认 10 次, 间隔 30 秒
}

// NewConfigurer 创建 Configurer, dial 为空时使用真实的 SSH 连接
func NewConfigurer(cfg Config, dial Dialer, logger *slog.Logger) *Configurer {
	if dial == nil {
		dial = DialSSH
	}
	return &Configurer{
		cfg:      cfg,
		dial:     dial,
		logger:   orDefault(logger),
		Commands: SetupCommands,
		SSHRetry: Retry{Attempts: 10, Delay: 10 * time.Second},
		CmdRetry: Retry{Attempts: 10, Delay: 30 * time.Second},
	}
}

// Configure 连接实例并执行 Commands
//
// 单条命令失败只记录日志并继续执行下一条.
func (c *Configurer) Configure(ctx context.Context, ip string) error {
	pem, err := os.ReadFile(c.cfg.KeyPath())
	if err != nil {
		return fmt.Errorf("读取私钥失败: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return fmt.Errorf("解析私钥失败: %w", err)
	}
	clientCfg := &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // 新实例的主机密钥事先未知
		Timeout:         30 * time.Second,
	}

	runner, err := c.connect(ctx, net.JoinHostPort(ip, "22"), clientCfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	for _, cmd := range c.Commands {
		if err := c.run(ctx, runner, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Configurer) connect(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Runner, error) {
	attempts := max(c.SSHRetry.Attempts, 1)
	for i := 1; ; i++ {
		runner, err := c.dial(ctx, addr, cfg)
		if err == nil {
			return runner, nil
		}
		c.logger.Error("SSH 连接失败", "attempt", i, "error", err)
		if i >= attempts {
			return nil, fmt.Errorf("SSH 连接失败, 已重试 %d 次: %w", attempts, err)
		}
		c.logger.Info("稍后重试 SSH 连接", "delay", c.SSHRetry.Delay)
		if err := sleep(ctx, c.SSHRetry.Delay); err != nil {
			return nil, err
		}
	}
}

// run 执行单条命令, 只有 dpkg 被占用时才重试, 返回值仅用于上下文取消
func (c *Configurer) run(ctx context.Context, runner Runner, cmd string) error {
	c.logger.Info("执行命令", "cmd", cmd)
	for i := 1; ; i++ {
		stderr, err := runner.Run(cmd)
		if err == nil {
			c.logger.Info("命令执行成功")
			return nil
		}
		if !strings.Contains(stderr, dpkgLocked) {
			c.logger.Error("命令执行失败", "cmd", cmd, "error", err, "stderr", stderr)
			return nil
		}
		if i >= c.CmdRetry.Attempts {
			c.logger.Error("dpkg 一直被占用, 放弃该命令", "cmd", cmd, "attempts", i)
			return nil
		}
		c.logger.Warn("dpkg 被占用, 稍后重试", "attempt", i, "max", c.CmdRetry.Attempts, "delay", c.CmdRetry.Delay)
		if err := sleep(ctx, c.CmdRetry.Delay); err != nil {
			return err
		}
	}
}

// DialSSH 建立真实的 SSH 连接
func DialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (Runner, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &sshRunner{client: ssh.NewClient(sc, chans, reqs)}, nil
}

type sshRunner struct {
	client *ssh.Client
}

func (r *sshRunner) Run(cmd string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stderr = &stderr
	err = session.Run(cmd)
	return stderr.String(), err
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}

// SSHArgs 交互式登录实例的 ssh 命令参数
func SSHArgs(cfg Config, ip string) []string {
	return []string{"-i", cfg.KeyPath(), cfg.User + "@" + ip}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
