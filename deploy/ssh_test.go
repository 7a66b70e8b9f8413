package deploy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// writeTestKey 在当前目录写入项目私钥
func writeTestKey(t *testing.T, cfg Config) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.KeyPath(), pem.EncodeToMemory(block), 0o400))
}

type reply struct {
	stderr string
	err    error
}

// fakeRunner 按命令依次返回预设结果, 没有预设时成功
type fakeRunner struct {
	replies map[string][]reply
	calls   []string
	closed  bool
}

func (r *fakeRunner) Run(cmd string) (string, error) {
	r.calls = append(r.calls, cmd)
	queue := r.replies[cmd]
	if len(queue) == 0 {
		return "", nil
	}
	r.replies[cmd] = queue[1:]
	return queue[0].stderr, queue[0].err
}

func (r *fakeRunner) Close() error {
	r.closed = true
	return nil
}

func TestConfigurer_Configure(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := testConfig()
	writeTestKey(t, cfg)

	runner := &fakeRunner{replies: map[string][]reply{
		"install": {
			{stderr: "E: Could not get lock /var/lib/dpkg/lock-frontend", err: errors.New("exit 100")},
			{stderr: "E: Could not get lock /var/lib/dpkg/lock-frontend", err: errors.New("exit 100")},
		},
		"broken": {{stderr: "not found", err: errors.New("exit 127")}},
	}}

	dials := 0
	var gotAddr, gotUser string
	dial := func(_ context.Context, addr string, cc *ssh.ClientConfig) (Runner, error) {
		dials++
		gotAddr, gotUser = addr, cc.User
		if dials < 3 {
			return nil, errors.New("connection refused")
		}
		return runner, nil
	}

	c := NewConfigurer(cfg, dial, discardLogger())
	c.Commands = []string{"update", "install", "broken", "enable"}
	c.SSHRetry = Retry{Attempts: 5}
	c.CmdRetry = Retry{Attempts: 5}

	require.NoError(t, c.Configure(context.Background(), "1.2.3.4"))
	assert.Equal(t, 3, dials)
	assert.Equal(t, "1.2.3.4:22", gotAddr)
	assert.Equal(t, "ubuntu", gotUser)
	// dpkg 被占用时重试, 其他失败直接跳到下一条
	assert.Equal(t, []string{"update", "install", "install", "install", "broken", "enable"}, runner.calls)
	assert.True(t, runner.closed)
}

func TestConfigurer_ConnectExhausted(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := testConfig()
	writeTestKey(t, cfg)

	dials := 0
	dial := func(context.Context, string, *ssh.ClientConfig) (Runner, error) {
		dials++
		return nil, errors.New("timeout")
	}
	c := NewConfigurer(cfg, dial, discardLogger())
	c.SSHRetry = Retry{Attempts: 3}

	err := c.Configure(context.Background(), "1.2.3.4")
	require.Error(t, err)
	assert.Equal(t, 3, dials)
}

func TestConfigurer_LockRetryExhausted(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := testConfig()
	writeTestKey(t, cfg)

	locked := reply{stderr: "Could not get lock", err: errors.New("exit 100")}
	runner := &fakeRunner{replies: map[string][]reply{"install": {locked, locked, locked, locked}}}
	c := NewConfigurer(cfg, func(context.Context, string, *ssh.ClientConfig) (Runner, error) { return runner, nil }, discardLogger())
	c.Commands = []string{"install", "next"}
	c.CmdRetry = Retry{Attempts: 2}

	require.NoError(t, c.Configure(context.Background(), "1.2.3.4"))
	assert.Equal(t, []string{"install", "install", "next"}, runner.calls)
}

func TestConfigurer_MissingKey(t *testing.T) {
	t.Chdir(t.TempDir())
	c := NewConfigurer(testConfig(), nil, discardLogger())
	assert.Error(t, c.Configure(context.Background(), "1.2.3.4"))
}

func TestSSHArgs(t *testing.T) {
	assert.Equal(t, []string{"-i", "./som-key.pem", "ubuntu@1.2.3.4"}, SSHArgs(testConfig(), "1.2.3.4"))
}
