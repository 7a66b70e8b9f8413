package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestDeployer_Start(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := testConfig()
	writeTestKey(t, cfg)

	fake := &fakeEC2{keyExists: true, sgExists: true, instances: []types.Instance{newInstance("i-1", StateRunning, "1.1.1.1")}}
	gh, client := newGitHubServer(t)
	runner := &fakeRunner{replies: map[string][]reply{}}
	cmds := &fakeCommands{fail: map[string]bool{"push --set-upstream origin main": true}}

	configurer := NewConfigurer(cfg, func(context.Context, string, *ssh.ClientConfig) (Runner, error) { return runner, nil }, discardLogger())
	d := &Deployer{
		Config:      cfg,
		Provisioner: NewProvisioner(cfg, fake, discardLogger()),
		Configurer:  configurer,
		Secrets:     NewSecrets(cfg, client.Actions, discardLogger()),
		Git:         NewGit(dir, cmds.run, discardLogger()),
		Logger:      discardLogger(),
	}

	// 推送失败只记录日志
	url, err := d.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://1.1.1.1:6092", url)

	assert.Contains(t, gh.secrets, "SSH_PRIVATE_KEY")
	assert.Equal(t, SetupCommands, runner.calls)
	content, err := os.ReadFile(filepath.Join(dir, WorkflowPath))
	require.NoError(t, err)
	assert.Contains(t, string(content), "host: 1.1.1.1")
	assert.Contains(t, cmds.calls, "git push --set-upstream origin main")
}

func TestDeployer_Workflow(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeEC2{keyExists: true, sgExists: true, instances: []types.Instance{newInstance("i-1", StateRunning, "9.9.9.9")}}
	cmds := &fakeCommands{}
	d := &Deployer{
		Config:      testConfig(),
		Provisioner: NewProvisioner(testConfig(), fake, discardLogger()),
		Git:         NewGit(dir, cmds.run, discardLogger()),
	}

	path, err := d.Workflow(context.Background())
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "host: 9.9.9.9")
	assert.Contains(t, string(content), "- main")
}
