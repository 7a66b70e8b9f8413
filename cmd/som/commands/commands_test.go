package commands

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/api"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClientCmd(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	encoded, err := api.EncodePNG(img)
	require.NoError(t, err)

	var got api.InferenceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.PathInference, r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(api.InferenceResponse{RunID: "r1", Image: encoded, Model: "sam"})
	}))
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "result.png")
	_, err = execute(t, "client", srv.URL, "-o", output)
	require.NoError(t, err)

	assert.Equal(t, 2.5, *got.Slider)
	assert.Equal(t, []string{"Mark"}, got.AnnoMode)
	_, err = os.Stat(output)
	assert.NoError(t, err)
}

func TestEnvFileMissing(t *testing.T) {
	_, err := execute(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "deploy", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.env")
}

func TestDeployRequiresConfig(t *testing.T) {
	for _, k := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION", "GITHUB_REPO", "GITHUB_TOKEN", "PROJECT_NAME"} {
		t.Setenv(k, "")
	}
	// 由 env 文件提供, 测试前需要确保未设置
	t.Setenv("GITHUB_OWNER", "")
	require.NoError(t, os.Unsetenv("GITHUB_OWNER"))

	envFile := filepath.Join(t.TempDir(), "deploy.env")
	require.NoError(t, os.WriteFile(envFile, []byte("GITHUB_OWNER=octo\n"), 0o644))

	_, err := execute(t, "--env-file", envFile, "deploy", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
	assert.NotContains(t, err.Error(), "GITHUB_OWNER")
}

func TestSegmentOptions(t *testing.T) {
	o := &segmentOptions{slider: 1.2, mode: "interactive", alpha: 0.3, labelMode: "Alphabet", annoMode: []string{"Mask,Box"}}
	opts, err := o.options()
	require.NoError(t, err)
	assert.Equal(t, som.ModeInteractive, opts.Mode)
	assert.Equal(t, som.LabelAlphabet, opts.LabelMode)
	assert.Equal(t, []som.AnnoMode{som.AnnoMask, som.AnnoBox}, opts.AnnoMode)

	o.annoMode = []string{"Outline"}
	_, err = o.options()
	assert.Error(t, err)

	assert.Equal(t, filepath.Join("out", "seg-ironing_man.jpg"), outputPath("out", defaultImage))
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "setup")
	assert.Error(t, err)
}
