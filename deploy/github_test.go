package deploy

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/google/go-github/v66/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

func TestEncryptSecret(t *testing.T) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	enc, err := EncryptSecret(base64.StdEncoding.EncodeToString(pub[:]), "hello")
	require.NoError(t, err)
	sealed, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	plain, ok := box.OpenAnonymous(nil, sealed, pub, priv)
	require.True(t, ok)
	assert.Equal(t, "hello", string(plain))

	_, err = EncryptSecret("!!", "x")
	assert.Error(t, err)
	_, err = EncryptSecret(base64.StdEncoding.EncodeToString([]byte("short")), "x")
	assert.Error(t, err)
}

// fakeGitHub 记录写入的 secret 明文
type fakeGitHub struct {
	mu      sync.Mutex
	pub     *[32]byte
	priv    *[32]byte
	secrets map[string]string
	order   []string
}

func newGitHubServer(t *testing.T) (*fakeGitHub, *github.Client) {
	t.Helper()
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	f := &fakeGitHub{pub: pub, priv: priv, secrets: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/som/actions/secrets/public-key", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"key_id": "key-1",
			"key":    base64.StdEncoding.EncodeToString(pub[:]),
		})
	})
	mux.HandleFunc("PUT /repos/octo/som/actions/secrets/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			KeyID          string `json:"key_id"`
			EncryptedValue string `json:"encrypted_value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.KeyID != "key-1" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sealed, _ := base64.StdEncoding.DecodeString(body.EncryptedValue)
		plain, ok := box.OpenAnonymous(nil, sealed, f.pub, f.priv)
		if !ok {
			http.Error(w, "cannot decrypt", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.secrets[r.PathValue("name")] = string(plain)
		f.order = append(f.order, r.PathValue("name"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return f, client
}

func TestSecrets_SetAll(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("som-key.pem", []byte("PRIVATE"), 0o400))

	f, client := newGitHubServer(t)
	s := NewSecrets(testConfig(), client.Actions, discardLogger())
	require.NoError(t, s.SetAll(context.Background()))

	assert.Equal(t, []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "OPENAI_API_KEY", "SSH_PRIVATE_KEY"}, f.order)
	assert.Equal(t, "AKIA", f.secrets["AWS_ACCESS_KEY_ID"])
	assert.Equal(t, "sk-x", f.secrets["OPENAI_API_KEY"])
	assert.Equal(t, "PRIVATE", f.secrets["SSH_PRIVATE_KEY"])
}

func TestSecrets_SetAllWithoutKeyFile(t *testing.T) {
	t.Chdir(t.TempDir())

	f, client := newGitHubServer(t)
	s := NewSecrets(testConfig(), client.Actions, discardLogger())
	// 私钥缺失只记录日志
	require.NoError(t, s.SetAll(context.Background()))
	assert.Len(t, f.order, 3)
	assert.NotContains(t, f.secrets, "SSH_PRIVATE_KEY")
}

func TestSecrets_SetError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	client := github.NewClient(srv.Client())
	base, _ := url.Parse(srv.URL + "/")
	client.BaseURL = base

	s := NewSecrets(testConfig(), client.Actions, discardLogger())
	err := s.Set(context.Background(), "X", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "获取仓库公钥失败")
}
