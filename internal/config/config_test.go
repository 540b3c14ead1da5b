package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "API_KEY", "MODE", "UPLOAD_DIR", "LOG_LEVEL", "LOG_FORMAT", "OCR_BINARY", "DOCX_BINARY", "CORS_ORIGINS", "MAX_BODY_BYTES", "SKIP_PREFLIGHT"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(100<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "ocrmypdf", cfg.Engines.OCR.Binary)
	assert.Equal(t, "pdf2docx", cfg.Engines.DOCX.Binary)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convertify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  api_key: from-file
  cors_origins: ["http://localhost:3000"]
storage:
  upload_dir: /srv/convertify
engines:
  ocr:
    timeout: 90s
    args: ["-l", "{lang}", "{input}", "{output}"]
log:
  level: debug
`), 0o600))

	clearEnv(t)
	t.Setenv("API_KEY", "from-env")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SKIP_PREFLIGHT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Server.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/srv/convertify", cfg.Storage.UploadDir)
	assert.Equal(t, 90*time.Second, cfg.Engines.OCR.Timeout)
	assert.Equal(t, "ocrmypdf", cfg.Engines.OCR.Binary)
	assert.Equal(t, []string{"-l", "{lang}", "{input}", "{output}"}, cfg.Engines.OCR.Args)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Engines.SkipPreflight)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: ["), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("MAX_BODY_BYTES", "lots")
	_, err = Load("")
	assert.ErrorContains(t, err, "MAX_BODY_BYTES")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.MaxBodyBytes = 0
	cfg.Storage.UploadDir = " "
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_body_bytes")
	assert.Contains(t, err.Error(), "upload_dir")
}
