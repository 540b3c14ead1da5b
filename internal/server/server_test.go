package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/zzkydev/Convertify-PDF/internal/config"
	"github.com/zzkydev/Convertify-PDF/internal/engine"
	"github.com/zzkydev/Convertify-PDF/internal/operation"
)

// concatAdapter joins its inputs with "+" into the output.
func concatAdapter() engine.Adapter {
	return engine.AdapterFunc(func(ctx context.Context, job engine.Job) error {
		var parts []string
		for _, in := range job.Inputs {
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			parts = append(parts, string(data))
		}
		return os.WriteFile(job.Output, []byte(strings.Join(parts, "+")), 0o600)
	})
}

func newTestServer(t *testing.T, apiKey string) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Server.APIKey = apiKey
	cfg.Storage.UploadDir = t.TempDir()

	adapters := map[operation.Kind]engine.Adapter{
		operation.Merge:       concatAdapter(),
		operation.ImagesToPDF: concatAdapter(),
	}
	s, err := New(cfg, zerolog.Nop(), afero.NewOsFs(), adapters)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, cfg.Storage.UploadDir
}

func newFileRequest(t *testing.T, url, field string, files map[string]string, headers map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"a.pdf", "b.pdf", "notes.txt"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty upload dir, found %d entries", len(entries))
	}
}

func TestServer_MergeFlowWithAPIKey(t *testing.T) {
	ts, uploadDir := newTestServer(t, "secret")
	files := map[string]string{"a.pdf": "A", "b.pdf": "B"}

	// Missing key => 401
	resp, err := http.DefaultClient.Do(newFileRequest(t, ts.URL+"/api/merge/pdf", "files", files, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	// Include key => 200
	req := newFileRequest(t, ts.URL+"/api/merge/pdf", "files", files, map[string]string{"x-api-key": "secret"})
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if string(body) != "A+B" {
		t.Fatalf("unexpected body %q", body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != operation.MediaPDF {
		t.Fatalf("unexpected content type %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=merged_") || !strings.HasSuffix(cd, ".pdf") {
		t.Fatalf("unexpected disposition %s", cd)
	}
	assertEmptyDir(t, uploadDir)
}

func TestServer_RejectsUnsupportedFormat(t *testing.T) {
	ts, uploadDir := newTestServer(t, "")

	req := newFileRequest(t, ts.URL+"/api/convert/img-to-pdf", "files", map[string]string{"notes.txt": "x"}, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "unsupported format: notes.txt") {
		t.Fatalf("unexpected body %s", body)
	}
	assertEmptyDir(t, uploadDir)
}

func TestServer_UnconfiguredOperationIsEngineError(t *testing.T) {
	ts, _ := newTestServer(t, "")

	req := newFileRequest(t, ts.URL+"/api/ocr/pdf", "file", map[string]string{"a.pdf": "A"}, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestServer_MetricsExposeConversions(t *testing.T) {
	ts, _ := newTestServer(t, "")

	req := newFileRequest(t, ts.URL+"/api/merge/pdf", "files", map[string]string{"a.pdf": "A"}, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`convertify_conversions_total{operation="merge",outcome="success"} 1`,
		`convertify_http_requests_total{method="POST",route="/api/merge/pdf",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestCheck_ReportsMissingBinaries(t *testing.T) {
	adapters := map[operation.Kind]engine.Adapter{
		operation.OCR:   engine.NewOCR(engine.Command{Binary: "sh"}),
		operation.Merge: engine.NewMerger(),
		operation.PDFToDOCX: engine.NewDOCX(engine.Command{
			Binary: "convertify-missing-binary",
		}),
	}

	report := Check(adapters)
	if len(report) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(report))
	}
	byOp := map[string]EngineStatus{}
	for _, s := range report {
		byOp[s.Operation] = s
	}
	if s := byOp["ocr"]; !s.OK || s.Path == "" {
		t.Fatalf("expected sh to resolve: %+v", s)
	}
	if s := byOp["merge"]; !s.OK || s.Engine != "builtin" {
		t.Fatalf("unexpected builtin status: %+v", s)
	}
	if s := byOp["pdf-to-docx"]; s.OK || !strings.Contains(s.Error, "convertify-missing-binary binary not found") {
		t.Fatalf("expected missing binary: %+v", s)
	}

	err := Preflight(adapters)
	if err == nil || !strings.Contains(err.Error(), "pdf-to-docx") {
		t.Fatalf("expected preflight failure naming pdf-to-docx, got %v", err)
	}
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Server.GracefulShutdown = time.Second
	s, err := New(cfg, zerolog.Nop(), afero.NewOsFs(), Adapters(cfg.Engines))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
