package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

type stubConverter struct {
	calls int
}

func (s *stubConverter) ConvertFirstPage(pdfData []byte) ([]byte, error) {
	s.calls++
	return []byte("png"), nil
}

func newTestExtractor(t *testing.T, handler http.HandlerFunc) (*OllamaExtractor, *stubConverter) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conv := &stubConverter{}
	cfg := config.OllamaConfig{
		Host:           srv.URL,
		Model:          "qwen3-vl",
		RequestTimeout: 5 * time.Second,
		Fields:         []string{"Closing Date", "WA Fixed Rate"},
	}
	return NewOllamaExtractor(cfg, conv, zap.NewNop()), conv
}

func uploadRequest(t *testing.T) usecase.ExtractRequest {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return usecase.ExtractRequest{FilePath: path, WorkDir: dir}
}

func chatReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": map[string]string{"role": "assistant", "content": content},
	})
}

func TestOllamaExtractSuccess(t *testing.T) {
	e, conv := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body["model"] != "qwen3-vl" {
			t.Errorf("unexpected model %v", body["model"])
		}
		chatReply(w, "```json\n{\"Closing Date\": \"2024-01-15\"}\n```")
	})

	doc, err := e.Extract(context.Background(), uploadRequest(t))
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if doc["Closing Date"] != "2024-01-15" {
		t.Fatalf("unexpected document: %v", doc)
	}
	if conv.calls != 1 {
		t.Fatalf("expected PDF to be converted once, got %d", conv.calls)
	}
}

func TestOllamaExtractNotJSON(t *testing.T) {
	e, _ := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(w, "I could not read the document")
	})

	_, err := e.Extract(context.Background(), uploadRequest(t))

	var parseErr *domain.OutputParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected OutputParseError, got %v", err)
	}
	if !strings.Contains(parseErr.Raw, "could not read") {
		t.Fatalf("expected raw response, got %q", parseErr.Raw)
	}
}

func TestOllamaExtractServerError(t *testing.T) {
	e, _ := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := e.Extract(context.Background(), uploadRequest(t))

	var execErr *domain.WorkerExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected WorkerExecutionError, got %v", err)
	}
	if !strings.Contains(execErr.Details(), "model not loaded") {
		t.Fatalf("expected body in details, got %q", execErr.Details())
	}
}

func TestOllamaExtractTimeout(t *testing.T) {
	e, _ := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	e.timeout = 100 * time.Millisecond

	_, err := e.Extract(context.Background(), uploadRequest(t))

	var timeoutErr *domain.WorkerTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected WorkerTimeoutError, got %v", err)
	}
}

func TestOllamaCheckHealth(t *testing.T) {
	e, _ := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "qwen3-vl:8b"}},
		})
	})

	if err := e.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth() error: %v", err)
	}
}
