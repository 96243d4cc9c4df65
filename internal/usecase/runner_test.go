package usecase_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/adapter/repository"
	"github.com/plastinin/docgateway/internal/adapter/storage"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// fakeExtractor подменяет воркер: пишет артефакт в рабочий каталог и отдаёт документ
type fakeExtractor struct {
	mu       sync.Mutex
	calls    int
	doc      domain.Document
	err      error
	artifact string // содержимое output.xlsx, пустое не пишется
	block    chan struct{}
}

func (f *fakeExtractor) Extract(ctx context.Context, req usecase.ExtractRequest) (domain.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, domain.ErrExtractionCanceled
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.artifact != "" {
		if err := os.WriteFile(filepath.Join(req.WorkDir, domain.DefaultArtifactName), []byte(f.artifact), 0o644); err != nil {
			return nil, err
		}
	}
	return f.doc.Clone(), nil
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExporter struct{ calls int }

func (e *fakeExporter) ExportXLSX(doc domain.Document) ([]byte, error) {
	e.calls++
	return []byte("exported"), nil
}

type fakeInspector struct{ err error }

func (i fakeInspector) PageCount(path string) (int, error) {
	if i.err != nil {
		return 0, i.err
	}
	return 3, nil
}

type pipeline struct {
	repo      *repository.MemoryExtractionRepository
	uploads   *storage.LocalUploadStorage
	artifacts *storage.LocalArtifactStore
	extractor *fakeExtractor
}

func newPipeline(t *testing.T, ext *fakeExtractor) *pipeline {
	t.Helper()
	uploads, err := storage.NewLocalUploadStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	artifacts, err := storage.NewLocalArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return &pipeline{
		repo:      repository.NewMemoryExtractionRepository(),
		uploads:   uploads,
		artifacts: artifacts,
		extractor: ext,
	}
}

func (p *pipeline) runner(inspector usecase.PDFInspector, exporter usecase.SpreadsheetExporter, maxConcurrency int) *usecase.Runner {
	return usecase.NewRunner(p.repo, p.uploads, p.artifacts, p.extractor, inspector, exporter, usecase.RunnerConfig{
		RequirePDF:     true,
		MaxConcurrency: maxConcurrency,
	}, zap.NewNop())
}

func pdfInput(name, content string) usecase.UploadInput {
	return usecase.UploadInput{
		File: domain.IncomingFile{
			FileName:    name,
			ContentType: "application/pdf",
			Size:        int64(len(content)),
			Reader:      strings.NewReader(content),
		},
	}
}

func readArtifact(t *testing.T, store usecase.ArtifactStore, id uuid.UUID) string {
	t.Helper()
	a, err := store.Open(context.Background(), id, domain.DefaultArtifactName)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer a.Body.Close()
	data, err := io.ReadAll(a.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestGatewayUploadPublishesArtifact(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{doc: domain.Document{"a": 1}, artifact: "sheet"})
	gateway := usecase.NewGatewayUseCase(p.runner(nil, nil, 0), zap.NewNop())

	result, err := gateway.Upload(context.Background(), pdfInput("deal.pdf", "%PDF"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	id := result.Extraction.ID
	want := domain.DownloadLink(id, domain.DefaultArtifactName)
	if result.Document[domain.DownloadLinkField] != want {
		t.Fatalf("download link = %v, want %s", result.Document[domain.DownloadLinkField], want)
	}
	if result.Document["a"] != 1 {
		t.Fatalf("document lost worker fields: %v", result.Document)
	}
	if got := readArtifact(t, p.artifacts, id); got != "sheet" {
		t.Fatalf("artifact = %q", got)
	}

	rec, err := p.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.ExtractionStatusCompleted || rec.Artifact != domain.DefaultArtifactName || rec.CompletedAt == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}

	// Загрузка остаётся на диске
	if _, err := os.Stat(rec.StoredPath); err != nil {
		t.Fatalf("stored upload missing: %v", err)
	}
}

func TestGatewayUploadValidation(t *testing.T) {
	ext := &fakeExtractor{doc: domain.Document{}}
	p := newPipeline(t, ext)
	gateway := usecase.NewGatewayUseCase(p.runner(nil, nil, 0), zap.NewNop())

	_, err := gateway.Upload(context.Background(), usecase.UploadInput{})
	if !errors.Is(err, domain.ErrMissingFile) {
		t.Fatalf("expected ErrMissingFile, got %v", err)
	}

	input := pdfInput("notes.txt", "hello")
	input.File.ContentType = "text/plain"
	_, err = gateway.Upload(context.Background(), input)
	if !errors.Is(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}

	if ext.Calls() != 0 {
		t.Fatalf("extractor called %d times", ext.Calls())
	}
}

func TestGatewayUploadRecordsFailure(t *testing.T) {
	workerErr := &domain.WorkerExecutionError{ExitCode: 1, Stderr: "boom"}
	p := newPipeline(t, &fakeExtractor{err: workerErr})
	gateway := usecase.NewGatewayUseCase(p.runner(nil, nil, 0), zap.NewNop())

	_, err := gateway.Upload(context.Background(), pdfInput("a.pdf", "%PDF"))
	if !errors.Is(err, workerErr) {
		t.Fatalf("expected worker error, got %v", err)
	}

	list, _ := p.repo.List(context.Background(), domain.ExtractionFilter{}, domain.NewPagination(1, 10))
	if list.Total != 1 {
		t.Fatalf("expected one record, got %d", list.Total)
	}
	rec := list.Extractions[0]
	if rec.Status != domain.ExtractionStatusFailed || rec.ErrorCode != domain.CodeWorkerExecutionError {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestRunnerArtifactFallback(t *testing.T) {
	t.Run("exporter renders document", func(t *testing.T) {
		p := newPipeline(t, &fakeExtractor{doc: domain.Document{"a": 1}})
		exporter := &fakeExporter{}
		gateway := usecase.NewGatewayUseCase(p.runner(nil, exporter, 0), zap.NewNop())

		result, err := gateway.Upload(context.Background(), pdfInput("a.pdf", "%PDF"))
		if err != nil {
			t.Fatalf("Upload() error: %v", err)
		}
		if exporter.calls != 1 {
			t.Fatalf("exporter called %d times", exporter.calls)
		}
		if got := readArtifact(t, p.artifacts, result.Extraction.ID); got != "exported" {
			t.Fatalf("artifact = %q", got)
		}
	})

	t.Run("no artifact without exporter", func(t *testing.T) {
		p := newPipeline(t, &fakeExtractor{doc: domain.Document{"a": 1}})
		gateway := usecase.NewGatewayUseCase(p.runner(nil, nil, 0), zap.NewNop())

		result, err := gateway.Upload(context.Background(), pdfInput("a.pdf", "%PDF"))
		if err != nil {
			t.Fatalf("Upload() error: %v", err)
		}
		if result.Extraction.Artifact != "" {
			t.Fatalf("artifact = %q, want empty", result.Extraction.Artifact)
		}
		if _, ok := result.Document[domain.DownloadLinkField]; !ok {
			t.Fatal("download link must always be present")
		}
	})
}

func TestRunnerInspector(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{doc: domain.Document{}})

	rec, err := p.runner(fakeInspector{}, nil, 0).Prepare(context.Background(), pdfInput("a.pdf", "%PDF"))
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if rec.PageCount != 3 || rec.Status != domain.ExtractionStatusPending {
		t.Fatalf("unexpected record: %+v", rec)
	}

	_, err = p.runner(fakeInspector{err: errors.New("no header")}, nil, 0).Prepare(context.Background(), pdfInput("a.pdf", "junk"))
	if !errors.Is(err, domain.ErrInvalidPDF) {
		t.Fatalf("expected ErrInvalidPDF, got %v", err)
	}

	// Отклонённая загрузка не остаётся на диске
	runs, err := os.ReadDir(filepath.Dir(p.uploads.RunDir(rec.ID)))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Name() != rec.ID.String() {
		t.Fatalf("rejected upload left on disk: %v", runs)
	}
}

func TestRunnerConcurrencyLimit(t *testing.T) {
	ext := &fakeExtractor{doc: domain.Document{}, block: make(chan struct{})}
	p := newPipeline(t, ext)
	runner := p.runner(nil, nil, 1)
	ctx := context.Background()

	first, err := runner.Prepare(ctx, pdfInput("a.pdf", "1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.Prepare(ctx, pdfInput("a.pdf", "2"))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, first)
		done <- err
	}()

	// Ждём, пока первый запуск займёт слот
	deadline := time.Now().Add(5 * time.Second)
	for ext.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := runner.Run(waitCtx, second); !errors.Is(err, domain.ErrExtractionCanceled) {
		t.Fatalf("expected ErrExtractionCanceled while slot is busy, got %v", err)
	}
	if ext.Calls() != 1 {
		t.Fatalf("second run must not reach the extractor, calls = %d", ext.Calls())
	}

	close(ext.block)
	if err := <-done; err != nil {
		t.Fatalf("first run error: %v", err)
	}
}
