package usecase_test

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeQueue struct {
	ids []uuid.UUID
	err error
}

func (q *fakeQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) RenderFirstPage(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return []byte("png"), nil
}

func alice() domain.Principal { return domain.Principal{Token: "t1", Subject: "alice"} }
func bob() domain.Principal   { return domain.Principal{Token: "t2", Subject: "bob"} }

func TestSubmitAndProcess(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{doc: domain.Document{"a": 1}, artifact: "sheet"})
	queue := &fakeQueue{}
	uc := usecase.NewExtractionUseCase(p.repo, p.runner(nil, nil, 0), p.uploads, p.artifacts, queue, nil, zap.NewNop())
	ctx := context.Background()

	if !uc.AsyncEnabled() {
		t.Fatal("queue is configured")
	}

	input := pdfInput("a.pdf", "%PDF")
	input.Principal = alice()
	rec, err := uc.Submit(ctx, input)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if rec.Status != domain.ExtractionStatusPending || rec.Owner != "alice" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(queue.ids) != 1 || queue.ids[0] != rec.ID {
		t.Fatalf("queue = %v", queue.ids)
	}

	if err := uc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	done, err := uc.GetByID(ctx, alice(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.ExtractionStatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	// Повторная доставка задачи не запускает воркер заново
	if err := uc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("second Process() error: %v", err)
	}
	if p.extractor.Calls() != 1 {
		t.Fatalf("extractor called %d times", p.extractor.Calls())
	}
}

func TestSubmitWithoutQueue(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{})
	uc := usecase.NewExtractionUseCase(p.repo, p.runner(nil, nil, 0), p.uploads, p.artifacts, nil, nil, zap.NewNop())

	if uc.AsyncEnabled() {
		t.Fatal("queue is not configured")
	}
	if _, err := uc.Submit(context.Background(), pdfInput("a.pdf", "%PDF")); !errors.Is(err, domain.ErrAsyncNotConfigured) {
		t.Fatalf("expected ErrAsyncNotConfigured, got %v", err)
	}
}

func TestSubmitEnqueueFailure(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{})
	uc := usecase.NewExtractionUseCase(p.repo, p.runner(nil, nil, 0), p.uploads, p.artifacts, &fakeQueue{err: errors.New("redis down")}, nil, zap.NewNop())

	if _, err := uc.Submit(context.Background(), pdfInput("a.pdf", "%PDF")); err == nil {
		t.Fatal("expected error")
	}

	list, _ := p.repo.List(context.Background(), domain.ExtractionFilter{}, domain.NewPagination(1, 10))
	if list.Total != 1 || list.Extractions[0].Status != domain.ExtractionStatusFailed {
		t.Fatalf("record must be marked failed: %+v", list.Extractions)
	}
}

// failingUpdateRepo отказывает в обновлении записей
type failingUpdateRepo struct {
	usecase.ExtractionRepository
}

func (failingUpdateRepo) Update(ctx context.Context, e *domain.Extraction) error {
	return errors.New("db down")
}

func TestSubmitEnqueueFailureLogsUpdateError(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{})
	core, logs := observer.New(zap.ErrorLevel)
	repo := failingUpdateRepo{ExtractionRepository: p.repo}
	runner := usecase.NewRunner(repo, p.uploads, p.artifacts, p.extractor, nil, nil, usecase.RunnerConfig{RequirePDF: true}, zap.NewNop())
	uc := usecase.NewExtractionUseCase(repo, runner, p.uploads, p.artifacts, &fakeQueue{err: errors.New("redis down")}, nil, zap.New(core))

	if _, err := uc.Submit(context.Background(), pdfInput("a.pdf", "%PDF")); err == nil {
		t.Fatal("expected error")
	}

	entries := logs.FilterMessage("Failed to update extraction record").All()
	if len(entries) != 1 {
		t.Fatalf("expected update failure to be logged, got %v", logs.All())
	}
	if entries[0].ContextMap()["status"] != domain.ExtractionStatusFailed.String() {
		t.Fatalf("unexpected log fields: %v", entries[0].ContextMap())
	}
}

func TestOwnershipAndDelete(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{doc: domain.Document{}, artifact: "sheet"})
	runner := p.runner(nil, nil, 0)
	uc := usecase.NewExtractionUseCase(p.repo, runner, p.uploads, p.artifacts, nil, fakeRenderer{}, zap.NewNop())
	gateway := usecase.NewGatewayUseCase(runner, zap.NewNop())
	ctx := context.Background()

	input := pdfInput("a.pdf", "%PDF")
	input.Principal = alice()
	result, err := gateway.Upload(ctx, input)
	if err != nil {
		t.Fatal(err)
	}
	id := result.Extraction.ID

	if _, err := uc.GetByID(ctx, bob(), id); !errors.Is(err, domain.ErrExtractionNotFound) {
		t.Fatalf("bob must not see alice's record, got %v", err)
	}
	if list, _ := uc.List(ctx, bob(), domain.ExtractionFilter{}, domain.NewPagination(1, 10)); list.Total != 0 {
		t.Fatalf("bob sees %d records", list.Total)
	}
	if list, _ := uc.List(ctx, domain.Principal{}, domain.ExtractionFilter{}, domain.NewPagination(1, 10)); list.Total != 1 {
		t.Fatalf("anonymous listing must see all records, got %d", list.Total)
	}

	img, err := uc.Preview(ctx, alice(), id)
	if err != nil || string(img) != "png" {
		t.Fatalf("Preview() = %q, %v", img, err)
	}

	if err := uc.Delete(ctx, bob(), id); !errors.Is(err, domain.ErrExtractionNotFound) {
		t.Fatalf("bob must not delete alice's record, got %v", err)
	}
	if err := uc.Delete(ctx, alice(), id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(result.Extraction.StoredPath); !os.IsNotExist(err) {
		t.Fatalf("upload must be removed, stat err = %v", err)
	}
	if _, err := p.artifacts.Open(ctx, id, domain.DefaultArtifactName); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("artifact must be removed, got %v", err)
	}
	if _, err := uc.Preview(ctx, alice(), id); !errors.Is(err, domain.ErrExtractionNotFound) {
		t.Fatalf("expected ErrExtractionNotFound, got %v", err)
	}
}

func TestDeleteRunningExtraction(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{})
	runner := p.runner(nil, nil, 0)
	uc := usecase.NewExtractionUseCase(p.repo, runner, p.uploads, p.artifacts, nil, nil, zap.NewNop())
	ctx := context.Background()

	rec, err := runner.Prepare(ctx, pdfInput("a.pdf", "%PDF"))
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.MarkProcessing(); err != nil {
		t.Fatal(err)
	}
	if err := p.repo.Update(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if err := uc.Delete(ctx, domain.Principal{}, rec.ID); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestArtifactDownload(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{doc: domain.Document{}, artifact: "sheet"})
	gateway := usecase.NewGatewayUseCase(p.runner(nil, nil, 0), zap.NewNop())
	artifacts := usecase.NewArtifactUseCase(p.repo, p.artifacts, zap.NewNop())
	ctx := context.Background()

	input := pdfInput("a.pdf", "%PDF")
	input.Principal = alice()
	result, err := gateway.Upload(ctx, input)
	if err != nil {
		t.Fatal(err)
	}
	id := result.Extraction.ID.String()

	read := func(a *domain.Artifact) string {
		t.Helper()
		defer a.Body.Close()
		data, err := io.ReadAll(a.Body)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	a, err := artifacts.Download(ctx, usecase.DownloadInput{Principal: alice(), ExtractionID: id})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if read(a) != "sheet" || a.Name != domain.DefaultArtifactName {
		t.Fatalf("unexpected artifact %q", a.Name)
	}

	// Без id владелец получает свой последний запуск
	a, err = artifacts.Download(ctx, usecase.DownloadInput{Principal: alice()})
	if err != nil {
		t.Fatalf("Download() latest error: %v", err)
	}
	if read(a) != "sheet" {
		t.Fatal("latest artifact mismatch")
	}

	// Без id и без subject отдаётся файл последнего запуска
	a, err = artifacts.Download(ctx, usecase.DownloadInput{})
	if err != nil {
		t.Fatalf("Download() anonymous error: %v", err)
	}
	if read(a) != "sheet" {
		t.Fatal("anonymous latest artifact mismatch")
	}

	tests := []struct {
		name  string
		input usecase.DownloadInput
		want  error
	}{
		{"foreign owner", usecase.DownloadInput{Principal: bob(), ExtractionID: id}, domain.ErrArtifactNotFound},
		{"no runs for owner", usecase.DownloadInput{Principal: bob()}, domain.ErrArtifactNotFound},
		{"traversal", usecase.DownloadInput{ExtractionID: id, FileName: "../a.pdf"}, domain.ErrInvalidFileName},
		{"bad id", usecase.DownloadInput{ExtractionID: "nope"}, usecase.ErrInvalidExtractionID},
		{"missing file", usecase.DownloadInput{ExtractionID: id, FileName: "other.xlsx"}, domain.ErrArtifactNotFound},
		{"anonymous missing file", usecase.DownloadInput{FileName: "other.xlsx"}, domain.ErrArtifactNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := artifacts.Download(ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if !strings.HasSuffix(domain.DownloadLink(result.Extraction.ID, "a b.xlsx"), "file=a+b.xlsx") {
		t.Fatal("download link must escape file names")
	}
}

func TestAnonymousDownloadFallsBackToRoot(t *testing.T) {
	p := newPipeline(t, &fakeExtractor{})
	artifacts := usecase.NewArtifactUseCase(p.repo, p.artifacts, zap.NewNop())
	ctx := context.Background()

	if _, err := artifacts.Download(ctx, usecase.DownloadInput{}); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound without runs, got %v", err)
	}

	if err := p.artifacts.Save(ctx, uuid.Nil, domain.DefaultArtifactName, strings.NewReader("root"), 4); err != nil {
		t.Fatal(err)
	}
	a, err := artifacts.Download(ctx, usecase.DownloadInput{})
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer a.Body.Close()
	data, _ := io.ReadAll(a.Body)
	if string(data) != "root" {
		t.Fatalf("artifact = %q, want root file", data)
	}
}
