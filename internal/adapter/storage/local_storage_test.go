package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
)

func TestLocalUploadStorageSave(t *testing.T) {
	s, err := NewLocalUploadStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalUploadStorage() error: %v", err)
	}

	id := uuid.New()
	upload, err := s.Save(context.Background(), id, domain.IncomingFile{
		FileName:    "../../etc/a.pdf",
		ContentType: domain.ContentTypePDF,
		Reader:      strings.NewReader("%PDF-1.4 body"),
	})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if upload.StoredName != "a.pdf" {
		t.Fatalf("expected sanitized name a.pdf, got %q", upload.StoredName)
	}
	if filepath.Dir(upload.Path) != filepath.Join(s.RunDir(id), inputDir) {
		t.Fatalf("upload stored outside run dir: %s", upload.Path)
	}
	if upload.Size != int64(len("%PDF-1.4 body")) {
		t.Fatalf("unexpected size %d", upload.Size)
	}

	data, err := os.ReadFile(upload.Path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "%PDF-1.4 body" {
		t.Fatalf("stored content mismatch: %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(upload.Path))
	if len(entries) != 1 {
		t.Fatalf("temp files left in run dir: %v", entries)
	}
}

func TestLocalUploadStorageConcurrentSameName(t *testing.T) {
	s, err := NewLocalUploadStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalUploadStorage() error: %v", err)
	}

	const n = 8
	uploads := make([]*domain.Upload, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.Save(context.Background(), uuid.New(), domain.IncomingFile{
				FileName: "a.pdf",
				Reader:   strings.NewReader(fmt.Sprintf("content-%d", i)),
			})
			if err != nil {
				t.Errorf("Save() error: %v", err)
				return
			}
			uploads[i] = u
		}(i)
	}
	wg.Wait()

	for i, u := range uploads {
		if u == nil {
			t.Fatalf("upload %d missing", i)
		}
		data, err := os.ReadFile(u.Path)
		if err != nil {
			t.Fatalf("read upload %d: %v", i, err)
		}
		if want := fmt.Sprintf("content-%d", i); string(data) != want {
			t.Fatalf("upload %d overwritten: got %q, want %q", i, data, want)
		}
	}
}

func TestUploadNamedLikeArtifactIsNotPublished(t *testing.T) {
	s, err := NewLocalUploadStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalUploadStorage() error: %v", err)
	}
	id := uuid.New()

	if _, err := s.Save(context.Background(), id, domain.IncomingFile{
		FileName: domain.DefaultArtifactName,
		Reader:   strings.NewReader("%PDF-1.4"),
	}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if _, _, err := s.OpenRunFile(context.Background(), id, domain.DefaultArtifactName); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("upload must not be visible as worker artifact, got %v", err)
	}
}

func TestLocalUploadStorageOpenRunFile(t *testing.T) {
	s, err := NewLocalUploadStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalUploadStorage() error: %v", err)
	}
	id := uuid.New()

	if _, _, err := s.OpenRunFile(context.Background(), id, "output.xlsx"); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}

	if err := os.MkdirAll(s.RunDir(id), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.RunDir(id), "output.xlsx"), []byte("xlsx"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, size, err := s.OpenRunFile(context.Background(), id, "output.xlsx")
	if err != nil {
		t.Fatalf("OpenRunFile() error: %v", err)
	}
	defer rc.Close()
	if size != 4 {
		t.Fatalf("unexpected size %d", size)
	}

	if _, _, err := s.OpenRunFile(context.Background(), id, "../output.xlsx"); !errors.Is(err, domain.ErrInvalidFileName) {
		t.Fatalf("expected ErrInvalidFileName, got %v", err)
	}
}

func TestLocalArtifactStoreRoundTrip(t *testing.T) {
	store, err := NewLocalArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArtifactStore() error: %v", err)
	}

	content := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff}
	id := uuid.New()
	if err := store.Save(context.Background(), id, "output.xlsx", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	artifact, err := store.Open(context.Background(), id, "output.xlsx")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer artifact.Body.Close()

	got, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("artifact content mismatch: %v", got)
	}
	if artifact.ContentType != domain.ContentTypeXLSX {
		t.Fatalf("unexpected content type %q", artifact.ContentType)
	}

	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Open(context.Background(), id, "output.xlsx"); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound after delete, got %v", err)
	}
}

func TestLocalArtifactStoreRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalArtifactStore(filepath.Join(root, "artifacts"))
	if err != nil {
		t.Fatalf("NewLocalArtifactStore() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../secret.txt", "..", "a/b.xlsx", `..\secret.txt`} {
		if _, err := store.Open(context.Background(), uuid.Nil, name); !errors.Is(err, domain.ErrInvalidFileName) {
			t.Fatalf("Open(%q) expected ErrInvalidFileName, got %v", name, err)
		}
	}
}

func TestLocalArtifactStoreMissing(t *testing.T) {
	store, err := NewLocalArtifactStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalArtifactStore() error: %v", err)
	}
	if _, err := store.Open(context.Background(), uuid.Nil, "output.xlsx"); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Fatalf("expected ErrArtifactNotFound, got %v", err)
	}
}
