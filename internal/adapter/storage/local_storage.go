package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
)

// inputDir подкаталог загрузки внутри каталога запуска. Воркер пишет
// артефакты в корень каталога запуска, загрузка их не перекрывает.
const inputDir = "input"

// LocalUploadStorage каталоги запусков: <root>/<id>/input/<имя файла>
type LocalUploadStorage struct {
	root string
}

// NewLocalUploadStorage создаёт корневой каталог загрузок
func NewLocalUploadStorage(root string) (*LocalUploadStorage, error) {
	abs, err := ensureDir(root)
	if err != nil {
		return nil, err
	}
	return &LocalUploadStorage{root: abs}, nil
}

// Save пишет файл во временный файл и переименовывает на место
func (s *LocalUploadStorage) Save(ctx context.Context, id uuid.UUID, file domain.IncomingFile) (*domain.Upload, error) {
	if file.Reader == nil {
		return nil, domain.ErrMissingFile
	}

	dir := s.RunDir(id)
	if err := os.MkdirAll(filepath.Join(dir, inputDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	name := domain.StoredFileName(file.FileName)
	path := filepath.Join(dir, inputDir, name)

	size, err := writeAtomic(ctx, path, file.Reader)
	if err != nil {
		return nil, err
	}

	return &domain.Upload{
		ID:          id,
		FileName:    file.FileName,
		StoredName:  name,
		Path:        path,
		RunDir:      dir,
		ContentType: file.ContentType,
		Size:        size,
	}, nil
}

// RunDir возвращает рабочий каталог запуска
func (s *LocalUploadStorage) RunDir(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// OpenRunFile открывает файл, оставленный воркером в каталоге запуска
func (s *LocalUploadStorage) OpenRunFile(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, int64, error) {
	if _, err := domain.ValidateArtifactName(name); err != nil {
		return nil, 0, err
	}
	return openRegular(filepath.Join(s.RunDir(id), name))
}

// Remove удаляет каталог запуска целиком
func (s *LocalUploadStorage) Remove(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if err := os.RemoveAll(s.RunDir(id)); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}
	return nil
}

// LocalArtifactStore артефакты на диске: <root>/<id>/<имя>, без id в <root>/<имя>
type LocalArtifactStore struct {
	root string
}

// NewLocalArtifactStore создаёт корневой каталог артефактов
func NewLocalArtifactStore(root string) (*LocalArtifactStore, error) {
	abs, err := ensureDir(root)
	if err != nil {
		return nil, err
	}
	return &LocalArtifactStore{root: abs}, nil
}

// Save сохраняет артефакт атомарно
func (s *LocalArtifactStore) Save(ctx context.Context, id uuid.UUID, name string, reader io.Reader, size int64) error {
	path, err := s.resolve(id, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	written, err := writeAtomic(ctx, path, reader)
	if err != nil {
		return err
	}
	if size >= 0 && written != size {
		return fmt.Errorf("artifact size mismatch: wrote %d of %d bytes", written, size)
	}
	return nil
}

// Open открывает артефакт на чтение
func (s *LocalArtifactStore) Open(ctx context.Context, id uuid.UUID, name string) (*domain.Artifact, error) {
	path, err := s.resolve(id, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, domain.ErrArtifactNotFound
	}

	return &domain.Artifact{
		Name:        name,
		ContentType: domain.ContentTypeFromFileName(name),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Body:        f,
	}, nil
}

// Delete удаляет артефакты запуска
func (s *LocalArtifactStore) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(s.root, id.String())); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}
	return nil
}

// resolve строит путь и проверяет, что он не выходит за корень
func (s *LocalArtifactStore) resolve(id uuid.UUID, name string) (string, error) {
	if _, err := domain.ValidateArtifactName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, name)
	if id != uuid.Nil {
		path = filepath.Join(s.root, id.String(), name)
	}

	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrInvalidFileName
	}
	return path, nil
}

func ensureDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", abs, err)
	}
	return abs, nil
}

func openRegular(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, domain.ErrArtifactNotFound
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, domain.ErrArtifactNotFound
	}
	return f, info.Size(), nil
}

// writeAtomic пишет во временный файл рядом с целью и переименовывает.
// Читатели никогда не видят частично записанный файл.
func writeAtomic(ctx context.Context, path string, reader io.Reader) (int64, error) {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: reader})
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

// ctxReader прерывает копирование при отмене контекста
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
