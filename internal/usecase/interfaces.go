package usecase

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
)

// ExtractionRepository интерфейс хранилища записей об извлечениях
type ExtractionRepository interface {
	Create(ctx context.Context, extraction *domain.Extraction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Extraction, error)
	Update(ctx context.Context, extraction *domain.Extraction) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.ExtractionFilter, pagination domain.Pagination) (*domain.ExtractionListResult, error)
}

// UploadStorage рабочие каталоги запусков на локальном диске.
// Воркеру нужен путь к файлу, поэтому загрузки всегда локальные.
type UploadStorage interface {
	Save(ctx context.Context, id uuid.UUID, file domain.IncomingFile) (*domain.Upload, error)
	RunDir(id uuid.UUID) string
	OpenRunFile(ctx context.Context, id uuid.UUID, name string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// ArtifactStore хранилище производных файлов (диск или S3).
// uuid.Nil адресует корень хранилища.
type ArtifactStore interface {
	Save(ctx context.Context, id uuid.UUID, name string, reader io.Reader, size int64) error
	Open(ctx context.Context, id uuid.UUID, name string) (*domain.Artifact, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Extractor сервис извлечения: сегодня подпроцесс, завтра сетевой вызов
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (domain.Document, error)
}

// PDFInspector проверяет PDF до запуска воркера
type PDFInspector interface {
	PageCount(path string) (int, error)
}

// SpreadsheetExporter строит XLSX из документа, если воркер его не оставил
type SpreadsheetExporter interface {
	ExportXLSX(doc domain.Document) ([]byte, error)
}

// PreviewRenderer рендерит первую страницу PDF в PNG
type PreviewRenderer interface {
	RenderFirstPage(path string) ([]byte, error)
}

// ExtractionQueue очередь асинхронных запусков
type ExtractionQueue interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}
