package domain

import (
	"time"

	"github.com/google/uuid"
)

// Extraction запись о запуске воркера над загруженным файлом
type Extraction struct {
	ID          uuid.UUID        `json:"id"`
	Status      ExtractionStatus `json:"status"`
	Owner       string           `json:"owner,omitempty"`    // Subject из токена, пусто без аутентификации
	FileName    string           `json:"file_name"`          // Оригинальное имя файла
	StoredPath  string           `json:"stored_path"`        // Абсолютный путь к сохранённому файлу
	ContentType string           `json:"content_type"`
	FileSize    int64            `json:"file_size"`
	PageCount   int              `json:"page_count,omitempty"`
	Artifact    string           `json:"artifact,omitempty"` // Имя опубликованного артефакта
	Result      Document         `json:"result,omitempty"`
	ErrorCode   string           `json:"error_code,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// NewExtraction создаёт запись для уже сохранённой загрузки
func NewExtraction(upload *Upload, owner string) (*Extraction, error) {
	if upload == nil || upload.Path == "" {
		return nil, ErrEmptyStoredPath
	}

	now := time.Now()

	return &Extraction{
		ID:          upload.ID,
		Status:      ExtractionStatusPending,
		Owner:       owner,
		FileName:    upload.FileName,
		StoredPath:  upload.Path,
		ContentType: upload.ContentType,
		FileSize:    upload.Size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanStart проверяет, можно ли запустить воркер.
// Failed допускается для повторных попыток из очереди.
func (e *Extraction) CanStart() bool {
	return e.Status == ExtractionStatusPending || e.Status == ExtractionStatusFailed
}

// MarkProcessing переводит запись в статус "в обработке"
func (e *Extraction) MarkProcessing() error {
	if !e.CanStart() {
		return ErrInvalidStatus
	}
	e.Status = ExtractionStatusProcessing
	e.ErrorCode = ""
	e.Error = ""
	e.UpdatedAt = time.Now()
	e.CompletedAt = nil
	return nil
}

// MarkCompleted сохраняет документ воркера и имя артефакта
func (e *Extraction) MarkCompleted(result Document, artifact string) error {
	if e.Status != ExtractionStatusProcessing {
		return ErrInvalidStatus
	}
	now := time.Now()
	e.Status = ExtractionStatusCompleted
	e.Result = result
	e.Artifact = artifact
	e.UpdatedAt = now
	e.CompletedAt = &now
	return nil
}

// MarkFailed фиксирует ошибку с кодом из ErrorCode
func (e *Extraction) MarkFailed(code, msg string) error {
	if e.Status != ExtractionStatusProcessing && e.Status != ExtractionStatusPending {
		return ErrInvalidStatus
	}
	now := time.Now()
	e.Status = ExtractionStatusFailed
	e.ErrorCode = code
	e.Error = msg
	e.UpdatedAt = now
	e.CompletedAt = &now
	return nil
}

// VisibleTo проверяет, видна ли запись данному subject.
// Пустой subject видит всё (режим без аутентификации).
func (e *Extraction) VisibleTo(subject string) bool {
	return subject == "" || e.Owner == subject
}
