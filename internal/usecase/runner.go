package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// RunnerConfig параметры конвейера извлечения
type RunnerConfig struct {
	RequirePDF     bool
	ArtifactName   string
	MaxConcurrency int // 0 без ограничения
}

// Runner общий конвейер для синхронного шлюза и асинхронного воркера:
// сохранить загрузку, запустить воркер, опубликовать артефакт.
type Runner struct {
	repo      ExtractionRepository
	uploads   UploadStorage
	artifacts ArtifactStore
	extractor Extractor
	inspector PDFInspector        // nil, если проверка PDF выключена
	exporter  SpreadsheetExporter // nil, если fallback выгрузка выключена
	slots     *semaphore.Weighted
	cfg       RunnerConfig
	logger    *zap.Logger
}

// NewRunner создаёт новый экземпляр Runner
func NewRunner(
	repo ExtractionRepository,
	uploads UploadStorage,
	artifacts ArtifactStore,
	extractor Extractor,
	inspector PDFInspector,
	exporter SpreadsheetExporter,
	cfg RunnerConfig,
	logger *zap.Logger,
) *Runner {
	if cfg.ArtifactName == "" {
		cfg.ArtifactName = domain.DefaultArtifactName
	}

	var slots *semaphore.Weighted
	if cfg.MaxConcurrency > 0 {
		slots = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}

	return &Runner{
		repo:      repo,
		uploads:   uploads,
		artifacts: artifacts,
		extractor: extractor,
		inspector: inspector,
		exporter:  exporter,
		slots:     slots,
		cfg:       cfg,
		logger:    logger,
	}
}

// Prepare валидирует и сохраняет загрузку, создаёт запись в статусе pending
func (r *Runner) Prepare(ctx context.Context, input UploadInput) (*domain.Extraction, error) {
	file := input.File
	if file.Reader == nil {
		return nil, domain.ErrMissingFile
	}

	if r.cfg.RequirePDF {
		if err := domain.ValidatePDFUpload(file.FileName, file.ContentType); err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
	}
	if file.ContentType == "" {
		file.ContentType = domain.ContentTypeFromFileName(file.FileName)
	}

	// Каждый запуск получает собственный каталог, одинаковые имена не конфликтуют
	id := uuid.New()
	upload, err := r.uploads.Save(ctx, id, file)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	r.logger.Info("Upload stored",
		zap.String("extraction_id", id.String()),
		zap.String("file_name", upload.FileName),
		zap.String("path", upload.Path),
		zap.Int64("size", upload.Size),
	)

	extraction, err := domain.NewExtraction(upload, input.Principal.Subject)
	if err != nil {
		r.discard(ctx, id)
		return nil, fmt.Errorf("failed to create extraction: %w", err)
	}

	if r.inspector != nil {
		pages, err := r.inspector.PageCount(upload.Path)
		if err != nil {
			r.logger.Warn("Uploaded file is not a readable PDF",
				zap.String("extraction_id", id.String()),
				zap.Error(err),
			)
			r.discard(ctx, id)
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
		}
		extraction.PageCount = pages
		r.logger.Debug("PDF inspected",
			zap.String("extraction_id", id.String()),
			zap.Int("pages", pages),
		)
	}

	if err := r.repo.Create(ctx, extraction); err != nil {
		r.logger.Error("Failed to save extraction record",
			zap.String("extraction_id", id.String()),
			zap.Error(err),
		)
		r.discard(ctx, id)
		return nil, fmt.Errorf("failed to save extraction: %w", err)
	}

	return extraction, nil
}

// Run запускает воркер над сохранённым файлом и публикует артефакт.
// Возвращает документ воркера со ссылкой на скачивание.
func (r *Runner) Run(ctx context.Context, extraction *domain.Extraction) (domain.Document, error) {
	log := r.logger.With(zap.String("extraction_id", extraction.ID.String()))

	if err := r.acquire(ctx); err != nil {
		r.fail(ctx, extraction, err)
		return nil, err
	}
	defer r.release()

	if err := extraction.MarkProcessing(); err != nil {
		return nil, fmt.Errorf("failed to mark extraction as processing: %w", err)
	}
	r.save(ctx, extraction)

	workDir := r.uploads.RunDir(extraction.ID)
	log.Info("Starting extraction worker",
		zap.String("path", extraction.StoredPath),
		zap.String("work_dir", workDir),
	)

	start := time.Now()
	doc, err := r.extractor.Extract(ctx, ExtractRequest{
		FilePath: extraction.StoredPath,
		WorkDir:  workDir,
	})
	if err != nil {
		log.Error("Extraction failed",
			zap.Duration("duration", time.Since(start)),
			zap.String("error_code", domain.ErrorCode(err)),
			zap.Error(err),
		)
		r.fail(ctx, extraction, err)
		return nil, err
	}

	artifact, err := r.publishArtifact(ctx, extraction.ID, doc)
	if err != nil {
		log.Error("Failed to publish artifact", zap.Error(err))
		r.fail(ctx, extraction, err)
		return nil, err
	}

	result := doc.WithDownloadLink(domain.DownloadLink(extraction.ID, r.cfg.ArtifactName))

	if err := extraction.MarkCompleted(result, artifact); err != nil {
		return nil, fmt.Errorf("failed to mark extraction as completed: %w", err)
	}
	r.save(ctx, extraction)

	log.Info("Extraction completed",
		zap.Duration("duration", time.Since(start)),
		zap.String("artifact", artifact),
		zap.Int("fields", len(doc)),
	)

	return result, nil
}

// publishArtifact переносит артефакт воркера в хранилище.
// Возвращает пустое имя, если публиковать нечего.
func (r *Runner) publishArtifact(ctx context.Context, id uuid.UUID, doc domain.Document) (string, error) {
	name := r.cfg.ArtifactName

	file, size, err := r.uploads.OpenRunFile(ctx, id, name)
	switch {
	case err == nil:
		defer file.Close()
		if err := r.artifacts.Save(ctx, id, name, file, size); err != nil {
			return "", fmt.Errorf("failed to save artifact: %w", err)
		}
		return name, nil
	case !errors.Is(err, domain.ErrArtifactNotFound):
		return "", fmt.Errorf("failed to open worker artifact: %w", err)
	}

	if r.exporter == nil {
		r.logger.Warn("Worker produced no artifact",
			zap.String("extraction_id", id.String()),
			zap.String("artifact", name),
		)
		return "", nil
	}

	data, err := r.exporter.ExportXLSX(doc)
	if err != nil {
		return "", fmt.Errorf("failed to export document: %w", err)
	}
	if err := r.artifacts.Save(ctx, id, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("failed to save exported artifact: %w", err)
	}

	r.logger.Info("Artifact exported from document",
		zap.String("extraction_id", id.String()),
		zap.Int("bytes", len(data)),
	)

	return name, nil
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.slots == nil {
		return nil
	}
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for worker slot: %v", domain.ErrExtractionCanceled, err)
	}
	return nil
}

func (r *Runner) release() {
	if r.slots != nil {
		r.slots.Release(1)
	}
}

// discard удаляет загрузку, для которой не будет записи
func (r *Runner) discard(ctx context.Context, id uuid.UUID) {
	if err := r.uploads.Remove(context.WithoutCancel(ctx), id); err != nil {
		r.logger.Warn("Failed to remove rejected upload",
			zap.String("extraction_id", id.String()),
			zap.Error(err),
		)
	}
}

// save обновляет запись; клиент мог уже отключиться, поэтому без отмены
func (r *Runner) save(ctx context.Context, extraction *domain.Extraction) {
	if err := r.repo.Update(context.WithoutCancel(ctx), extraction); err != nil {
		r.logger.Error("Failed to update extraction record",
			zap.String("extraction_id", extraction.ID.String()),
			zap.String("status", extraction.Status.String()),
			zap.Error(err),
		)
	}
}

// fail помечает запись как неудачную
func (r *Runner) fail(ctx context.Context, extraction *domain.Extraction, cause error) {
	if err := extraction.MarkFailed(domain.ErrorCode(cause), cause.Error()); err != nil {
		r.logger.Error("Failed to mark extraction as failed",
			zap.String("extraction_id", extraction.ID.String()),
			zap.Error(err),
		)
		return
	}
	r.save(ctx, extraction)
}

