package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
	"go.uber.org/zap"
)

// ExtractionUseCase записи об извлечениях и асинхронный режим
type ExtractionUseCase struct {
	repo      ExtractionRepository
	runner    *Runner
	uploads   UploadStorage
	artifacts ArtifactStore
	queue     ExtractionQueue // nil без Redis
	preview   PreviewRenderer // nil, если рендер недоступен
	logger    *zap.Logger
}

// NewExtractionUseCase создаёт новый экземпляр ExtractionUseCase
func NewExtractionUseCase(
	repo ExtractionRepository,
	runner *Runner,
	uploads UploadStorage,
	artifacts ArtifactStore,
	queue ExtractionQueue,
	preview PreviewRenderer,
	logger *zap.Logger,
) *ExtractionUseCase {
	return &ExtractionUseCase{
		repo:      repo,
		runner:    runner,
		uploads:   uploads,
		artifacts: artifacts,
		queue:     queue,
		preview:   preview,
		logger:    logger,
	}
}

// AsyncEnabled сообщает, настроена ли очередь
func (uc *ExtractionUseCase) AsyncEnabled() bool {
	return uc.queue != nil
}

// Submit сохраняет загрузку и ставит запуск в очередь
func (uc *ExtractionUseCase) Submit(ctx context.Context, input UploadInput) (*domain.Extraction, error) {
	if uc.queue == nil {
		return nil, domain.ErrAsyncNotConfigured
	}

	extraction, err := uc.runner.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := uc.queue.Enqueue(ctx, extraction.ID); err != nil {
		uc.logger.Error("Failed to enqueue extraction",
			zap.String("extraction_id", extraction.ID.String()),
			zap.Error(err),
		)
		if markErr := extraction.MarkFailed(domain.CodeInternal, "failed to enqueue extraction"); markErr == nil {
			if updErr := uc.repo.Update(context.WithoutCancel(ctx), extraction); updErr != nil {
				uc.logger.Error("Failed to update extraction record",
					zap.String("extraction_id", extraction.ID.String()),
					zap.String("status", extraction.Status.String()),
					zap.Error(updErr),
				)
			}
		}
		return nil, fmt.Errorf("failed to enqueue extraction: %w", err)
	}

	uc.logger.Info("Extraction queued",
		zap.String("extraction_id", extraction.ID.String()),
		zap.String("file_name", extraction.FileName),
	)

	return extraction, nil
}

// Process выполняет запуск из очереди
func (uc *ExtractionUseCase) Process(ctx context.Context, id uuid.UUID) error {
	extraction, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get extraction: %w", err)
	}

	if !extraction.CanStart() {
		uc.logger.Warn("Extraction cannot be started, skipping",
			zap.String("extraction_id", id.String()),
			zap.String("status", extraction.Status.String()),
		)
		return nil
	}

	_, err = uc.runner.Run(ctx, extraction)
	return err
}

// GetByID возвращает запись, видимую владельцу
func (uc *ExtractionUseCase) GetByID(ctx context.Context, principal domain.Principal, id uuid.UUID) (*domain.Extraction, error) {
	extraction, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !extraction.VisibleTo(principal.Subject) {
		return nil, domain.ErrExtractionNotFound
	}
	return extraction, nil
}

// List возвращает список записей владельца
func (uc *ExtractionUseCase) List(ctx context.Context, principal domain.Principal, filter domain.ExtractionFilter, pagination domain.Pagination) (*domain.ExtractionListResult, error) {
	filter.Owner = principal.Subject
	return uc.repo.List(ctx, filter, pagination)
}

// Delete удаляет запись вместе с загрузкой и артефактами
func (uc *ExtractionUseCase) Delete(ctx context.Context, principal domain.Principal, id uuid.UUID) error {
	extraction, err := uc.GetByID(ctx, principal, id)
	if err != nil {
		return err
	}

	if extraction.Status == domain.ExtractionStatusProcessing {
		return fmt.Errorf("cannot delete running extraction: %w", domain.ErrInvalidStatus)
	}

	if err := uc.uploads.Remove(ctx, id); err != nil {
		uc.logger.Warn("Failed to remove upload",
			zap.String("extraction_id", id.String()),
			zap.Error(err),
		)
		// Продолжаем удаление записи
	}
	if err := uc.artifacts.Delete(ctx, id); err != nil {
		uc.logger.Warn("Failed to remove artifacts",
			zap.String("extraction_id", id.String()),
			zap.Error(err),
		)
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete extraction: %w", err)
	}

	uc.logger.Info("Extraction deleted", zap.String("extraction_id", id.String()))

	return nil
}

// Preview рендерит первую страницу загруженного PDF
func (uc *ExtractionUseCase) Preview(ctx context.Context, principal domain.Principal, id uuid.UUID) ([]byte, error) {
	if uc.preview == nil {
		return nil, errors.New("preview renderer is not configured")
	}

	extraction, err := uc.GetByID(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	img, err := uc.preview.RenderFirstPage(extraction.StoredPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrExtractionNotFound
		}
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}

	return img, nil
}
