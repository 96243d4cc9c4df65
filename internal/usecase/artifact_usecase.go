package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
	"go.uber.org/zap"
)

// ErrInvalidExtractionID id в запросе скачивания не является uuid
var ErrInvalidExtractionID = errors.New("invalid extraction id")

// ArtifactUseCase выдача производных файлов
type ArtifactUseCase struct {
	repo      ExtractionRepository
	artifacts ArtifactStore
	logger    *zap.Logger
}

// NewArtifactUseCase создаёт новый экземпляр ArtifactUseCase
func NewArtifactUseCase(repo ExtractionRepository, artifacts ArtifactStore, logger *zap.Logger) *ArtifactUseCase {
	return &ArtifactUseCase{
		repo:      repo,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Download открывает артефакт. Вызывающий обязан закрыть Body.
//
// Без id берётся последний завершённый запуск владельца. Без subject
// владельцем считается любой, а если запусков нет или в запуске нет
// файла, он ищется в корне хранилища.
func (uc *ArtifactUseCase) Download(ctx context.Context, input DownloadInput) (*domain.Artifact, error) {
	name, err := domain.ValidateArtifactName(input.FileName)
	if err != nil {
		return nil, err
	}

	id := uuid.Nil
	if input.ExtractionID != "" {
		id, err = uuid.Parse(input.ExtractionID)
		if err != nil {
			return nil, ErrInvalidExtractionID
		}
	}

	subject := input.Principal.Subject
	switch {
	case id != uuid.Nil && subject != "":
		extraction, err := uc.repo.GetByID(ctx, id)
		if err != nil || !extraction.VisibleTo(subject) {
			return nil, domain.ErrArtifactNotFound
		}
	case id == uuid.Nil && subject != "":
		id, err = uc.latestFor(ctx, subject)
		if err != nil {
			return nil, err
		}
	case id == uuid.Nil:
		return uc.openLatest(ctx, name)
	}

	return uc.open(ctx, id, name)
}

// openLatest отдаёт файл последнего запуска, иначе файл из корня хранилища
func (uc *ArtifactUseCase) openLatest(ctx context.Context, name string) (*domain.Artifact, error) {
	id, err := uc.latestFor(ctx, "")
	if err != nil && !errors.Is(err, domain.ErrArtifactNotFound) {
		return nil, err
	}
	if id != uuid.Nil {
		artifact, err := uc.open(ctx, id, name)
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			return artifact, err
		}
	}
	return uc.open(ctx, uuid.Nil, name)
}

func (uc *ArtifactUseCase) open(ctx context.Context, id uuid.UUID, name string) (*domain.Artifact, error) {
	artifact, err := uc.artifacts.Open(ctx, id, name)
	if err != nil {
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			uc.logger.Error("Failed to open artifact",
				zap.String("extraction_id", id.String()),
				zap.String("file", name),
				zap.Error(err),
			)
		}
		return nil, err
	}

	return artifact, nil
}

// latestFor ищет последний завершённый запуск владельца
func (uc *ArtifactUseCase) latestFor(ctx context.Context, subject string) (uuid.UUID, error) {
	status := domain.ExtractionStatusCompleted
	result, err := uc.repo.List(ctx,
		domain.ExtractionFilter{Status: &status, Owner: subject},
		domain.NewPagination(1, 1),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find latest extraction: %w", err)
	}
	if len(result.Extractions) == 0 {
		return uuid.Nil, domain.ErrArtifactNotFound
	}
	return result.Extractions[0].ID, nil
}
