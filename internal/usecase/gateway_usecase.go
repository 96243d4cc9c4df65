package usecase

import (
	"context"

	"go.uber.org/zap"
)

// GatewayUseCase синхронный шлюз: загрузка, запуск воркера и ответ в одном запросе
type GatewayUseCase struct {
	runner *Runner
	logger *zap.Logger
}

// NewGatewayUseCase создаёт новый экземпляр GatewayUseCase
func NewGatewayUseCase(runner *Runner, logger *zap.Logger) *GatewayUseCase {
	return &GatewayUseCase{
		runner: runner,
		logger: logger,
	}
}

// Upload сохраняет файл и ждёт завершения воркера.
// Время жизни процесса ограничено контекстом запроса.
func (uc *GatewayUseCase) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	extraction, err := uc.runner.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	doc, err := uc.runner.Run(ctx, extraction)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		Extraction: extraction,
		Document:   doc,
	}, nil
}
