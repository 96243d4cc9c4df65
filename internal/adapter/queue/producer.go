package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/docgateway/internal/config"
)

// Типы задач
const (
	TypeExtractionRun = "extraction:run"
)

// Очередь для запусков извлечения
const extractionQueue = "extraction"

// ExtractionRunPayload данные задачи на запуск воркера
type ExtractionRunPayload struct {
	ExtractionID string `json:"extraction_id"`
}

// ExtractionProducer отправляет запуски в очередь
type ExtractionProducer struct {
	client   *asynq.Client
	maxRetry int
}

// NewExtractionProducer создаёт новый экземпляр ExtractionProducer
func NewExtractionProducer(cfg config.RedisConfig) *ExtractionProducer {
	client := asynq.NewClient(redisOpt(cfg))

	return &ExtractionProducer{
		client:   client,
		maxRetry: cfg.MaxRetry,
	}
}

// Enqueue добавляет запуск в очередь
func (p *ExtractionProducer) Enqueue(ctx context.Context, id uuid.UUID) error {
	task, err := NewExtractionRunTask(id, p.maxRetry)
	if err != nil {
		return err
	}

	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Close закрывает соединение
func (p *ExtractionProducer) Close() error {
	return p.client.Close()
}

// NewExtractionRunTask собирает задачу asynq для запуска
func NewExtractionRunTask(id uuid.UUID, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(ExtractionRunPayload{
		ExtractionID: id.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeExtractionRun, payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(extractionQueue),
	), nil
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
