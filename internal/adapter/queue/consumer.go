package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
	"go.uber.org/zap"
)

// Processor выполняет запуск по id записи
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// ExtractionConsumer обрабатывает запуски из очереди
type ExtractionConsumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor Processor
	logger    *zap.Logger
}

// NewExtractionConsumer создаёт новый экземпляр ExtractionConsumer
func NewExtractionConsumer(
	cfg config.RedisConfig,
	processor Processor,
	logger *zap.Logger,
) *ExtractionConsumer {
	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				extractionQueue: 10,
				"default":       1,
			},
			// Повторяем только то, что помечено повторяемым
			IsFailure: func(err error) bool {
				return !errors.Is(err, domain.ErrExtractionCanceled)
			},
			Logger: newAsynqLogger(logger),
		},
	)

	consumer := &ExtractionConsumer{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
		logger:    logger,
	}

	consumer.mux.HandleFunc(TypeExtractionRun, consumer.handleExtractionRun)

	return consumer
}

// Start запускает обработку задач
func (c *ExtractionConsumer) Start() error {
	c.logger.Info("Starting extraction consumer")
	return c.server.Start(c.mux)
}

// Stop останавливает обработку задач
func (c *ExtractionConsumer) Stop() {
	c.logger.Info("Stopping extraction consumer")
	c.server.Stop()
	c.server.Shutdown()
}

// handleExtractionRun обрабатывает задачу запуска воркера
func (c *ExtractionConsumer) handleExtractionRun(ctx context.Context, t *asynq.Task) error {
	var payload ExtractionRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		c.logger.Error("Failed to unmarshal payload",
			zap.Error(err),
			zap.ByteString("payload", t.Payload()),
		)
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	id, err := uuid.Parse(payload.ExtractionID)
	if err != nil {
		c.logger.Error("Invalid extraction ID",
			zap.String("extraction_id", payload.ExtractionID),
			zap.Error(err),
		)
		return fmt.Errorf("invalid extraction ID: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("Processing extraction task",
		zap.String("extraction_id", id.String()),
	)

	if err := c.processor.Process(ctx, id); err != nil {
		c.logger.Error("Failed to process extraction",
			zap.String("extraction_id", id.String()),
			zap.String("error_code", domain.ErrorCode(err)),
			zap.Error(err),
		)
		if !domain.IsRetryable(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return nil
}

// asynqLogger адаптер логгера для asynq
type asynqLogger struct {
	logger *zap.Logger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq")}
}

func (l *asynqLogger) Debug(args ...any) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...any) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...any) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Fatal(fmt.Sprint(args...))
}
