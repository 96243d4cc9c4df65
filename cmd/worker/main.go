package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/docgateway/internal/adapter/queue"
	"github.com/plastinin/docgateway/internal/app"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/usecase"
	"github.com/plastinin/docgateway/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Инициализируем логгер
	log := logger.Must("docgateway-worker", cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	if !cfg.Redis.Enabled {
		log.Fatal("Worker requires QUEUE_ENABLED=true")
	}

	log.Info("Starting docgateway worker",
		zap.String("backend", cfg.Worker.Backend),
		zap.String("redis_addr", cfg.Redis.Addr()),
		zap.Int("concurrency", cfg.Redis.Concurrency),
	)

	// Контекст для инициализации
	ctx := context.Background()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize extraction pipeline", zap.Error(err))
	}
	defer components.Close()

	// Проверяем доступность Ollama
	if components.Ollama != nil {
		if err := components.Ollama.CheckHealth(ctx); err != nil {
			log.Warn("Ollama health check failed", zap.Error(err))
			log.Warn("Make sure Ollama is running: ollama serve")
		} else {
			log.Info("Ollama is healthy")
		}
	}

	// Очередь только читаем, поэтому producer не нужен
	extractionUC := usecase.NewExtractionUseCase(
		components.Repo,
		components.Runner,
		components.Uploads,
		components.Artifacts,
		nil,
		components.Renderer,
		log,
	)

	// Инициализируем consumer
	consumer := queue.NewExtractionConsumer(cfg.Redis, extractionUC, log)

	// Запускаем consumer в горутине
	go func() {
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start consumer", zap.Error(err))
		}
	}()

	log.Info("Worker started, waiting for extractions...")

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")

	// Останавливаем consumer
	consumer.Stop()

	log.Info("Worker stopped")
}
