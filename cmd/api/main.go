package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/docgateway/internal/adapter/auth"
	"github.com/plastinin/docgateway/internal/adapter/http/handler"
	"github.com/plastinin/docgateway/internal/adapter/queue"
	"github.com/plastinin/docgateway/internal/app"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/usecase"
	"github.com/plastinin/docgateway/pkg/logger"
	"go.uber.org/zap"

	apphttp "github.com/plastinin/docgateway/internal/adapter/http"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Инициализируем логгер
	log := logger.Must("docgateway-api", cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting docgateway API",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// Контекст с отменой для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize extraction pipeline", zap.Error(err))
	}
	defer components.Close()

	// Очередь нужна только для асинхронного режима
	var extractionQueue usecase.ExtractionQueue
	if cfg.Redis.Enabled {
		producer := queue.NewExtractionProducer(cfg.Redis)
		defer producer.Close()
		extractionQueue = producer
		log.Info("Async extraction enabled",
			zap.String("redis_addr", cfg.Redis.Addr()),
		)
	}

	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		log.Fatal("Failed to initialize authenticator", zap.Error(err))
	}

	// Инициализируем use cases
	gatewayUC := usecase.NewGatewayUseCase(components.Runner, log)
	artifactUC := usecase.NewArtifactUseCase(components.Repo, components.Artifacts, log)
	extractionUC := usecase.NewExtractionUseCase(
		components.Repo,
		components.Runner,
		components.Uploads,
		components.Artifacts,
		extractionQueue,
		components.Renderer,
		log,
	)

	// Проверки для /health
	checks := map[string]handler.Pinger{}
	if components.DB != nil {
		checks["postgres"] = components.DB
	}
	if components.Ollama != nil {
		checks["ollama"] = handler.PingFunc(components.Ollama.CheckHealth)
	}

	// Инициализируем handlers и роутер
	router := apphttp.NewRouter(apphttp.Handlers{
		Health:     handler.NewHealthHandler(checks),
		Upload:     handler.NewUploadHandler(gatewayUC, cfg.Upload.Fields, cfg.Upload.MaxSize, log),
		Download:   handler.NewDownloadHandler(artifactUC, log),
		Extraction: handler.NewExtractionHandler(extractionUC, cfg.Upload.Fields, cfg.Upload.MaxSize, log),
		Async:      extractionUC.AsyncEnabled(),
	}, authenticator, cfg.Server.StaticDir, log)

	// Создаём HTTP сервер
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("auth_mode", cfg.Auth.Mode),
			zap.String("storage", cfg.Storage.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown: активные запросы дожидаются своих воркеров
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
