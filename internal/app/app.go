// Package app собирает зависимости, общие для api и worker.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/docgateway/internal/adapter/export"
	"github.com/plastinin/docgateway/internal/adapter/extractor"
	"github.com/plastinin/docgateway/internal/adapter/llm"
	"github.com/plastinin/docgateway/internal/adapter/pdf"
	"github.com/plastinin/docgateway/internal/adapter/repository"
	"github.com/plastinin/docgateway/internal/adapter/storage"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// Components собранный конвейер извлечения
type Components struct {
	DB        *pgxpool.Pool // nil без DB_ENABLED
	Repo      usecase.ExtractionRepository
	Uploads   usecase.UploadStorage
	Artifacts usecase.ArtifactStore
	Extractor usecase.Extractor
	Renderer  *pdf.Renderer
	Runner    *usecase.Runner
	Ollama    *llm.OllamaExtractor // nil для WORKER_BACKEND=process
}

// Close освобождает соединения
func (c *Components) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
}

// Build создаёт хранилища, воркер и конвейер по конфигурации
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Components, error) {
	c := &Components{Renderer: pdf.NewRenderer()}

	// Записи о запусках
	if cfg.Database.Enabled {
		pool, err := repository.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		c.DB = pool
		c.Repo = repository.NewExtractionRepository(pool)
		log.Info("Connected to PostgreSQL", zap.String("database", cfg.Database.Name))
	} else {
		c.Repo = repository.NewMemoryExtractionRepository()
		log.Info("Using in-memory extraction records")
	}

	uploads, err := storage.NewLocalUploadStorage(cfg.Storage.UploadsDir)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Uploads = uploads

	switch cfg.Storage.Backend {
	case "s3":
		s3Store, err := storage.NewS3ArtifactStore(ctx, cfg.S3)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Artifacts = s3Store
		log.Info("Connected to S3",
			zap.String("endpoint", cfg.S3.Endpoint),
			zap.String("bucket", cfg.S3.Bucket),
		)
	default:
		local, err := storage.NewLocalArtifactStore(cfg.Storage.ArtifactsDir)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Artifacts = local
	}

	if err := c.buildExtractor(cfg, log); err != nil {
		c.Close()
		return nil, err
	}

	var inspector usecase.PDFInspector
	if cfg.Upload.InspectPDF {
		inspector = pdf.NewInspector()
	}
	var exporter usecase.SpreadsheetExporter
	if cfg.Worker.ExportFallback {
		exporter = export.NewXLSXExporter()
	}

	c.Runner = usecase.NewRunner(c.Repo, c.Uploads, c.Artifacts, c.Extractor, inspector, exporter, usecase.RunnerConfig{
		RequirePDF:     cfg.Upload.RequirePDF,
		ArtifactName:   cfg.Worker.ArtifactName,
		MaxConcurrency: cfg.Worker.MaxConcurrency,
	}, log)

	return c, nil
}

func (c *Components) buildExtractor(cfg *config.Config, log *zap.Logger) error {
	if cfg.Worker.Backend == "ollama" {
		c.Ollama = llm.NewOllamaExtractor(cfg.Ollama, c.Renderer, log)
		c.Extractor = c.Ollama
		log.Info("Using Ollama extraction backend",
			zap.String("host", cfg.Ollama.Host),
			zap.String("model", cfg.Ollama.Model),
		)
		return nil
	}

	var validator extractor.OutputValidator
	if cfg.Worker.OutputSchema != "" {
		schema, err := extractor.NewSchemaValidatorFromFile(cfg.Worker.OutputSchema)
		if err != nil {
			return fmt.Errorf("failed to load worker output schema: %w", err)
		}
		validator = schema
	}

	proc, err := extractor.NewProcessExtractor(cfg.Worker, validator, log)
	if err != nil {
		return err
	}
	c.Extractor = proc
	log.Info("Using process extraction backend",
		zap.String("command", cfg.Worker.Command),
		zap.Duration("timeout", cfg.Worker.Timeout),
		zap.Int("max_concurrency", cfg.Worker.MaxConcurrency),
	)
	return nil
}
