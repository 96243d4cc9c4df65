package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Worker   WorkerConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Ollama   OllamaConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"3000"`
	StaticDir       string        `env:"STATIC_DIR" envDefault:"templates"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	// Должен покрывать WORKER_TIMEOUT, иначе ответ не успеет уйти
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"6m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type UploadConfig struct {
	MaxSize int64 `env:"UPLOAD_MAX_SIZE" envDefault:"33554432"`
	// Имена multipart полей с файлом, первое найденное побеждает
	Fields     []string `env:"UPLOAD_FIELDS" envDefault:"pdf-upload,file" envSeparator:","`
	RequirePDF bool     `env:"UPLOAD_REQUIRE_PDF" envDefault:"true"`
	InspectPDF bool     `env:"UPLOAD_INSPECT_PDF" envDefault:"false"`
}

type WorkerConfig struct {
	// process: внешний скрипт, ollama: vision модель
	Backend string `env:"WORKER_BACKEND" envDefault:"process"`
	// Команда воркера; путь к файлу добавляется последним аргументом
	Command        string        `env:"WORKER_COMMAND" envDefault:"python3 scrape.py"`
	Timeout        time.Duration `env:"WORKER_TIMEOUT" envDefault:"5m"`
	MaxOutput      int64         `env:"WORKER_MAX_OUTPUT" envDefault:"16777216"`
	MaxConcurrency int           `env:"WORKER_MAX_CONCURRENCY" envDefault:"4"`
	OutputSchema   string        `env:"WORKER_OUTPUT_SCHEMA" envDefault:""`
	ArtifactName   string        `env:"WORKER_ARTIFACT_NAME" envDefault:"output.xlsx"`
	ExportFallback bool          `env:"WORKER_EXPORT_FALLBACK" envDefault:"false"`
}

// Argv разбивает команду воркера на аргументы
func (w WorkerConfig) Argv() []string {
	return strings.Fields(w.Command)
}

type StorageConfig struct {
	// local или s3 (только для артефактов, загрузки всегда на диске)
	Backend      string `env:"STORAGE_BACKEND" envDefault:"local"`
	UploadsDir   string `env:"STORAGE_UPLOADS_DIR" envDefault:"uploads"`
	ArtifactsDir string `env:"STORAGE_ARTIFACTS_DIR" envDefault:"artifacts"`
}

type AuthConfig struct {
	// none или jwt
	Mode         string `env:"AUTH_MODE" envDefault:"none"`
	JWTSecret    string `env:"AUTH_JWT_SECRET" envDefault:""`
	JWTAlgorithm string `env:"AUTH_JWT_ALGORITHM" envDefault:"HS256"`
}

type DatabaseConfig struct {
	Enabled         bool          `env:"DB_ENABLED" envDefault:"false"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"docgateway"`
	Password        string        `env:"DB_PASSWORD" envDefault:"secret"`
	Name            string        `env:"DB_NAME" envDefault:"docgateway"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool   `env:"QUEUE_ENABLED" envDefault:"false"`
	Host        string `env:"REDIS_HOST" envDefault:"localhost"`
	Port        int    `env:"REDIS_PORT" envDefault:"6379"`
	Password    string `env:"REDIS_PASSWORD" envDefault:""`
	DB          int    `env:"REDIS_DB" envDefault:"0"`
	MaxRetry    int    `env:"QUEUE_MAX_RETRY" envDefault:"3"`
	Concurrency int    `env:"QUEUE_CONCURRENCY" envDefault:"2"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"S3_BUCKET" envDefault:"artifacts"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
}

type OllamaConfig struct {
	Host           string        `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`
	Model          string        `env:"OLLAMA_MODEL" envDefault:"qwen3-vl"`
	RequestTimeout time.Duration `env:"OLLAMA_REQUEST_TIMEOUT" envDefault:"5m"`
	// Поля для извлечения, разделитель ";"
	Fields []string `env:"OLLAMA_FIELDS" envSeparator:";" envDefault:"Closing Date;First Payment Date;Day Count System;Payment Frequency;Payment Frequency Add. Description;Description;Rate Adjustment Frequency;Initial Asset Balance;Current Prepaid Balance;Asset Amortization Type;WA Fixed Rate;Prepayment Type;Fixed Prepayment Rate;Default Rate;Recoverable;Original Term;Loss Multiple;Base Losses;Remaining Term;Discount Rate;WA Original Amortization Term;WA Original Balloon Payment Month;WA Original Interest Only Period;WA Original Interest Capitalization Period;WALA;Recoveries Lag"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// json или console
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Worker.Backend {
	case "process":
		if len(c.Worker.Argv()) == 0 {
			return fmt.Errorf("WORKER_COMMAND must not be empty")
		}
	case "ollama":
		if len(c.Ollama.Fields) == 0 {
			return fmt.Errorf("OLLAMA_FIELDS must name at least one field")
		}
	default:
		return fmt.Errorf("unknown WORKER_BACKEND %q", c.Worker.Backend)
	}
	if c.Worker.Timeout <= 0 {
		return fmt.Errorf("WORKER_TIMEOUT must be positive")
	}
	if len(c.Upload.Fields) == 0 {
		return fmt.Errorf("UPLOAD_FIELDS must name at least one field")
	}

	switch c.Storage.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Auth.Mode {
	case "none":
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	// Асинхронный режим требует общей БД между api и worker
	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("QUEUE_ENABLED requires DB_ENABLED")
	}

	return nil
}
