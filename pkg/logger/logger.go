package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New создаёт логгер сервиса, пишущий в stdout
func New(service, level, format string) (*zap.Logger, error) {
	return NewWithWriter(os.Stdout, service, level, format)
}

// NewWithWriter создаёт логгер с произвольным приёмником
func NewWithWriter(w io.Writer, service, level, format string) (*zap.Logger, error) {
	// Неизвестный уровень не фатален, откатываемся на info
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, &UnknownFormatError{Format: format}
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}

	return logger, nil
}

// Must создаёт логгер или паникует
func Must(service, level, format string) *zap.Logger {
	logger, err := New(service, level, format)
	if err != nil {
		panic(err)
	}
	return logger
}

// UnknownFormatError неподдерживаемый LOG_FORMAT
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return "unknown log format: " + e.Format
}
