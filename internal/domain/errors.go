package domain

import (
	"errors"
	"fmt"
	"time"
)

// Ошибки домена
var (
	ErrMissingFile        = errors.New("no file uploaded")
	ErrArtifactNotFound   = errors.New("artifact not found")
	ErrExtractionNotFound = errors.New("extraction not found")
	ErrInvalidFileName    = errors.New("invalid file name")
	ErrInvalidPDF         = errors.New("invalid pdf document")
	ErrInvalidStatus      = errors.New("invalid extraction status")
	ErrEmptyStoredPath    = errors.New("stored path cannot be empty")
	ErrExtractionCanceled = errors.New("extraction canceled")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAsyncNotConfigured = errors.New("async extraction is not configured")
)

// Коды ошибок в JSON ответах и записях извлечения
const (
	CodeMissingFile          = "missing_file"
	CodeWorkerExecutionError = "worker_execution_error"
	CodeOutputParseError     = "output_parse_error"
	CodeWorkerTimeout        = "worker_timeout"
	CodeArtifactNotFound     = "artifact_not_found"
	CodeCanceled             = "canceled"
	CodeInternal             = "internal_error"
)

// WorkerExecutionError воркер завершился с ненулевым кодом или не запустился
type WorkerExecutionError struct {
	ExitCode int    // -1, если процесс не стартовал
	Stderr   string // Накопленный stderr
	Err      error
}

func (e *WorkerExecutionError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("worker failed to start: %v", e.Err)
	}
	return fmt.Sprintf("worker exited with code %d", e.ExitCode)
}

func (e *WorkerExecutionError) Unwrap() error {
	return e.Err
}

// Details текст для клиента: stderr, а если он пуст, то причина ошибки
func (e *WorkerExecutionError) Details() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Error()
}

// OutputParseError stdout воркера не является JSON объектом
type OutputParseError struct {
	Raw string
	Err error
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("failed to parse worker output: %v", e.Err)
}

func (e *OutputParseError) Unwrap() error {
	return e.Err
}

// WorkerTimeoutError воркер не уложился в отведённое время и был остановлен
type WorkerTimeoutError struct {
	Timeout time.Duration
	Stderr  string
}

func (e *WorkerTimeoutError) Error() string {
	return fmt.Sprintf("worker exceeded timeout of %s", e.Timeout)
}

// ErrorCode возвращает код ошибки для записи извлечения
func ErrorCode(err error) string {
	var (
		execErr    *WorkerExecutionError
		parseErr   *OutputParseError
		timeoutErr *WorkerTimeoutError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return CodeWorkerTimeout
	case errors.As(err, &parseErr):
		return CodeOutputParseError
	case errors.As(err, &execErr):
		return CodeWorkerExecutionError
	case errors.Is(err, ErrExtractionCanceled):
		return CodeCanceled
	case errors.Is(err, ErrArtifactNotFound):
		return CodeArtifactNotFound
	}
	return CodeInternal
}

// IsRetryable сообщает, имеет ли смысл повторить извлечение
func IsRetryable(err error) bool {
	var timeoutErr *WorkerTimeoutError
	return errors.As(err, &timeoutErr)
}
