package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plastinin/docgateway/internal/adapter/http/dto"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// StatusClientClosedRequest клиент закрыл соединение до ответа
const StatusClientClosedRequest = 499

// responder общая запись JSON ответов для обработчиков
type responder struct {
	logger *zap.Logger
}

// respondJSON отправляет JSON ответ
func (h responder) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError отправляет ответ с ошибкой
func (h responder) respondError(w http.ResponseWriter, status int, code, message string) {
	h.respondJSON(w, status, dto.NewErrorResponse(message, code))
}

// respondDomainError отображает ошибку use case в HTTP ответ
func (h responder) respondDomainError(w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	h.respondJSON(w, status, body)
}

// errorResponse таблица соответствия ошибок и HTTP статусов
func errorResponse(err error) (int, *dto.ErrorResponse) {
	var (
		execErr    *domain.WorkerExecutionError
		parseErr   *domain.OutputParseError
		timeoutErr *domain.WorkerTimeoutError
	)

	switch {
	case errors.Is(err, domain.ErrMissingFile):
		return http.StatusBadRequest, dto.NewErrorResponse("No file uploaded", domain.CodeMissingFile)
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, dto.NewErrorResponse("Unsupported file type, PDF expected", "invalid_file_type")
	case errors.Is(err, domain.ErrInvalidPDF):
		return http.StatusBadRequest, &dto.ErrorResponse{
			Error:   "Uploaded file is not a readable PDF",
			Code:    "invalid_pdf",
			Details: err.Error(),
		}
	case errors.Is(err, domain.ErrInvalidFileName):
		return http.StatusBadRequest, dto.NewErrorResponse("Invalid file name", "invalid_file_name")
	case errors.Is(err, usecase.ErrInvalidExtractionID):
		return http.StatusBadRequest, dto.NewErrorResponse("Invalid extraction ID format", "invalid_id")
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, dto.NewErrorResponse("Unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrArtifactNotFound):
		return http.StatusNotFound, dto.NewErrorResponse("Excel file not found", domain.CodeArtifactNotFound)
	case errors.Is(err, domain.ErrExtractionNotFound):
		return http.StatusNotFound, dto.NewErrorResponse("Extraction not found", "not_found")
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusConflict, dto.NewErrorResponse("Extraction is still running", "invalid_status")
	case errors.Is(err, domain.ErrAsyncNotConfigured):
		return http.StatusServiceUnavailable, dto.NewErrorResponse("Async extraction is not configured", "async_not_configured")
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, &dto.ErrorResponse{
			Error:     "Extraction timed out",
			Code:      domain.CodeWorkerTimeout,
			Details:   timeoutErr.Stderr,
			Retryable: true,
		}
	case errors.As(err, &parseErr):
		details := err.Error()
		if parseErr.Err != nil {
			details = parseErr.Err.Error()
		}
		return http.StatusInternalServerError, &dto.ErrorResponse{
			Error:     "JSON parse error",
			Code:      domain.CodeOutputParseError,
			Details:   details,
			RawOutput: parseErr.Raw,
		}
	case errors.As(err, &execErr):
		return http.StatusInternalServerError, &dto.ErrorResponse{
			Error:   "Error processing PDF",
			Code:    domain.CodeWorkerExecutionError,
			Details: execErr.Details(),
		}
	case errors.Is(err, domain.ErrExtractionCanceled):
		return StatusClientClosedRequest, dto.NewErrorResponse("Request canceled", domain.CodeCanceled)
	}

	return http.StatusInternalServerError, dto.NewErrorResponse("Internal server error", domain.CodeInternal)
}
