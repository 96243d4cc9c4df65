package handler

import (
	"errors"
	"net/http"

	"github.com/plastinin/docgateway/internal/adapter/http/middleware"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// UploadHandler синхронная загрузка: файл, воркер и JSON в одном запросе
type UploadHandler struct {
	responder
	gatewayUC *usecase.GatewayUseCase
	uploads   uploadReader
}

// NewUploadHandler создаёт новый UploadHandler
func NewUploadHandler(gatewayUC *usecase.GatewayUseCase, fields []string, maxSize int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		responder: responder{logger: logger},
		gatewayUC: gatewayUC,
		uploads:   uploadReader{fields: fields, maxSize: maxSize},
	}
}

// Upload принимает файл и возвращает документ воркера
// POST /upload, POST /scrape
// Content-Type: multipart/form-data
// - pdf-upload или file: PDF документ
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := h.uploads.read(w, r)
	defer cleanup()
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
			return
		}
		h.logger.Warn("Upload rejected", zap.Error(err))
		h.respondDomainError(w, err)
		return
	}

	result, err := h.gatewayUC.Upload(r.Context(), usecase.UploadInput{
		Principal: middleware.PrincipalFromContext(r.Context()),
		File:      file,
	})
	if err != nil {
		if r.Context().Err() != nil {
			// Клиент ушёл, воркер уже остановлен; тело никто не прочитает
			h.logger.Warn("Client disconnected during extraction",
				zap.String("file_name", file.FileName),
				zap.Error(err),
			)
			w.WriteHeader(StatusClientClosedRequest)
			return
		}
		h.logger.Error("Upload failed",
			zap.String("file_name", file.FileName),
			zap.Error(err),
		)
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result.Document)
}
