package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/adapter/http/dto"
	"github.com/plastinin/docgateway/internal/adapter/http/middleware"
	"github.com/plastinin/docgateway/internal/domain"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// ExtractionHandler обработчик HTTP запросов для записей о запусках
type ExtractionHandler struct {
	responder
	extractionUC *usecase.ExtractionUseCase
	uploads      uploadReader
}

// NewExtractionHandler создаёт новый ExtractionHandler
func NewExtractionHandler(extractionUC *usecase.ExtractionUseCase, fields []string, maxSize int64, logger *zap.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		responder:    responder{logger: logger},
		extractionUC: extractionUC,
		uploads:      uploadReader{fields: fields, maxSize: maxSize},
	}
}

// Create ставит загрузку в очередь
// POST /api/v1/extractions
func (h *ExtractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := h.uploads.read(w, r)
	defer cleanup()
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
			return
		}
		h.respondDomainError(w, err)
		return
	}

	extraction, err := h.extractionUC.Submit(r.Context(), usecase.UploadInput{
		Principal: middleware.PrincipalFromContext(r.Context()),
		File:      file,
	})
	if err != nil {
		h.logger.Error("Failed to submit extraction", zap.Error(err))
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, dto.ExtractionFromDomain(extraction))
}

// GetByID возвращает запись по ID
// GET /api/v1/extractions/{id}
func (h *ExtractionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	extraction, err := h.extractionUC.GetByID(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		if !errors.Is(err, domain.ErrExtractionNotFound) {
			h.logger.Error("Failed to get extraction", zap.String("extraction_id", id.String()), zap.Error(err))
		}
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.ExtractionFromDomain(extraction))
}

// List возвращает список записей
// GET /api/v1/extractions?page=1&page_size=20&status=completed
func (h *ExtractionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	pagination := domain.NewPagination(page, pageSize)

	filter := domain.ExtractionFilter{}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ExtractionStatus(statusStr)
		if !status.IsValid() {
			h.respondError(w, http.StatusBadRequest, "invalid_status", "Unknown status filter")
			return
		}
		filter.Status = &status
	}

	result, err := h.extractionUC.List(r.Context(), middleware.PrincipalFromContext(r.Context()), filter, pagination)
	if err != nil {
		h.logger.Error("Failed to list extractions", zap.Error(err))
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.ExtractionListFromDomain(result))
}

// Delete удаляет запись, загрузку и артефакты
// DELETE /api/v1/extractions/{id}
func (h *ExtractionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.extractionUC.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
		if !errors.Is(err, domain.ErrExtractionNotFound) {
			h.logger.Error("Failed to delete extraction", zap.String("extraction_id", id.String()), zap.Error(err))
		}
		h.respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Preview отдаёт первую страницу загруженного PDF в PNG
// GET /api/v1/extractions/{id}/preview
func (h *ExtractionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	img, err := h.extractionUC.Preview(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		if !errors.Is(err, domain.ErrExtractionNotFound) {
			h.logger.Error("Failed to render preview", zap.String("extraction_id", id.String()), zap.Error(err))
		}
		h.respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *ExtractionHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_id", "Invalid extraction ID format")
		return uuid.Nil, false
	}
	return id, true
}
