package handler

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/plastinin/docgateway/internal/adapter/http/middleware"
	"github.com/plastinin/docgateway/internal/usecase"
	"go.uber.org/zap"
)

// DownloadHandler отдаёт артефакты запусков
type DownloadHandler struct {
	responder
	artifactUC *usecase.ArtifactUseCase
}

// NewDownloadHandler создаёт новый DownloadHandler
func NewDownloadHandler(artifactUC *usecase.ArtifactUseCase, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		responder:  responder{logger: logger},
		artifactUC: artifactUC,
	}
}

// Download отдаёт артефакт как вложение
// GET /download?id=<uuid>&file=output.xlsx
// GET /download/excel?id=<uuid>&file=output.xlsx
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	artifact, err := h.artifactUC.Download(r.Context(), usecase.DownloadInput{
		Principal:    middleware.PrincipalFromContext(r.Context()),
		ExtractionID: query.Get("id"),
		FileName:     query.Get("file"),
	})
	if err != nil {
		h.logger.Warn("Download failed",
			zap.String("id", query.Get("id")),
			zap.String("file", query.Get("file")),
			zap.Error(err),
		)
		h.respondDomainError(w, err)
		return
	}
	defer artifact.Body.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))

	// Локальный файл поддерживает Range и If-Modified-Since
	if rs, ok := artifact.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, artifact.Name, artifact.ModTime, rs)
		return
	}

	if artifact.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, artifact.Body); err != nil {
		h.logger.Warn("Artifact stream interrupted",
			zap.String("file", artifact.Name),
			zap.Error(err),
		)
	}
}
