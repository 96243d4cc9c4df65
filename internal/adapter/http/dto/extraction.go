package dto

import (
	"time"

	"github.com/plastinin/docgateway/internal/domain"
)

// ExtractionResponse ответ с информацией о запуске
type ExtractionResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	FileName      string         `json:"file_name"`
	ContentType   string         `json:"content_type"`
	FileSize      int64          `json:"file_size"`
	PageCount     int            `json:"page_count,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	ExcelDownload string         `json:"excelDownload,omitempty"`
	ErrorCode     string         `json:"error_code,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// ExtractionFromDomain конвертирует доменную модель в DTO
func ExtractionFromDomain(e *domain.Extraction) *ExtractionResponse {
	resp := &ExtractionResponse{
		ID:          e.ID.String(),
		Status:      e.Status.String(),
		FileName:    e.FileName,
		ContentType: e.ContentType,
		FileSize:    e.FileSize,
		PageCount:   e.PageCount,
		Result:      e.Result,
		ErrorCode:   e.ErrorCode,
		Error:       e.Error,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		CompletedAt: e.CompletedAt,
	}
	if e.Artifact != "" {
		resp.ExcelDownload = domain.DownloadLink(e.ID, e.Artifact)
	}
	return resp
}

// ExtractionListResponse ответ со списком запусков
type ExtractionListResponse struct {
	Extractions []*ExtractionResponse `json:"extractions"`
	Total       int                   `json:"total"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	TotalPages  int                   `json:"total_pages"`
}

// ExtractionListFromDomain конвертирует результат списка в DTO
func ExtractionListFromDomain(result *domain.ExtractionListResult) *ExtractionListResponse {
	items := make([]*ExtractionResponse, len(result.Extractions))
	for i, e := range result.Extractions {
		items[i] = ExtractionFromDomain(e)
	}

	return &ExtractionListResponse{
		Extractions: items,
		Total:       result.Total,
		Page:        result.Pagination.Page,
		PageSize:    result.Pagination.PageSize,
		TotalPages:  result.TotalPages(),
	}
}
