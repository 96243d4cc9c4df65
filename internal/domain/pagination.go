package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination параметры пагинации
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination создаёт параметры пагинации с валидацией
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset возвращает смещение для SQL запроса
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit возвращает лимит для SQL запроса
func (p Pagination) Limit() int {
	return p.PageSize
}

// ExtractionFilter фильтры для списка извлечений
type ExtractionFilter struct {
	Status *ExtractionStatus `json:"status,omitempty"`
	Owner  string            `json:"owner,omitempty"`
}

// Matches проверяет запись на соответствие фильтру
func (f ExtractionFilter) Matches(e *Extraction) bool {
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	return e.VisibleTo(f.Owner)
}

// ExtractionListResult результат запроса списка извлечений
type ExtractionListResult struct {
	Extractions []*Extraction `json:"extractions"`
	Total       int           `json:"total"`
	Pagination  Pagination    `json:"pagination"`
}

// TotalPages количество страниц при текущем размере
func (r *ExtractionListResult) TotalPages() int {
	if r.Pagination.PageSize == 0 {
		return 0
	}
	pages := r.Total / r.Pagination.PageSize
	if r.Total%r.Pagination.PageSize > 0 {
		pages++
	}
	return pages
}
