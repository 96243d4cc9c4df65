package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/plastinin/docgateway/internal/domain"
)

// MemoryExtractionRepository хранит записи в памяти процесса.
// Используется, когда PostgreSQL не настроен.
type MemoryExtractionRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*domain.Extraction
}

// NewMemoryExtractionRepository создаёт пустой репозиторий
func NewMemoryExtractionRepository() *MemoryExtractionRepository {
	return &MemoryExtractionRepository{items: make(map[uuid.UUID]*domain.Extraction)}
}

// Create сохраняет копию записи
func (r *MemoryExtractionRepository) Create(ctx context.Context, e *domain.Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[e.ID] = copyExtraction(e)
	return nil
}

// GetByID возвращает копию записи
func (r *MemoryExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Extraction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return nil, domain.ErrExtractionNotFound
	}
	return copyExtraction(e), nil
}

// Update заменяет запись
func (r *MemoryExtractionRepository) Update(ctx context.Context, e *domain.Extraction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[e.ID]; !ok {
		return domain.ErrExtractionNotFound
	}
	r.items[e.ID] = copyExtraction(e)
	return nil
}

// Delete удаляет запись
func (r *MemoryExtractionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrExtractionNotFound
	}
	delete(r.items, id)
	return nil
}

// List возвращает записи от новых к старым
func (r *MemoryExtractionRepository) List(ctx context.Context, filter domain.ExtractionFilter, pagination domain.Pagination) (*domain.ExtractionListResult, error) {
	r.mu.RLock()
	matched := make([]*domain.Extraction, 0, len(r.items))
	for _, e := range r.items {
		if filter.Matches(e) {
			matched = append(matched, copyExtraction(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(pagination.Offset(), total)
	end := min(start+pagination.Limit(), total)

	return &domain.ExtractionListResult{
		Extractions: matched[start:end],
		Total:       total,
		Pagination:  pagination,
	}, nil
}

func copyExtraction(e *domain.Extraction) *domain.Extraction {
	c := *e
	if e.Result != nil {
		c.Result = e.Result.Clone()
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
