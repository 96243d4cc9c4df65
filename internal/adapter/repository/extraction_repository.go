package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/docgateway/internal/domain"
)

const extractionColumns = `id, status, owner, file_name, stored_path, content_type, file_size, page_count,
	artifact, result, error_code, error, created_at, updated_at, completed_at`

// ExtractionRepository реализация репозитория извлечений для PostgreSQL
type ExtractionRepository struct {
	pool *pgxpool.Pool
}

// NewExtractionRepository создаёт новый экземпляр ExtractionRepository
func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{pool: pool}
}

// Create создаёт новую запись в БД
func (r *ExtractionRepository) Create(ctx context.Context, e *domain.Extraction) error {
	query := `
		INSERT INTO extractions (id, status, owner, file_name, stored_path, content_type, file_size, page_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Status,
		e.Owner,
		e.FileName,
		e.StoredPath,
		e.ContentType,
		e.FileSize,
		e.PageCount,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert extraction: %w", err)
	}

	return nil
}

// GetByID возвращает запись по ID
func (r *ExtractionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Extraction, error) {
	query := `SELECT ` + extractionColumns + ` FROM extractions WHERE id = $1`

	e, err := scanExtraction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExtractionNotFound
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	return e, nil
}

// Update обновляет статус и результат
func (r *ExtractionRepository) Update(ctx context.Context, e *domain.Extraction) error {
	query := `
		UPDATE extractions
		SET status = $2, page_count = $3, artifact = $4, result = $5, error_code = $6, error = $7,
			updated_at = $8, completed_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Status,
		e.PageCount,
		e.Artifact,
		e.Result,
		nullString(e.ErrorCode),
		nullString(e.Error),
		e.UpdatedAt,
		e.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update extraction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrExtractionNotFound
	}

	return nil
}

// Delete удаляет запись из БД
func (r *ExtractionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM extractions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete extraction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrExtractionNotFound
	}

	return nil
}

// List возвращает список записей с пагинацией и фильтрацией
func (r *ExtractionRepository) List(ctx context.Context, filter domain.ExtractionFilter, pagination domain.Pagination) (*domain.ExtractionListResult, error) {
	baseQuery := `FROM extractions WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}
	if filter.Owner != "" {
		baseQuery += fmt.Sprintf(" AND owner = $%d", argIndex)
		args = append(args, filter.Owner)
		argIndex++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count extractions: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, extractionColumns, baseQuery, argIndex, argIndex+1)

	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extractions: %w", err)
	}
	defer rows.Close()

	extractions := make([]*domain.Extraction, 0)
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		extractions = append(extractions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &domain.ExtractionListResult{
		Extractions: extractions,
		Total:       total,
		Pagination:  pagination,
	}, nil
}

// scanExtraction сканирует строку; NULL колонки читаются через указатели
func scanExtraction(row pgx.Row) (*domain.Extraction, error) {
	e := &domain.Extraction{}
	var errorCode, errorMsg *string

	err := row.Scan(
		&e.ID,
		&e.Status,
		&e.Owner,
		&e.FileName,
		&e.StoredPath,
		&e.ContentType,
		&e.FileSize,
		&e.PageCount,
		&e.Artifact,
		&e.Result,
		&errorCode,
		&errorMsg,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorCode != nil {
		e.ErrorCode = *errorCode
	}
	if errorMsg != nil {
		e.Error = *errorMsg
	}

	return e, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
