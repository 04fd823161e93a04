package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// SupportLineRepository manages persistence for support lines.
type SupportLineRepository interface {
	Create(ctx context.Context, line *domain.SupportLine) error
	Update(ctx context.Context, line *domain.SupportLine) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.SupportLine, error)
	GetByCode(ctx context.Context, code string) (*domain.SupportLine, error)
	List(ctx context.Context, activeOnly bool) ([]domain.SupportLine, error)
	FirstActive(ctx context.Context) (*domain.SupportLine, error)
}

type supportLineRepository struct {
	pool *pgxpool.Pool
}

// NewSupportLineRepository constructs the repository.
func NewSupportLineRepository(pool *pgxpool.Pool) SupportLineRepository {
	return &supportLineRepository{pool: pool}
}

const lineColumns = `id, name, code, is_active, max_operators, auto_assign, round_robin, priority, created_at, updated_at`

func (r *supportLineRepository) Create(ctx context.Context, line *domain.SupportLine) error {
	const query = `
        INSERT INTO support_lines (name, code, is_active, max_operators, auto_assign, round_robin, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		line.Name,
		line.Code,
		line.IsActive,
		line.MaxOperators,
		line.Policy.AutoAssign,
		line.Policy.RoundRobin,
		line.Policy.Priority,
	).Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
}

func (r *supportLineRepository) Update(ctx context.Context, line *domain.SupportLine) error {
	const query = `
        UPDATE support_lines
        SET name=$1, code=$2, is_active=$3, max_operators=$4, auto_assign=$5, round_robin=$6, priority=$7, updated_at=NOW()
        WHERE id=$8`
	cmd, err := r.pool.Exec(ctx, query,
		line.Name,
		line.Code,
		line.IsActive,
		line.MaxOperators,
		line.Policy.AutoAssign,
		line.Policy.RoundRobin,
		line.Policy.Priority,
		line.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *supportLineRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM support_lines WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *supportLineRepository) GetByID(ctx context.Context, id string) (*domain.SupportLine, error) {
	query := `SELECT ` + lineColumns + ` FROM support_lines WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *supportLineRepository) GetByCode(ctx context.Context, code string) (*domain.SupportLine, error) {
	query := `SELECT ` + lineColumns + ` FROM support_lines WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

func (r *supportLineRepository) FirstActive(ctx context.Context) (*domain.SupportLine, error) {
	query := `SELECT ` + lineColumns + ` FROM support_lines WHERE is_active=TRUE ORDER BY code ASC LIMIT 1`
	return r.fetchSingle(ctx, query)
}

func (r *supportLineRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.SupportLine, error) {
	var line domain.SupportLine
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&line.ID,
		&line.Name,
		&line.Code,
		&line.IsActive,
		&line.MaxOperators,
		&line.Policy.AutoAssign,
		&line.Policy.RoundRobin,
		&line.Policy.Priority,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *supportLineRepository) List(ctx context.Context, activeOnly bool) ([]domain.SupportLine, error) {
	query := `SELECT ` + lineColumns + ` FROM support_lines`
	if activeOnly {
		query += ` WHERE is_active=TRUE`
	}
	query += ` ORDER BY code ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SupportLine
	for rows.Next() {
		var line domain.SupportLine
		if err := rows.Scan(
			&line.ID,
			&line.Name,
			&line.Code,
			&line.IsActive,
			&line.MaxOperators,
			&line.Policy.AutoAssign,
			&line.Policy.RoundRobin,
			&line.Policy.Priority,
			&line.CreatedAt,
			&line.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, line)
	}
	return result, rows.Err()
}
