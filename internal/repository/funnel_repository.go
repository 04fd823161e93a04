package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// FunnelRepository manages persistence for funnels and their stages.
type FunnelRepository interface {
	Create(ctx context.Context, funnel *domain.Funnel) error
	Update(ctx context.Context, funnel *domain.Funnel) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Funnel, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Funnel, error)

	CreateStage(ctx context.Context, stage *domain.FunnelStage) error
	UpdateStage(ctx context.Context, stage *domain.FunnelStage) error
	DeleteStage(ctx context.Context, id string) error
	GetStage(ctx context.Context, id string) (*domain.FunnelStage, error)
	ListStages(ctx context.Context, funnelID string) ([]domain.FunnelStage, error)
	GetStageByOrder(ctx context.Context, funnelID string, sortOrder int) (*domain.FunnelStage, error)
	StageOrderTaken(ctx context.Context, funnelID string, sortOrder int) (bool, error)
}

type funnelRepository struct {
	pool *pgxpool.Pool
}

// NewFunnelRepository constructs the repository.
func NewFunnelRepository(pool *pgxpool.Pool) FunnelRepository {
	return &funnelRepository{pool: pool}
}

func (r *funnelRepository) Create(ctx context.Context, funnel *domain.Funnel) error {
	const query = `
        INSERT INTO funnels (name, is_active, sort_order)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		funnel.Name,
		funnel.IsActive,
		funnel.SortOrder,
	).Scan(&funnel.ID, &funnel.CreatedAt, &funnel.UpdatedAt)
}

func (r *funnelRepository) Update(ctx context.Context, funnel *domain.Funnel) error {
	const query = `
        UPDATE funnels SET name=$1, is_active=$2, sort_order=$3, updated_at=NOW() WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, funnel.Name, funnel.IsActive, funnel.SortOrder, funnel.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *funnelRepository) Delete(ctx context.Context, id string) error {
	// Stages cascade with the funnel only when no ticket references them;
	// the service layer enforces that guard before calling Delete.
	if _, err := r.pool.Exec(ctx, `DELETE FROM funnel_stages WHERE funnel_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM funnels WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *funnelRepository) GetByID(ctx context.Context, id string) (*domain.Funnel, error) {
	const query = `
        SELECT id, name, is_active, sort_order, created_at, updated_at
        FROM funnels WHERE id=$1`
	var funnel domain.Funnel
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&funnel.ID,
		&funnel.Name,
		&funnel.IsActive,
		&funnel.SortOrder,
		&funnel.CreatedAt,
		&funnel.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &funnel, nil
}

func (r *funnelRepository) List(ctx context.Context, activeOnly bool) ([]domain.Funnel, error) {
	query := `SELECT id, name, is_active, sort_order, created_at, updated_at FROM funnels`
	if activeOnly {
		query += ` WHERE is_active=TRUE`
	}
	query += ` ORDER BY sort_order ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Funnel
	for rows.Next() {
		var funnel domain.Funnel
		if err := rows.Scan(&funnel.ID, &funnel.Name, &funnel.IsActive, &funnel.SortOrder, &funnel.CreatedAt, &funnel.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, funnel)
	}
	return result, rows.Err()
}

const stageColumns = `id, funnel_id, name, sort_order, ticket_status, is_final, is_active, created_at, updated_at`

func (r *funnelRepository) CreateStage(ctx context.Context, stage *domain.FunnelStage) error {
	const query = `
        INSERT INTO funnel_stages (funnel_id, name, sort_order, ticket_status, is_final, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		stage.FunnelID,
		stage.Name,
		stage.SortOrder,
		stage.TicketStatus,
		stage.IsFinal,
		stage.IsActive,
	).Scan(&stage.ID, &stage.CreatedAt, &stage.UpdatedAt)
}

func (r *funnelRepository) UpdateStage(ctx context.Context, stage *domain.FunnelStage) error {
	const query = `
        UPDATE funnel_stages
        SET name=$1, sort_order=$2, ticket_status=$3, is_final=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		stage.Name,
		stage.SortOrder,
		stage.TicketStatus,
		stage.IsFinal,
		stage.IsActive,
		stage.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *funnelRepository) DeleteStage(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM funnel_stages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *funnelRepository) GetStage(ctx context.Context, id string) (*domain.FunnelStage, error) {
	query := `SELECT ` + stageColumns + ` FROM funnel_stages WHERE id=$1`
	return r.fetchStage(ctx, query, id)
}

func (r *funnelRepository) GetStageByOrder(ctx context.Context, funnelID string, sortOrder int) (*domain.FunnelStage, error) {
	query := `SELECT ` + stageColumns + ` FROM funnel_stages WHERE funnel_id=$1 AND sort_order=$2 AND is_active=TRUE`
	return r.fetchStage(ctx, query, funnelID, sortOrder)
}

// StageOrderTaken reports whether any stage, active or not, occupies the
// sort order within the funnel.
func (r *funnelRepository) StageOrderTaken(ctx context.Context, funnelID string, sortOrder int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM funnel_stages WHERE funnel_id=$1 AND sort_order=$2)`
	var taken bool
	if err := r.pool.QueryRow(ctx, query, funnelID, sortOrder).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

func (r *funnelRepository) fetchStage(ctx context.Context, query string, args ...any) (*domain.FunnelStage, error) {
	var stage domain.FunnelStage
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stage.ID,
		&stage.FunnelID,
		&stage.Name,
		&stage.SortOrder,
		&stage.TicketStatus,
		&stage.IsFinal,
		&stage.IsActive,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *funnelRepository) ListStages(ctx context.Context, funnelID string) ([]domain.FunnelStage, error) {
	query := `SELECT ` + stageColumns + ` FROM funnel_stages WHERE funnel_id=$1 ORDER BY sort_order ASC`
	rows, err := r.pool.Query(ctx, query, funnelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.FunnelStage
	for rows.Next() {
		var stage domain.FunnelStage
		if err := rows.Scan(
			&stage.ID,
			&stage.FunnelID,
			&stage.Name,
			&stage.SortOrder,
			&stage.TicketStatus,
			&stage.IsFinal,
			&stage.IsActive,
			&stage.CreatedAt,
			&stage.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, stage)
	}
	return result, rows.Err()
}
