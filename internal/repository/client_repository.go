package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// ClientRepository handles persistence for end customers.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	GetByExternalID(ctx context.Context, channel domain.Channel, externalID string) (*domain.Client, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates the repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (channel, external_id, display_name, phone)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		client.Channel,
		client.ExternalID,
		client.DisplayName,
		client.Phone,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	const query = `
        UPDATE clients SET display_name=$1, phone=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, client.DisplayName, client.Phone, client.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	const query = `
        SELECT id, channel, external_id, display_name, phone, created_at, updated_at
        FROM clients WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *clientRepository) GetByExternalID(ctx context.Context, channel domain.Channel, externalID string) (*domain.Client, error) {
	const query = `
        SELECT id, channel, external_id, display_name, phone, created_at, updated_at
        FROM clients WHERE channel=$1 AND external_id=$2`
	return r.fetchSingle(ctx, query, channel, externalID)
}

func (r *clientRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Client, error) {
	var client domain.Client
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&client.ID,
		&client.Channel,
		&client.ExternalID,
		&client.DisplayName,
		&client.Phone,
		&client.CreatedAt,
		&client.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &client, nil
}
