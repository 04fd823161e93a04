package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// TransferCount aggregates transfers touching one user.
type TransferCount struct {
	UserID   string
	Incoming int
	Outgoing int
}

// TransferRepository stores the append-only reassignment trail.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.TransferHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TransferHistory, error)
	CountsByUser(ctx context.Context, from, to time.Time) ([]TransferCount, error)
}

type transferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository builds the repository.
func NewTransferRepository(pool *pgxpool.Pool) TransferRepository {
	return &transferRepository{pool: pool}
}

func (r *transferRepository) Create(ctx context.Context, transfer *domain.TransferHistory) error {
	const query = `
        INSERT INTO transfer_history (ticket_id, from_user_id, to_user_id, reason)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		transfer.TicketID,
		transfer.FromUserID,
		transfer.ToUserID,
		transfer.Reason,
	).Scan(&transfer.ID, &transfer.CreatedAt)
}

func (r *transferRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TransferHistory, error) {
	const query = `
        SELECT id, ticket_id, from_user_id, to_user_id, reason, created_at
        FROM transfer_history WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TransferHistory
	for rows.Next() {
		var transfer domain.TransferHistory
		if err := rows.Scan(
			&transfer.ID,
			&transfer.TicketID,
			&transfer.FromUserID,
			&transfer.ToUserID,
			&transfer.Reason,
			&transfer.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, transfer)
	}
	return result, rows.Err()
}

func (r *transferRepository) CountsByUser(ctx context.Context, from, to time.Time) ([]TransferCount, error) {
	const query = `
        SELECT user_id,
               SUM(CASE WHEN direction = 'in' THEN 1 ELSE 0 END),
               SUM(CASE WHEN direction = 'out' THEN 1 ELSE 0 END)
        FROM (
            SELECT to_user_id AS user_id, 'in' AS direction FROM transfer_history
            WHERE created_at >= $1 AND created_at <= $2
            UNION ALL
            SELECT from_user_id AS user_id, 'out' AS direction FROM transfer_history
            WHERE from_user_id IS NOT NULL AND created_at >= $1 AND created_at <= $2
        ) moves
        GROUP BY user_id`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TransferCount
	for rows.Next() {
		var tc TransferCount
		if err := rows.Scan(&tc.UserID, &tc.Incoming, &tc.Outgoing); err != nil {
			return nil, err
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}
