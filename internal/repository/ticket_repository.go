package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-backend/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	ClientID      *string
	CreatedByID   *string
	AssignedToID  *string
	SupportLineID *string
	FunnelStageID *string
	Statuses      []domain.TicketStatus
	Categories    []domain.TicketCategory
	SearchTerm    *string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// StageCount is a per-stage aggregate used by funnel stats.
type StageCount struct {
	StageID string
	Count   int
}

// OperatorAggregate is a per-operator aggregate used by KPI reports.
type OperatorAggregate struct {
	OperatorID        string
	OpenCount         int
	ClosedCount       int
	AvgResolutionSecs float64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountActiveByAssignee(ctx context.Context, userID string) (int, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	CountByStage(ctx context.Context, stageID string) (int, error)
	CountByFunnel(ctx context.Context, funnelID string) (int, error)
	StageCounts(ctx context.Context, funnelID string, from, to time.Time) ([]StageCount, error)
	StatusCounts(ctx context.Context, from, to time.Time) (map[domain.TicketStatus]int, error)
	AvgResolutionSeconds(ctx context.Context, from, to time.Time) (float64, error)
	ClosedWithinDueCount(ctx context.Context, from, to time.Time) (closed int, withinDue int, err error)
	OperatorAggregates(ctx context.Context, from, to time.Time) ([]OperatorAggregate, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, title, description, client_id, created_by_id, assigned_to_id,
               status, channel, category, funnel_stage_id, support_line_id, priority, due_date,
               closed_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, title, description, client_id, created_by_id, assigned_to_id,
                             status, channel, category, funnel_stage_id, support_line_id, priority, due_date, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Title,
		ticket.Description,
		ticket.ClientID,
		ticket.CreatedByID,
		ticket.AssignedToID,
		ticket.Status,
		ticket.Channel,
		ticket.Category,
		ticket.FunnelStageID,
		ticket.SupportLineID,
		ticket.Priority,
		ticket.DueDate,
		ticket.ClosedAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, assigned_to_id=$3, status=$4, category=$5,
            funnel_stage_id=$6, support_line_id=$7, priority=$8, due_date=$9, closed_at=$10, updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.AssignedToID,
		ticket.Status,
		ticket.Category,
		ticket.FunnelStageID,
		ticket.SupportLineID,
		ticket.Priority,
		ticket.DueDate,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_id=$%d", len(args)))
	}
	if filter.AssignedToID != nil {
		args = append(args, *filter.AssignedToID)
		clauses = append(clauses, fmt.Sprintf("assigned_to_id=$%d", len(args)))
	}
	if filter.SupportLineID != nil {
		args = append(args, *filter.SupportLineID)
		clauses = append(clauses, fmt.Sprintf("support_line_id=$%d", len(args)))
	}
	if filter.FunnelStageID != nil {
		args = append(args, *filter.FunnelStageID)
		clauses = append(clauses, fmt.Sprintf("funnel_stage_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assigned_to_id=$1 AND status <> 'closed'`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT `+ticketColumns+`
        FROM tickets
        WHERE due_date IS NOT NULL AND due_date < $1 AND status IN ('new','in_progress')
        ORDER BY due_date ASC LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountByStage(ctx context.Context, stageID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE funnel_stage_id=$1`
	var count int
	if err := r.pool.QueryRow(ctx, query, stageID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) CountByFunnel(ctx context.Context, funnelID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets t
        JOIN funnel_stages s ON s.id = t.funnel_stage_id
        WHERE s.funnel_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, funnelID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) StageCounts(ctx context.Context, funnelID string, from, to time.Time) ([]StageCount, error) {
	const query = `
        SELECT t.funnel_stage_id, COUNT(*)
        FROM tickets t
        JOIN funnel_stages s ON s.id = t.funnel_stage_id
        WHERE s.funnel_id = $1 AND t.created_at >= $2 AND t.created_at <= $3
        GROUP BY t.funnel_stage_id`
	rows, err := r.pool.Query(ctx, query, funnelID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StageCount
	for rows.Next() {
		var sc StageCount
		if err := rows.Scan(&sc.StageID, &sc.Count); err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

func (r *ticketRepository) StatusCounts(ctx context.Context, from, to time.Time) (map[domain.TicketStatus]int, error) {
	const query = `
        SELECT status, COUNT(*) FROM tickets
        WHERE created_at >= $1 AND created_at <= $2
        GROUP BY status`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.TicketStatus]int)
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[status] = count
	}
	return result, rows.Err()
}

func (r *ticketRepository) AvgResolutionSeconds(ctx context.Context, from, to time.Time) (float64, error) {
	const query = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (closed_at - created_at))), 0)
        FROM tickets
        WHERE closed_at IS NOT NULL AND created_at >= $1 AND created_at <= $2`
	var avg float64
	if err := r.pool.QueryRow(ctx, query, from, to).Scan(&avg); err != nil {
		return 0, err
	}
	return avg, nil
}

func (r *ticketRepository) ClosedWithinDueCount(ctx context.Context, from, to time.Time) (int, int, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE closed_at IS NOT NULL),
               COUNT(*) FILTER (WHERE closed_at IS NOT NULL AND due_date IS NOT NULL AND closed_at <= due_date)
        FROM tickets
        WHERE created_at >= $1 AND created_at <= $2`
	var closed, withinDue int
	if err := r.pool.QueryRow(ctx, query, from, to).Scan(&closed, &withinDue); err != nil {
		return 0, 0, err
	}
	return closed, withinDue, nil
}

func (r *ticketRepository) OperatorAggregates(ctx context.Context, from, to time.Time) ([]OperatorAggregate, error) {
	const query = `
        SELECT assigned_to_id,
               COUNT(*) FILTER (WHERE status <> 'closed'),
               COUNT(*) FILTER (WHERE status = 'closed'),
               COALESCE(AVG(EXTRACT(EPOCH FROM (closed_at - created_at))) FILTER (WHERE closed_at IS NOT NULL), 0)
        FROM tickets
        WHERE assigned_to_id IS NOT NULL AND created_at >= $1 AND created_at <= $2
        GROUP BY assigned_to_id`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OperatorAggregate
	for rows.Next() {
		var agg OperatorAggregate
		if err := rows.Scan(&agg.OperatorID, &agg.OpenCount, &agg.ClosedCount, &agg.AvgResolutionSecs); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	return result, rows.Err()
}

func ticketScanTargets(ticket *domain.Ticket) []any {
	return []any{
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.ClientID,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.Status,
		&ticket.Channel,
		&ticket.Category,
		&ticket.FunnelStageID,
		&ticket.SupportLineID,
		&ticket.Priority,
		&ticket.DueDate,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketScanTargets(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
