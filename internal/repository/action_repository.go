package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// ActionRepository stores the journal of actions taken through ticket views.
type ActionRepository interface {
	Create(ctx context.Context, action *domain.TicketAction) error
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketAction, error)
}

type actionRepository struct {
	pool *pgxpool.Pool
}

// NewActionRepository returns a Postgres-backed journal, or an in-memory one
// when no pool is configured.
func NewActionRepository(pool *pgxpool.Pool) ActionRepository {
	if pool == nil {
		return NewMemoryActionRepository(defaultMemoryJournalSize)
	}
	return &actionRepository{pool: pool}
}

func (r *actionRepository) Create(ctx context.Context, action *domain.TicketAction) error {
	const query = `
        INSERT INTO ticket_actions (id, ticket_id, emp_id, role, action, target_status, remark, outcome, message)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		action.ID,
		action.TicketID,
		action.EmpID,
		action.Role,
		action.Action,
		action.TargetStatus,
		action.Remark,
		action.Outcome,
		action.Message,
	).Scan(&action.CreatedAt)
}

func (r *actionRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.TicketAction, error) {
	const query = `
        SELECT id, ticket_id, emp_id, role, action, target_status, remark, outcome, message, created_at
        FROM ticket_actions WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TicketAction{}
	for rows.Next() {
		var action domain.TicketAction
		if err := rows.Scan(
			&action.ID,
			&action.TicketID,
			&action.EmpID,
			&action.Role,
			&action.Action,
			&action.TargetStatus,
			&action.Remark,
			&action.Outcome,
			&action.Message,
			&action.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}

const (
	defaultMemoryJournalSize = 1000
	defaultListLimit         = 50
	maxListLimit             = 500
)

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// memoryActionRepository keeps the newest entries up to a fixed capacity.
type memoryActionRepository struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.TicketAction
	now      func() time.Time
}

// NewMemoryActionRepository builds a bounded in-process journal.
func NewMemoryActionRepository(capacity int) ActionRepository {
	if capacity <= 0 {
		capacity = defaultMemoryJournalSize
	}
	return &memoryActionRepository{capacity: capacity, now: time.Now}
}

func (r *memoryActionRepository) Create(_ context.Context, action *domain.TicketAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = r.now()
	}
	r.entries = append(r.entries, *action)
	if overflow := len(r.entries) - r.capacity; overflow > 0 {
		r.entries = append([]domain.TicketAction(nil), r.entries[overflow:]...)
	}
	return nil
}

func (r *memoryActionRepository) ListByTicket(_ context.Context, ticketID string, limit int) ([]domain.TicketAction, error) {
	limit = normalizeLimit(limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []domain.TicketAction{}
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].TicketID == ticketID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}
