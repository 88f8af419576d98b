package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/factory-workflow/internal/history"
)

// HistoryRepository reads append-only history entries. Entries are written
// only together with the item change they record, see ItemRepository.
type HistoryRepository interface {
	ListByItem(ctx context.Context, itemID string) ([]history.Entry, error)
	ListByItems(ctx context.Context, itemIDs []string) (map[string][]history.Entry, error)
}

type historyRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository builds repository.
func NewHistoryRepository(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepository{pool: pool}
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *historyRepository) ListByItem(ctx context.Context, itemID string) ([]history.Entry, error) {
	byItem, err := r.ListByItems(ctx, []string{itemID})
	if err != nil {
		return nil, err
	}
	return byItem[itemID], nil
}

func (r *historyRepository) ListByItems(ctx context.Context, itemIDs []string) (map[string][]history.Entry, error) {
	result := make(map[string][]history.Entry, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT id, item_id, actor, actor_role, action, details, created_at
        FROM item_history WHERE item_id = ANY($1::uuid[]) ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entry  history.Entry
			itemID string
		)
		if err := rows.Scan(
			&entry.ID,
			&itemID,
			&entry.Actor,
			&entry.ActorRole,
			&entry.Action,
			&entry.Details,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result[itemID] = append(result[itemID], entry)
	}
	return result, rows.Err()
}

func insertHistory(ctx context.Context, db execer, itemID string, entry history.Entry) error {
	const query = `
        INSERT INTO item_history (id, item_id, actor, actor_role, action, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	_, err := db.Exec(ctx, query,
		entry.ID,
		itemID,
		entry.Actor,
		entry.ActorRole,
		entry.Action,
		details,
		entry.Timestamp,
	)
	return err
}
