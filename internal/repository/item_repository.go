package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/factory-workflow/internal/domain"
	"github.com/spec-kit/factory-workflow/internal/history"
	apperrors "github.com/spec-kit/factory-workflow/pkg/util/errorutil"
)

// ItemRepository encapsulates workflow item persistence. Returned items carry
// no history; HistoryRepository loads it separately.
type ItemRepository interface {
	// Create inserts item together with the entries already in its history.
	Create(ctx context.Context, item *domain.WorkflowItem) error
	GetByID(ctx context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error)
	List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error)
	// SaveTransition persists item and appends entry atomically, provided the
	// stored version still equals expectedVersion. On success item.Version is
	// expectedVersion+1.
	SaveTransition(ctx context.Context, item *domain.WorkflowItem, expectedVersion int64, entry history.Entry) error
	Summary(ctx context.Context) (domain.Summary, error)
}

type itemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository instantiates repository.
func NewItemRepository(pool *pgxpool.Pool) ItemRepository {
	return &itemRepository{pool: pool}
}

type forwardRow struct {
	DepartmentID string    `json:"department_id"`
	ForwardedBy  string    `json:"forwarded_by"`
	Note         string    `json:"note,omitempty"`
	ForwardedAt  time.Time `json:"forwarded_at"`
}

type responseRow struct {
	DepartmentID string    `json:"department_id"`
	RespondedBy  string    `json:"responded_by"`
	Text         string    `json:"text"`
	RespondedAt  time.Time `json:"responded_at"`
}

type publishedRow struct {
	IsPublished bool      `json:"is_published"`
	PublishedBy string    `json:"published_by"`
	Text        string    `json:"text"`
	PublishedAt time.Time `json:"published_at"`
}

const itemColumns = `id, kind, status, title, description, submitter_id, priority, difficulty,
               assignee_id, department_id, escalated, forward_info, department_response,
               published_info, attachments, version, created_at, updated_at`

func (r *itemRepository) Create(ctx context.Context, item *domain.WorkflowItem) error {
	const query = `
        INSERT INTO workflow_items (id, kind, status, title, description, submitter_id, priority, difficulty,
            assignee_id, department_id, escalated, forward_info, department_response, published_info,
            attachments, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	attachments := item.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query,
		item.ID,
		item.Kind,
		item.Status,
		item.Title,
		item.Description,
		item.SubmitterID,
		item.Priority,
		item.Difficulty,
		item.AssigneeID,
		item.DepartmentID,
		item.Escalated,
		toForwardRow(item.Forward),
		toResponseRow(item.Response),
		toPublishedRow(item.Published),
		attachments,
		item.Version,
		item.CreatedAt,
		item.UpdatedAt,
	); err != nil {
		return err
	}
	for _, entry := range item.History.Entries() {
		if err := insertHistory(ctx, tx, item.ID, entry); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *itemRepository) GetByID(ctx context.Context, kind domain.Kind, id string) (*domain.WorkflowItem, error) {
	query := `SELECT ` + itemColumns + ` FROM workflow_items WHERE kind=$1 AND id=$2`
	item, err := scanItem(r.pool.QueryRow(ctx, query, kind, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(string(kind), map[string]any{"id": id})
		}
		return nil, err
	}
	return item, nil
}

func (r *itemRepository) List(ctx context.Context, kind domain.Kind, filter domain.ItemFilter) ([]*domain.WorkflowItem, error) {
	clauses := []string{"kind=$1"}
	args := []any{kind}

	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	args = append(args, filter.WantEscalated())
	clauses = append(clauses, fmt.Sprintf("escalated=$%d", len(args)))
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Difficulty != nil {
		args = append(args, *filter.Difficulty)
		clauses = append(clauses, fmt.Sprintf("difficulty=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + itemColumns + ` FROM workflow_items WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY ` + orderClause(kind, filter.Direction)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.WorkflowItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// orderClause mirrors ordering.Rank so that paging is stable against the
// in-memory ranking.
func orderClause(kind domain.Kind, direction string) string {
	dir := "DESC"
	if direction == "oldest" {
		dir = "ASC"
	}
	if kind != domain.KindIncident {
		return "created_at " + dir + ", id ASC"
	}
	return `CASE priority
            WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'normal' THEN 2 WHEN 'low' THEN 1
            ELSE 0 END DESC, created_at ` + dir + `, id ASC`
}

func (r *itemRepository) SaveTransition(ctx context.Context, item *domain.WorkflowItem, expectedVersion int64, entry history.Entry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const update = `
        UPDATE workflow_items SET status=$1, priority=$2, difficulty=$3, assignee_id=$4, department_id=$5,
            escalated=$6, forward_info=$7, department_response=$8, published_info=$9,
            version=version+1, updated_at=$10
        WHERE id=$11 AND version=$12`
	cmd, err := tx.Exec(ctx, update,
		item.Status,
		item.Priority,
		item.Difficulty,
		item.AssigneeID,
		item.DepartmentID,
		item.Escalated,
		toForwardRow(item.Forward),
		toResponseRow(item.Response),
		toPublishedRow(item.Published),
		item.UpdatedAt,
		item.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewConflictStale(map[string]any{"id": item.ID, "expected_version": expectedVersion})
	}
	if err := insertHistory(ctx, tx, item.ID, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	item.Version = expectedVersion + 1
	return nil
}

func (r *itemRepository) Summary(ctx context.Context) (domain.Summary, error) {
	const query = `SELECT kind, status, COUNT(*) FROM workflow_items GROUP BY kind, status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return domain.Summary{}, err
	}
	defer rows.Close()

	summary := domain.Summary{Counts: map[domain.Kind]map[domain.Status]int{}, GeneratedAt: time.Now().UTC()}
	for rows.Next() {
		var (
			kind   domain.Kind
			status domain.Status
			count  int
		)
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return domain.Summary{}, err
		}
		if summary.Counts[kind] == nil {
			summary.Counts[kind] = map[domain.Status]int{}
		}
		summary.Counts[kind][status] = count
	}
	return summary, rows.Err()
}

func scanItem(row pgx.Row) (*domain.WorkflowItem, error) {
	var (
		item      domain.WorkflowItem
		forward   *forwardRow
		response  *responseRow
		published *publishedRow
	)
	if err := row.Scan(
		&item.ID,
		&item.Kind,
		&item.Status,
		&item.Title,
		&item.Description,
		&item.SubmitterID,
		&item.Priority,
		&item.Difficulty,
		&item.AssigneeID,
		&item.DepartmentID,
		&item.Escalated,
		&forward,
		&response,
		&published,
		&item.Attachments,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if forward != nil {
		item.Forward = &domain.ForwardInfo{DepartmentID: forward.DepartmentID, ForwardedBy: forward.ForwardedBy, Note: forward.Note, ForwardedAt: forward.ForwardedAt}
	}
	if response != nil {
		item.Response = &domain.DepartmentResponse{DepartmentID: response.DepartmentID, RespondedBy: response.RespondedBy, Text: response.Text, RespondedAt: response.RespondedAt}
	}
	if published != nil {
		item.Published = &domain.PublishedInfo{IsPublished: published.IsPublished, PublishedBy: published.PublishedBy, Text: published.Text, PublishedAt: published.PublishedAt}
	}
	return &item, nil
}

func toForwardRow(f *domain.ForwardInfo) *forwardRow {
	if f == nil {
		return nil
	}
	return &forwardRow{DepartmentID: f.DepartmentID, ForwardedBy: f.ForwardedBy, Note: f.Note, ForwardedAt: f.ForwardedAt}
}

func toResponseRow(r *domain.DepartmentResponse) *responseRow {
	if r == nil {
		return nil
	}
	return &responseRow{DepartmentID: r.DepartmentID, RespondedBy: r.RespondedBy, Text: r.Text, RespondedAt: r.RespondedAt}
}

func toPublishedRow(p *domain.PublishedInfo) *publishedRow {
	if p == nil {
		return nil
	}
	return &publishedRow{IsPublished: p.IsPublished, PublishedBy: p.PublishedBy, Text: p.Text, PublishedAt: p.PublishedAt}
}
