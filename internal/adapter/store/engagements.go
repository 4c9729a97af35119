package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

// --- Engagements ---

const engagementSelect = `SELECT ts.id, ts.startup_id, ts.user_id, ts.status, ts.note, ts.created_at, ts.updated_at,
	       s.user_id, s.idea, u.full_name
	FROM team_startups ts
	JOIN startups s ON s.id = ts.startup_id
	JOIN users u ON u.id = ts.user_id`

func scanEngagement(row rowScanner) (*domain.Engagement, error) {
	var e domain.Engagement
	if err := row.Scan(
		&e.ID, &e.StartupID, &e.CandidateID, &e.Status, &e.Note, &e.CreatedAt, &e.UpdatedAt,
		&e.OwnerID, &e.StartupIdea, &e.CandidateName,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEngagement inserts a new engagement and fills in its ID and timestamps.
// A concurrent active engagement for the same pair surfaces as
// ErrDuplicateActiveEngagement through the partial unique index.
func (s *PostgresStore) CreateEngagement(ctx context.Context, e *domain.Engagement) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `INSERT INTO team_startups (id, startup_id, user_id, status, note)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query, e.ID, e.StartupID, e.CandidateID, e.Status, e.Note).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create engagement: %w", port.ErrDuplicateActiveEngagement)
		}
		return fmt.Errorf("create engagement: %w", err)
	}
	return nil
}

// GetEngagement retrieves an engagement with its joined owner and display fields.
func (s *PostgresStore) GetEngagement(ctx context.Context, id string) (*domain.Engagement, error) {
	if !validID(id) {
		return nil, fmt.Errorf("get engagement: %w", port.ErrEngagementNotFound)
	}
	e, err := scanEngagement(s.db.QueryRowContext(ctx, engagementSelect+` WHERE ts.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get engagement: %w", notFound(err, port.ErrEngagementNotFound))
	}
	return e, nil
}

// FindActiveEngagement returns the Pending or Dealing engagement for the
// pair, or nil when there is none.
func (s *PostgresStore) FindActiveEngagement(ctx context.Context, startupID, candidateID string) (*domain.Engagement, error) {
	if !validID(startupID) || !validID(candidateID) {
		return nil, nil
	}
	query := engagementSelect + `
	          WHERE ts.startup_id = $1 AND ts.user_id = $2 AND ts.status IN ('Pending', 'Dealing')
	          LIMIT 1`

	rows, err := s.db.QueryContext(ctx, query, startupID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("find active engagement: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEngagement(rows)
	if err != nil {
		return nil, fmt.Errorf("scan engagement: %w", err)
	}
	return e, nil
}

// UpdateEngagementStatus moves id from one status to another only if it is
// still in from. A lost race returns ErrInvalidState.
func (s *PostgresStore) UpdateEngagementStatus(ctx context.Context, id string, from, to domain.EngagementStatus) (*domain.Engagement, error) {
	if !validID(id) {
		return nil, fmt.Errorf("update engagement status: %w", port.ErrEngagementNotFound)
	}
	query := `UPDATE team_startups SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return nil, fmt.Errorf("update engagement status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update engagement status: %w", port.ErrInvalidState)
	}
	return s.GetEngagement(ctx, id)
}

// DeleteEngagement removes id only if it is still in expected.
func (s *PostgresStore) DeleteEngagement(ctx context.Context, id string, expected domain.EngagementStatus) error {
	if !validID(id) {
		return fmt.Errorf("delete engagement: %w", port.ErrEngagementNotFound)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM team_startups WHERE id = $1 AND status = $2`, id, expected)
	if err != nil {
		return fmt.Errorf("delete engagement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete engagement: %w", port.ErrInvalidState)
	}
	return nil
}

// ListEngagements returns engagements matching f, newest first.
func (s *PostgresStore) ListEngagements(ctx context.Context, f domain.EngagementFilter) ([]domain.Engagement, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	for _, id := range []string{f.StartupID, f.OwnerID, f.CandidateID, f.PartyID} {
		if id != "" && !validID(id) {
			return nil, nil
		}
	}
	if f.StartupID != "" {
		add("ts.startup_id = $%d", f.StartupID)
	}
	if f.OwnerID != "" {
		add("s.user_id = $%d", f.OwnerID)
	}
	if f.CandidateID != "" {
		add("ts.user_id = $%d", f.CandidateID)
	}
	if f.PartyID != "" {
		args = append(args, f.PartyID)
		conds = append(conds, fmt.Sprintf("(s.user_id = $%d OR ts.user_id = $%d)", len(args), len(args)))
	}
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			names[i] = st.String()
		}
		add("ts.status = ANY($%d)", pq.Array(names))
	}

	query := engagementSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts.created_at DESC, ts.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	var out []domain.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
