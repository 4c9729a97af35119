package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

// --- Users ---

const profileColumns = `id, email, full_name, avatar, bio, location, role,
	skills, roles_in_startup, category_interests,
	skills_embedding, roles_embedding, categories_embedding,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		p                   domain.Profile
		skills, roles, cats nullVector
	)
	if err := row.Scan(
		&p.UserID, &p.Email, &p.FullName, &p.Avatar, &p.Bio, &p.Location, &p.Role,
		&p.SkillsText, &p.RolesText, &p.CategoryInterestText,
		skills.dest(), roles.dest(), cats.dest(),
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.SkillsVector = skills.slice()
	p.RolesVector = roles.slice()
	p.CategoryVector = cats.slice()
	return &p, nil
}

// GetProfile retrieves a non-deleted user with its embeddings.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	if !validID(userID) {
		return nil, fmt.Errorf("get profile: %w", port.ErrUserNotFound)
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", notFound(err, port.ErrUserNotFound))
	}
	return p, nil
}

// ListCandidateProfiles returns every non-deleted user except excludeUserID
// that has at least one embedding.
func (s *PostgresStore) ListCandidateProfiles(ctx context.Context, excludeUserID string) ([]domain.Profile, error) {
	if !validID(excludeUserID) {
		excludeUserID = uuid.Nil.String()
	}
	query := `SELECT ` + profileColumns + `
	          FROM users
	          WHERE deleted_at IS NULL
	            AND id <> $1
	            AND (skills_embedding IS NOT NULL OR roles_embedding IS NOT NULL OR categories_embedding IS NOT NULL)
	          ORDER BY created_at, id`
	return s.listProfiles(ctx, "list candidate profiles", query, excludeUserID)
}

// ListProfiles returns every non-deleted user.
func (s *PostgresStore) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY created_at, id`
	return s.listProfiles(ctx, "list profiles", query)
}

func (s *PostgresStore) listProfiles(ctx context.Context, op, query string, args ...any) ([]domain.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

var profileVectorColumns = map[domain.VectorField]string{
	domain.VectorFieldSkills:     "skills_embedding",
	domain.VectorFieldRoles:      "roles_embedding",
	domain.VectorFieldCategories: "categories_embedding",
}

// UpdateProfileVector overwrites one embedding column; a nil vec clears it.
func (s *PostgresStore) UpdateProfileVector(ctx context.Context, userID string, field domain.VectorField, vec []float32) error {
	column, ok := profileVectorColumns[field]
	if !ok {
		return fmt.Errorf("update profile vector: unknown field %q", field)
	}
	if !validID(userID) {
		return fmt.Errorf("update profile vector: %w", port.ErrUserNotFound)
	}

	query := `UPDATE users SET ` + column + ` = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`
	res, err := s.db.ExecContext(ctx, query, vectorArg(vec), userID)
	if err != nil {
		return fmt.Errorf("update profile vector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update profile vector: %w", port.ErrUserNotFound)
	}
	return nil
}

// --- Startups ---

const startupColumns = `id, user_id, idea, team, team_embedding, COALESCE(category_id::text, ''), created_at, updated_at`

func scanStartup(row rowScanner) (*domain.Startup, error) {
	var (
		st   domain.Startup
		team nullVector
	)
	if err := row.Scan(
		&st.ID, &st.OwnerID, &st.Idea, &st.TeamText, team.dest(), &st.CategoryID,
		&st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.TeamVector = team.slice()
	return &st, nil
}

// GetStartup retrieves a startup with its team embedding.
func (s *PostgresStore) GetStartup(ctx context.Context, id string) (*domain.Startup, error) {
	query := `SELECT ` + startupColumns + ` FROM startups WHERE id = $1`

	if !validID(id) {
		return nil, fmt.Errorf("get startup: %w", port.ErrStartupNotFound)
	}
	st, err := scanStartup(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get startup: %w", notFound(err, port.ErrStartupNotFound))
	}
	return st, nil
}

// ListStartups returns every startup.
func (s *PostgresStore) ListStartups(ctx context.Context) ([]domain.Startup, error) {
	query := `SELECT ` + startupColumns + ` FROM startups ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list startups: %w", err)
	}
	defer rows.Close()

	var startups []domain.Startup
	for rows.Next() {
		st, err := scanStartup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan startup: %w", err)
		}
		startups = append(startups, *st)
	}
	return startups, rows.Err()
}

// UpdateStartupTeamVector overwrites the team embedding; a nil vec clears it.
func (s *PostgresStore) UpdateStartupTeamVector(ctx context.Context, startupID string, vec []float32) error {
	if !validID(startupID) {
		return fmt.Errorf("update team vector: %w", port.ErrStartupNotFound)
	}
	query := `UPDATE startups SET team_embedding = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, vectorArg(vec), startupID)
	if err != nil {
		return fmt.Errorf("update team vector: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update team vector: %w", port.ErrStartupNotFound)
	}
	return nil
}

// --- Categories ---

// GetCategory retrieves a category by ID.
func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT id, name, description FROM categories WHERE id = $1`

	if !validID(id) {
		return nil, fmt.Errorf("get category: %w", port.ErrCategoryNotFound)
	}
	var c domain.Category
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description); err != nil {
		return nil, fmt.Errorf("get category: %w", notFound(err, port.ErrCategoryNotFound))
	}
	return &c, nil
}
