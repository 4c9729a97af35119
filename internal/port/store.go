package port

import (
	"context"

	"github.com/arturoeanton/vietstart-api/internal/domain"
)

// ProfileStore reads profiles, startups and categories and persists the
// embeddings derived from them.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetStartup(ctx context.Context, id string) (*domain.Startup, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)

	// ListCandidateProfiles returns every non-deleted profile other than
	// excludeUserID that has at least one embedding.
	ListCandidateProfiles(ctx context.Context, excludeUserID string) ([]domain.Profile, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	ListStartups(ctx context.Context) ([]domain.Startup, error)

	UpdateStartupTeamVector(ctx context.Context, startupID string, vec []float32) error
	// UpdateProfileVector stores vec in the given field; a nil vec clears it.
	UpdateProfileVector(ctx context.Context, userID string, field domain.VectorField, vec []float32) error
}

// EngagementStore persists recruitment records.
type EngagementStore interface {
	CreateEngagement(ctx context.Context, e *domain.Engagement) error
	GetEngagement(ctx context.Context, id string) (*domain.Engagement, error)
	// FindActiveEngagement returns nil, nil when the pair has no Pending or
	// Dealing record.
	FindActiveEngagement(ctx context.Context, startupID, candidateID string) (*domain.Engagement, error)
	// UpdateEngagementStatus moves id from `from` to `to` only if it is still
	// in `from`; otherwise it returns ErrInvalidState.
	UpdateEngagementStatus(ctx context.Context, id string, from, to domain.EngagementStatus) (*domain.Engagement, error)
	// DeleteEngagement removes id only if it is still in expected.
	DeleteEngagement(ctx context.Context, id string, expected domain.EngagementStatus) error
	ListEngagements(ctx context.Context, f domain.EngagementFilter) ([]domain.Engagement, error)
}

// AuditWriter defines how audit records are persisted. details is a JSON blob.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// AuditReader lists audit records newest first, optionally filtered by action.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}
