package port

import (
	"errors"
	"fmt"

	"github.com/arturoeanton/vietstart-api/internal/domain"
)

// Sentinel errors used across ports.
var (
	ErrNotFound           = errors.New("not found")
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrStartupNotFound    = fmt.Errorf("startup %w", ErrNotFound)
	ErrCategoryNotFound   = fmt.Errorf("category %w", ErrNotFound)
	ErrEngagementNotFound = fmt.Errorf("engagement %w", ErrNotFound)
	ErrJobNotFound        = fmt.Errorf("job %w", ErrNotFound)

	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidState              = errors.New("invalid engagement state")
	ErrDuplicateActiveEngagement = errors.New("an active engagement already exists for this startup and candidate")
	ErrEmbeddingUnavailable      = errors.New("embedding provider unavailable")
)

// TransitionError describes a rejected engagement event. It unwraps to
// ErrForbidden or ErrInvalidState so callers can branch with errors.Is.
type TransitionError struct {
	From   domain.EngagementStatus
	Event  domain.EngagementEvent
	Reason string
	Kind   error
}

func (e *TransitionError) Error() string {
	if !e.From.Valid() {
		return fmt.Sprintf("cannot %s: %s", e.Event, e.Reason)
	}
	return fmt.Sprintf("cannot %s engagement in status %s: %s", e.Event, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error { return e.Kind }
