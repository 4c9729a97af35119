package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

// memStore is an in-memory ProfileStore and EngagementStore.
type memStore struct {
	mu          sync.Mutex
	profiles    map[string]*domain.Profile
	order       []string
	startups    map[string]*domain.Startup
	categories  map[string]*domain.Category
	engagements map[string]*domain.Engagement
	nextID      int

	teamWrites int
	failWrites bool
	listErr    error
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    map[string]*domain.Profile{},
		startups:    map[string]*domain.Startup{},
		categories:  map[string]*domain.Category{},
		engagements: map[string]*domain.Engagement{},
	}
}

func (m *memStore) addProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = &p
	m.order = append(m.order, p.UserID)
}

func (m *memStore) addStartup(st domain.Startup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startups[st.ID] = &st
}

func (m *memStore) addCategory(c domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = &c
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, port.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetStartup(_ context.Context, id string) (*domain.Startup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.startups[id]
	if !ok {
		return nil, port.ErrStartupNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memStore) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, port.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCandidateProfiles(_ context.Context, excludeUserID string) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Profile
	for _, id := range m.order {
		p := m.profiles[id]
		if id == excludeUserID || !p.HasAnyVector() {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memStore) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.profiles[id])
	}
	return out, nil
}

func (m *memStore) ListStartups(_ context.Context) ([]domain.Startup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Startup, 0, len(m.startups))
	for _, st := range m.startups {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b domain.Startup) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memStore) UpdateStartupTeamVector(_ context.Context, id string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	st, ok := m.startups[id]
	if !ok {
		return port.ErrStartupNotFound
	}
	st.TeamVector = vec
	m.teamWrites++
	return nil
}

func (m *memStore) UpdateProfileVector(_ context.Context, userID string, field domain.VectorField, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	p, ok := m.profiles[userID]
	if !ok {
		return port.ErrUserNotFound
	}
	switch field {
	case domain.VectorFieldSkills:
		p.SkillsVector = vec
	case domain.VectorFieldRoles:
		p.RolesVector = vec
	case domain.VectorFieldCategories:
		p.CategoryVector = vec
	}
	return nil
}

// withJoins fills the fields the Postgres store joins in.
func (m *memStore) withJoins(e domain.Engagement) *domain.Engagement {
	if st, ok := m.startups[e.StartupID]; ok {
		e.OwnerID = st.OwnerID
		e.StartupIdea = st.Idea
	}
	if p, ok := m.profiles[e.CandidateID]; ok {
		e.CandidateName = p.FullName
	}
	return &e
}

func (m *memStore) CreateEngagement(_ context.Context, e *domain.Engagement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.engagements {
		if other.StartupID == e.StartupID && other.CandidateID == e.CandidateID && other.Status.IsActive() {
			return port.ErrDuplicateActiveEngagement
		}
	}
	m.nextID++
	e.ID = fmt.Sprintf("e%d", m.nextID)
	e.CreatedAt = time.Unix(int64(m.nextID), 0)
	e.UpdatedAt = e.CreatedAt
	cp := *e
	m.engagements[e.ID] = &cp
	return nil
}

func (m *memStore) GetEngagement(_ context.Context, id string) (*domain.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engagements[id]
	if !ok {
		return nil, port.ErrEngagementNotFound
	}
	return m.withJoins(*e), nil
}

func (m *memStore) FindActiveEngagement(_ context.Context, startupID, candidateID string) (*domain.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.engagements {
		if e.StartupID == startupID && e.CandidateID == candidateID && e.Status.IsActive() {
			return m.withJoins(*e), nil
		}
	}
	return nil, nil
}

func (m *memStore) UpdateEngagementStatus(_ context.Context, id string, from, to domain.EngagementStatus) (*domain.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engagements[id]
	if !ok || e.Status != from {
		return nil, port.ErrInvalidState
	}
	e.Status = to
	return m.withJoins(*e), nil
}

func (m *memStore) DeleteEngagement(_ context.Context, id string, expected domain.EngagementStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engagements[id]
	if !ok || e.Status != expected {
		return port.ErrInvalidState
	}
	delete(m.engagements, id)
	return nil
}

func (m *memStore) ListEngagements(_ context.Context, f domain.EngagementFilter) ([]domain.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Engagement
	for _, raw := range m.engagements {
		e := m.withJoins(*raw)
		switch {
		case f.StartupID != "" && e.StartupID != f.StartupID,
			f.OwnerID != "" && e.OwnerID != f.OwnerID,
			f.CandidateID != "" && e.CandidateID != f.CandidateID,
			f.PartyID != "" && e.OwnerID != f.PartyID && e.CandidateID != f.PartyID,
			len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status):
			continue
		}
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b domain.Engagement) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// fakeEmbedder returns canned vectors keyed by text.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) Name() string { return "fake/test" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// blockingEmbedder waits for ctx to end.
type blockingEmbedder struct{}

func (blockingEmbedder) Name() string { return "fake/blocking" }

func (blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type auditEntry struct {
	userID, action, resourceID, details string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (f *fakeAudit) WriteAudit(userID, action, _, resourceID, details, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, auditEntry{userID, action, resourceID, details})
	return f.err
}

var (
	_ port.ProfileStore      = (*memStore)(nil)
	_ port.EngagementStore   = (*memStore)(nil)
	_ port.EmbeddingProvider = (*fakeEmbedder)(nil)
	_ port.AuditWriter       = (*fakeAudit)(nil)
)
