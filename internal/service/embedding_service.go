package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/metrics"
	"github.com/arturoeanton/vietstart-api/internal/observability"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

// EmbeddingService turns profile, startup and category text into vectors and
// keeps the stored vectors in step with that text.
type EmbeddingService struct {
	provider port.EmbeddingProvider
	store    port.ProfileStore
	metrics  *metrics.Manager
	timeout  time.Duration
	workers  int
}

// EmbeddingConfig tunes an EmbeddingService.
type EmbeddingConfig struct {
	// Timeout bounds each provider call. Zero means only the caller's ctx applies.
	Timeout time.Duration
	// Workers bounds RecalculateAll concurrency.
	Workers int
}

// NewEmbeddingService creates a new embedding service. m may be nil.
func NewEmbeddingService(provider port.EmbeddingProvider, store port.ProfileStore, cfg EmbeddingConfig, m *metrics.Manager) *EmbeddingService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &EmbeddingService{
		provider: provider,
		store:    store,
		metrics:  m,
		timeout:  cfg.Timeout,
		workers:  cfg.Workers,
	}
}

// Provider returns the name of the underlying embedding provider.
func (s *EmbeddingService) Provider() string {
	return s.provider.Name()
}

// Embed returns the vector for text. Blank text yields an empty vector
// without a provider call. Provider failures wrap ErrEmbeddingUnavailable.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	name := s.provider.Name()
	if strings.TrimSpace(text) == "" {
		s.metrics.RecordEmbedding(name, metrics.OutcomeSkipped, 0)
		return []float32{}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := observability.StartEmbedSpan(ctx, name, len(text))
	defer span.End()

	start := time.Now()
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		s.metrics.RecordEmbedding(name, metrics.OutcomeFailure, time.Since(start))
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", port.ErrEmbeddingUnavailable, err)
	}
	s.metrics.RecordEmbedding(name, metrics.OutcomeSuccess, time.Since(start))
	return vec, nil
}

// EmbedAll returns one vector per text, in order. A provider that
// implements port.BatchEmbedder is called once; any other is called per text.
func (s *EmbeddingService) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	batcher, ok := s.provider.(port.BatchEmbedder)
	if !ok {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			vec, err := s.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = vec
		}
		return out, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := s.provider.Name()
	size := 0
	for _, text := range texts {
		size += len(text)
	}
	ctx, span := observability.StartEmbedSpan(ctx, name, size)
	defer span.End()

	start := time.Now()
	vecs, err := batcher.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts))
	}
	if err != nil {
		s.metrics.RecordEmbedding(name, metrics.OutcomeFailure, time.Since(start))
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", port.ErrEmbeddingUnavailable, err)
	}
	s.metrics.RecordEmbedding(name, metrics.OutcomeSuccess, time.Since(start))
	return vecs, nil
}

// EnsureTeamVector computes and persists the team vector of st when it has
// team text but no vector yet. Failures are logged and leave the vector
// absent; they never fail the caller.
func (s *EmbeddingService) EnsureTeamVector(ctx context.Context, st *domain.Startup) {
	if !st.NeedsTeamVector() {
		return
	}

	vec, err := s.Embed(ctx, st.TeamText)
	if err != nil {
		slog.Warn("team vector unavailable", "startup_id", st.ID, "error", err)
		return
	}
	if len(vec) == 0 {
		return
	}
	st.TeamVector = vec

	if err := s.store.UpdateStartupTeamVector(ctx, st.ID, vec); err != nil {
		slog.Warn("failed to persist team vector", "startup_id", st.ID, "error", err)
	}
}

// CategoryVector embeds the category's name and description. It returns
// nil when the category is unset, unknown, or cannot be embedded.
func (s *EmbeddingService) CategoryVector(ctx context.Context, categoryID string) []float32 {
	if categoryID == "" {
		return nil
	}

	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		slog.Warn("category lookup failed", "category_id", categoryID, "error", err)
		return nil
	}

	vec, err := s.Embed(ctx, cat.EmbeddingText())
	if err != nil {
		slog.Warn("category vector unavailable", "category_id", categoryID, "error", err)
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

// RecalculationResult reports which profile vectors an explicit
// recalculation wrote and which it cleared because their text was empty.
type RecalculationResult struct {
	UserID   string               `json:"user_id"`
	Provider string               `json:"provider"`
	Updated  []domain.VectorField `json:"updated"`
	Cleared  []domain.VectorField `json:"cleared"`
}

// RecalculateProfile recomputes all three profile vectors from the current
// text. Empty text clears the vector. An embedding failure is returned before
// anything is written; on a store failure, fields written before it stay written.
func (s *EmbeddingService) RecalculateProfile(ctx context.Context, userID string) (*RecalculationResult, error) {
	ctx, span := observability.StartRecomputeSpan(ctx, "profile", userID)
	defer span.End()

	res, err := s.recalculateProfile(ctx, userID)
	s.metrics.RecordRecalculation("profile", err)
	observability.RecordError(span, err)
	return res, err
}

func (s *EmbeddingService) recalculateProfile(ctx context.Context, userID string) (*RecalculationResult, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recalculate profile: %w", err)
	}

	res := &RecalculationResult{
		UserID:   userID,
		Provider: s.provider.Name(),
		Updated:  []domain.VectorField{},
		Cleared:  []domain.VectorField{},
	}
	texts := make([]string, len(domain.ProfileVectorFields))
	for i, field := range domain.ProfileVectorFields {
		texts[i] = p.SourceText(field)
	}
	vecs, err := s.EmbedAll(ctx, texts)
	if err != nil {
		return res, fmt.Errorf("recalculate profile %s: %w", userID, err)
	}

	for i, field := range domain.ProfileVectorFields {
		vec := vecs[i]
		if len(vec) == 0 {
			vec = nil
		}
		if err := s.store.UpdateProfileVector(ctx, userID, field, vec); err != nil {
			return res, fmt.Errorf("store %s vector: %w", field, err)
		}
		if vec == nil {
			res.Cleared = append(res.Cleared, field)
		} else {
			res.Updated = append(res.Updated, field)
		}
	}

	slog.Info("profile vectors recalculated", "user_id", userID, "updated", len(res.Updated), "cleared", len(res.Cleared))
	return res, nil
}

// RecalculateStartup recomputes the team vector from the current team text,
// clearing it when the text is empty.
func (s *EmbeddingService) RecalculateStartup(ctx context.Context, startupID string) error {
	ctx, span := observability.StartRecomputeSpan(ctx, "startup", startupID)
	defer span.End()

	err := s.recalculateStartup(ctx, startupID)
	s.metrics.RecordRecalculation("startup", err)
	observability.RecordError(span, err)
	return err
}

func (s *EmbeddingService) recalculateStartup(ctx context.Context, startupID string) error {
	st, err := s.store.GetStartup(ctx, startupID)
	if err != nil {
		return fmt.Errorf("recalculate startup: %w", err)
	}

	vec, err := s.Embed(ctx, st.TeamText)
	if err != nil {
		return fmt.Errorf("recalculate team vector: %w", err)
	}
	if len(vec) == 0 {
		vec = nil
	}
	if err := s.store.UpdateStartupTeamVector(ctx, startupID, vec); err != nil {
		return fmt.Errorf("store team vector: %w", err)
	}
	return nil
}

// RecalculateOwnedStartup is RecalculateStartup restricted to the startup's owner.
func (s *EmbeddingService) RecalculateOwnedStartup(ctx context.Context, actorID, startupID string) error {
	st, err := s.store.GetStartup(ctx, startupID)
	if err != nil {
		return fmt.Errorf("recalculate startup: %w", err)
	}
	if st.OwnerID != actorID {
		return fmt.Errorf("recalculate startup %s: %w", startupID, port.ErrForbidden)
	}
	return s.RecalculateStartup(ctx, startupID)
}

// BatchOptions selects what RecalculateAll re-embeds.
type BatchOptions struct {
	Profiles bool
	Startups bool
}

// BatchReport summarizes a RecalculateAll run.
type BatchReport struct {
	Total    int `json:"total"`
	Profiles int `json:"profiles"`
	Startups int `json:"startups"`
	Failed   int `json:"failed"`
}

// ProgressFunc is called after each entity with the running count. Calls
// are serialized.
type ProgressFunc func(done, total int)

// RecalculateAll re-embeds every selected profile and startup with bounded
// concurrency. Per-entity failures are counted, not returned. Cancelling ctx
// stops scheduling new work and returns ctx.Err(); vectors already written
// stay written.
func (s *EmbeddingService) RecalculateAll(ctx context.Context, opts BatchOptions, progress ProgressFunc) (BatchReport, error) {
	var (
		report   BatchReport
		profiles []domain.Profile
		startups []domain.Startup
		err      error
	)

	if opts.Profiles {
		if profiles, err = s.store.ListProfiles(ctx); err != nil {
			return report, fmt.Errorf("list profiles: %w", err)
		}
	}
	if opts.Startups {
		if startups, err = s.store.ListStartups(ctx); err != nil {
			return report, fmt.Errorf("list startups: %w", err)
		}
	}
	report.Total = len(profiles) + len(startups)

	var (
		done, failed, okProfiles, okStartups atomic.Int64
		progressMu                           sync.Mutex
	)
	finish := func(err error, ok *atomic.Int64) {
		if err != nil {
			failed.Add(1)
		} else {
			ok.Add(1)
		}
		n := done.Add(1)
		if progress != nil {
			progressMu.Lock()
			progress(int(n), report.Total)
			progressMu.Unlock()
		}
	}

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i := range profiles {
		if ctx.Err() != nil {
			break
		}
		id := profiles[i].UserID
		g.Go(func() error {
			_, err := s.RecalculateProfile(ctx, id)
			if err != nil {
				slog.Warn("profile re-embed failed", "user_id", id, "error", err)
			}
			finish(err, &okProfiles)
			return nil
		})
	}
	for i := range startups {
		if ctx.Err() != nil {
			break
		}
		id := startups[i].ID
		g.Go(func() error {
			err := s.RecalculateStartup(ctx, id)
			if err != nil {
				slog.Warn("startup re-embed failed", "startup_id", id, "error", err)
			}
			finish(err, &okStartups)
			return nil
		})
	}
	_ = g.Wait()

	report.Profiles = int(okProfiles.Load())
	report.Startups = int(okStartups.Load())
	report.Failed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
