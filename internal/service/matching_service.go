package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/metrics"
	"github.com/arturoeanton/vietstart-api/internal/observability"
	"github.com/arturoeanton/vietstart-api/internal/port"
	"github.com/arturoeanton/vietstart-api/internal/vecmath"
)

// MatchingConfig tunes the MatchingService.
type MatchingConfig struct {
	Weights      domain.Weights
	Workers      int
	BlendedLimit int // default for Rank
	GroupedLimit int // default for RankGrouped
	MaxLimit     int // hard cap on any requested limit
}

// DefaultMatchingConfig returns the production weights and limits.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		Weights:      domain.DefaultWeights,
		Workers:      8,
		BlendedLimit: 20,
		GroupedLimit: 50,
		MaxLimit:     100,
	}
}

// MatchingService ranks candidate profiles against a startup by comparing
// the startup's team and category vectors with each candidate's skills,
// roles and category-interest vectors.
type MatchingService struct {
	store      port.ProfileStore
	embeddings *EmbeddingService
	metrics    *metrics.Manager
	cfg        MatchingConfig
}

// NewMatchingService creates a new matching service. Unset fields of cfg,
// including weights that sum to zero, take the defaults. m may be nil.
func NewMatchingService(store port.ProfileStore, embeddings *EmbeddingService, cfg MatchingConfig, m *metrics.Manager) *MatchingService {
	def := DefaultMatchingConfig()
	if cfg.Weights.Sum() <= 0 {
		cfg.Weights = def.Weights
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BlendedLimit <= 0 {
		cfg.BlendedLimit = def.BlendedLimit
	}
	if cfg.GroupedLimit <= 0 {
		cfg.GroupedLimit = def.GroupedLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	return &MatchingService{store: store, embeddings: embeddings, metrics: m, cfg: cfg}
}

// scored is one candidate's scoring pass. sims hold raw cosine values for
// the signals that were compared.
type scored struct {
	result      domain.MatchResult
	total       float64
	comparisons int
	sims        map[domain.Signal]float64
}

// eligible reports whether the candidate belongs in the blended ranking.
func (c *scored) eligible() bool {
	return c.comparisons > 0 && c.total > 0
}

// Rank returns the top candidates for a startup by blended score, best
// first. limit <= 0 selects the default.
func (s *MatchingService) Rank(ctx context.Context, startupID string, limit int) ([]domain.MatchResult, error) {
	limit = s.clampLimit(limit, s.cfg.BlendedLimit)

	ctx, span := observability.StartRankingSpan(ctx, "blended", startupID, limit)
	defer span.End()
	start := time.Now()

	candidates, err := s.scoreCandidates(ctx, startupID)
	if err != nil {
		s.metrics.RecordRanking("blended", 0, time.Since(start), err)
		observability.RecordError(span, err)
		return nil, err
	}

	out := blended(candidates, limit)
	s.metrics.RecordRanking("blended", len(candidates), time.Since(start), nil)
	observability.RecordRankingResult(span, len(candidates), len(out))
	return out, nil
}

// RankGrouped returns four independent rankings for a startup: by each
// signal alone, and overall. Overall is ordered and filtered exactly like
// Rank. limit <= 0 selects the default.
func (s *MatchingService) RankGrouped(ctx context.Context, startupID string, limit int) (*domain.GroupedRankings, error) {
	limit = s.clampLimit(limit, s.cfg.GroupedLimit)

	ctx, span := observability.StartRankingSpan(ctx, "grouped", startupID, limit)
	defer span.End()
	start := time.Now()

	candidates, err := s.scoreCandidates(ctx, startupID)
	if err != nil {
		s.metrics.RecordRanking("grouped", 0, time.Since(start), err)
		observability.RecordError(span, err)
		return nil, err
	}

	g := &domain.GroupedRankings{
		BySkills:   bySignal(candidates, domain.SignalSkills, limit),
		ByRoles:    bySignal(candidates, domain.SignalRoles, limit),
		ByCategory: bySignal(candidates, domain.SignalCategory, limit),
		// Overall also requires a positive total, not only one positive
		// signal, so that it stays the same list Rank returns.
		Overall: blended(candidates, limit),
	}
	s.metrics.RecordRanking("grouped", len(candidates), time.Since(start), nil)
	observability.RecordRankingResult(span, len(candidates), len(g.Overall))
	return g, nil
}

func (s *MatchingService) clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit
}

// scoreCandidates runs one scoring pass for every candidate of the startup.
// Embedding outages only remove signals; store failures and cancellation
// are returned.
func (s *MatchingService) scoreCandidates(ctx context.Context, startupID string) ([]scored, error) {
	st, err := s.store.GetStartup(ctx, startupID)
	if err != nil {
		return nil, fmt.Errorf("load startup: %w", err)
	}

	s.embeddings.EnsureTeamVector(ctx, st)

	profiles, err := s.store.ListCandidateProfiles(ctx, st.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	categoryVec := s.embeddings.CategoryVector(ctx, st.CategoryID)

	results := make([]scored, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range profiles {
		if gctx.Err() != nil {
			break
		}
		if !profiles[i].HasAnyVector() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.score(st, categoryVec, &profiles[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The store already excludes the owner and vectorless profiles; rows
	// that slip through are dropped here.
	out := results[:0]
	for _, r := range results {
		if r.result.CandidateID != "" && r.result.CandidateID != st.OwnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

type comparison struct {
	signal    domain.Signal
	startup   []float32
	candidate []float32
}

// score compares one candidate against the startup.
//
// Each successful comparison adds sim*weight to the total. Missing signals
// contribute nothing and the weights are NOT renormalized, so a candidate
// with only a perfect skills match scores 40, not 100.
func (s *MatchingService) score(st *domain.Startup, categoryVec []float32, p *domain.Profile) scored {
	c := scored{
		result: domain.MatchResult{
			CandidateID: p.UserID,
			Candidate: domain.CandidateSummary{
				FullName: p.FullName,
				Email:    p.Email,
				Avatar:   p.Avatar,
				Bio:      p.Bio,
				Location: p.Location,
				Skills:   p.SkillsText,
				Roles:    p.RolesText,
			},
			Details: map[domain.Signal]float64{},
		},
		sims: map[domain.Signal]float64{},
	}

	for _, cmp := range []comparison{
		{domain.SignalSkills, st.TeamVector, p.SkillsVector},
		{domain.SignalRoles, st.TeamVector, p.RolesVector},
		{domain.SignalCategory, categoryVec, p.CategoryVector},
	} {
		if len(cmp.startup) == 0 || len(cmp.candidate) == 0 {
			continue
		}
		sim, err := vecmath.CosineSimilarity(cmp.startup, cmp.candidate)
		if err != nil {
			if errors.Is(err, vecmath.ErrIncompatibleDimensions) {
				s.metrics.RecordDimensionMismatch()
			}
			slog.Error("vector comparison skipped",
				"signal", cmp.signal, "startup_id", st.ID, "user_id", p.UserID,
				"startup_dims", len(cmp.startup), "candidate_dims", len(cmp.candidate), "error", err)
			continue
		}

		c.comparisons++
		c.total += sim * s.cfg.Weights.For(cmp.signal)
		c.sims[cmp.signal] = sim

		pct := vecmath.Percent(sim)
		c.result.Details[cmp.signal] = pct
		switch cmp.signal {
		case domain.SignalSkills:
			c.result.SkillScore = pct
		case domain.SignalRoles:
			c.result.RoleScore = pct
		case domain.SignalCategory:
			c.result.CategoryScore = pct
		}
	}

	c.result.Score = vecmath.Percent(c.total)
	return c
}

// blended keeps eligible candidates ordered by total score. Ties keep
// candidate order.
func blended(candidates []scored, limit int) []domain.MatchResult {
	keep := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.eligible() {
			keep = append(keep, c)
		}
	}
	sort.SliceStable(keep, func(i, j int) bool { return keep[i].total > keep[j].total })
	return topResults(keep, limit)
}

// bySignal keeps candidates whose similarity on signal is positive,
// ordered by that similarity.
func bySignal(candidates []scored, signal domain.Signal, limit int) []domain.MatchResult {
	keep := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.sims[signal] > 0 {
			keep = append(keep, c)
		}
	}
	sort.SliceStable(keep, func(i, j int) bool { return keep[i].sims[signal] > keep[j].sims[signal] })
	return topResults(keep, limit)
}

func topResults(list []scored, limit int) []domain.MatchResult {
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]domain.MatchResult, len(list))
	for i := range list {
		out[i] = list[i].result
	}
	return out
}
