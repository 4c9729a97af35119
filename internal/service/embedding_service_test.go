package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

func TestEmbeddingServiceEmbed(t *testing.T) {
	Convey("Given an embedding service", t, func() {
		emb := &fakeEmbedder{vectors: map[string][]float32{"go": {1, 2}}}
		svc := NewEmbeddingService(emb, newMemStore(), EmbeddingConfig{}, nil)
		ctx := context.Background()

		Convey("Blank text yields an empty vector without a provider call", func() {
			v, err := svc.Embed(ctx, " \t\n")
			So(err, ShouldBeNil)
			So(v, ShouldBeEmpty)
			So(emb.callCount(), ShouldEqual, 0)
		})

		Convey("Provider failures are reported as embedding unavailable", func() {
			emb.err = errors.New("connection refused")
			_, err := svc.Embed(ctx, "go")
			So(errors.Is(err, port.ErrEmbeddingUnavailable), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "connection refused")
		})

		Convey("Each call is bounded by the configured timeout", func() {
			slow := NewEmbeddingService(blockingEmbedder{}, newMemStore(), EmbeddingConfig{Timeout: 20 * time.Millisecond}, nil)
			start := time.Now()
			_, err := slow.Embed(ctx, "anything")
			So(errors.Is(err, port.ErrEmbeddingUnavailable), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(time.Since(start), ShouldBeLessThan, 2*time.Second)
		})
	})
}

func TestEnsureTeamVector(t *testing.T) {
	Convey("Given a startup with team text and no vector", t, func() {
		store := newMemStore()
		store.addStartup(domain.Startup{ID: "s1", OwnerID: "owner", TeamText: "backend engineer"})
		emb := &fakeEmbedder{vectors: map[string][]float32{"backend engineer": {1, 0}}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{}, nil)
		ctx := context.Background()
		st, _ := store.GetStartup(ctx, "s1")

		Convey("The vector is computed, set and persisted", func() {
			svc.EnsureTeamVector(ctx, st)
			So(st.TeamVector, ShouldResemble, []float32{1, 0})
			stored, _ := store.GetStartup(ctx, "s1")
			So(stored.TeamVector, ShouldResemble, []float32{1, 0})

			Convey("and not recomputed once present", func() {
				svc.EnsureTeamVector(ctx, st)
				So(emb.callCount(), ShouldEqual, 1)
			})
		})

		Convey("An embedding outage leaves the vector absent without failing", func() {
			emb.err = errors.New("503")
			svc.EnsureTeamVector(ctx, st)
			So(st.TeamVector, ShouldBeNil)
			So(store.teamWrites, ShouldEqual, 0)
		})

		Convey("A persistence failure keeps the in-memory vector", func() {
			store.failWrites = true
			svc.EnsureTeamVector(ctx, st)
			So(st.TeamVector, ShouldResemble, []float32{1, 0})
		})

		Convey("Empty team text is never embedded", func() {
			blank := &domain.Startup{ID: "s1", TeamText: "  "}
			svc.EnsureTeamVector(ctx, blank)
			So(blank.TeamVector, ShouldBeNil)
			So(emb.callCount(), ShouldEqual, 0)
		})
	})
}

func TestCategoryVector(t *testing.T) {
	Convey("Given categories with and without description", t, func() {
		store := newMemStore()
		store.addCategory(domain.Category{ID: "c1", Name: "Fintech", Description: "payments"})
		store.addCategory(domain.Category{ID: "c2", Name: "Edtech"})
		emb := &fakeEmbedder{vectors: map[string][]float32{
			"Fintech payments": {0, 1},
			"Edtech":           {1, 1},
		}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{}, nil)
		ctx := context.Background()

		So(svc.CategoryVector(ctx, "c1"), ShouldResemble, []float32{0, 1})
		So(svc.CategoryVector(ctx, "c2"), ShouldResemble, []float32{1, 1})
		So(svc.CategoryVector(ctx, ""), ShouldBeNil)
		So(svc.CategoryVector(ctx, "missing"), ShouldBeNil)

		emb.err = errors.New("down")
		So(svc.CategoryVector(ctx, "c1"), ShouldBeNil)
	})
}

func TestRecalculateProfile(t *testing.T) {
	Convey("Given a profile with skills and roles but no category interests", t, func() {
		store := newMemStore()
		store.addProfile(domain.Profile{
			UserID:         "u1",
			SkillsText:     "go",
			RolesText:      "cto",
			CategoryVector: []float32{9, 9},
		})
		emb := &fakeEmbedder{vectors: map[string][]float32{"go": {1, 0}, "cto": {0, 1}}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{}, nil)
		ctx := context.Background()

		Convey("Vectors follow the current text and stale ones are cleared", func() {
			res, err := svc.RecalculateProfile(ctx, "u1")
			So(err, ShouldBeNil)
			So(res.Updated, ShouldResemble, []domain.VectorField{domain.VectorFieldSkills, domain.VectorFieldRoles})
			So(res.Cleared, ShouldResemble, []domain.VectorField{domain.VectorFieldCategories})

			p, _ := store.GetProfile(ctx, "u1")
			So(p.SkillsVector, ShouldResemble, []float32{1, 0})
			So(p.RolesVector, ShouldResemble, []float32{0, 1})
			So(p.CategoryVector, ShouldBeNil)
		})

		Convey("An outage is returned to the caller", func() {
			emb.err = errors.New("down")
			_, err := svc.RecalculateProfile(ctx, "u1")
			So(errors.Is(err, port.ErrEmbeddingUnavailable), ShouldBeTrue)
		})

		Convey("An unknown user is not found", func() {
			_, err := svc.RecalculateProfile(ctx, "ghost")
			So(errors.Is(err, port.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestRecalculateStartup(t *testing.T) {
	Convey("Given a startup with a stale team vector", t, func() {
		store := newMemStore()
		store.addStartup(domain.Startup{ID: "s1", OwnerID: "owner", TeamText: "designer", TeamVector: []float32{5, 5}})
		emb := &fakeEmbedder{vectors: map[string][]float32{"designer": {0, 1}}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{}, nil)
		ctx := context.Background()

		Convey("A forced recalculation overwrites it", func() {
			So(svc.RecalculateStartup(ctx, "s1"), ShouldBeNil)
			st, _ := store.GetStartup(ctx, "s1")
			So(st.TeamVector, ShouldResemble, []float32{0, 1})
		})

		Convey("Only the owner may request it", func() {
			err := svc.RecalculateOwnedStartup(ctx, "someone", "s1")
			So(errors.Is(err, port.ErrForbidden), ShouldBeTrue)
			So(svc.RecalculateOwnedStartup(ctx, "owner", "s1"), ShouldBeNil)
		})
	})
}

func TestRecalculateAll(t *testing.T) {
	Convey("Given several profiles and startups", t, func() {
		store := newMemStore()
		store.addProfile(domain.Profile{UserID: "u1", SkillsText: "go"})
		store.addProfile(domain.Profile{UserID: "u2", SkillsText: "unknown text"})
		store.addProfile(domain.Profile{UserID: "u3"})
		store.addStartup(domain.Startup{ID: "s1", TeamText: "go"})
		emb := &fakeEmbedder{vectors: map[string][]float32{"go": {1, 0}}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{Workers: 3}, nil)

		Convey("Failures are counted and progress reaches the total", func() {
			var (
				mu     sync.Mutex
				calls  []int
				totals = map[int]bool{}
			)
			report, err := svc.RecalculateAll(context.Background(), BatchOptions{Profiles: true, Startups: true}, func(done, total int) {
				mu.Lock()
				defer mu.Unlock()
				totals[total] = true
				calls = append(calls, done)
			})
			So(err, ShouldBeNil)
			So(report.Total, ShouldEqual, 4)
			So(report.Profiles, ShouldEqual, 2)
			So(report.Startups, ShouldEqual, 1)
			So(report.Failed, ShouldEqual, 1)
			So(calls, ShouldHaveLength, 4)
			So(totals, ShouldResemble, map[int]bool{4: true})

			st, _ := store.GetStartup(context.Background(), "s1")
			So(st.TeamVector, ShouldResemble, []float32{1, 0})
		})

		Convey("Only the selected kinds are processed", func() {
			report, err := svc.RecalculateAll(context.Background(), BatchOptions{Startups: true}, nil)
			So(err, ShouldBeNil)
			So(report.Total, ShouldEqual, 1)
			So(report.Profiles, ShouldEqual, 0)
		})

		Convey("A cancelled context stops the batch", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := svc.RecalculateAll(ctx, BatchOptions{Profiles: true, Startups: true}, nil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

// batchEmbedder answers EmbedBatch from the wrapped fake and counts batches.
type batchEmbedder struct {
	*fakeEmbedder
	batches int
	short   bool
}

func (b *batchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	b.batches++
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if text == "" {
			out = append(out, []float32{})
			continue
		}
		vec, err := b.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	if b.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestRecalculateProfileBatch(t *testing.T) {
	Convey("Given a provider that embeds in batches", t, func() {
		store := newMemStore()
		store.addProfile(domain.Profile{UserID: "u1", SkillsText: "go", RolesText: "cto", CategoryVector: []float32{9, 9}})
		emb := &batchEmbedder{fakeEmbedder: &fakeEmbedder{vectors: map[string][]float32{"go": {1, 0}, "cto": {0, 1}}}}
		svc := NewEmbeddingService(emb, store, EmbeddingConfig{}, nil)
		ctx := context.Background()

		Convey("All profile texts go out in one request", func() {
			res, err := svc.RecalculateProfile(ctx, "u1")
			So(err, ShouldBeNil)
			So(emb.batches, ShouldEqual, 1)
			So(res.Updated, ShouldResemble, []domain.VectorField{domain.VectorFieldSkills, domain.VectorFieldRoles})
			So(res.Cleared, ShouldResemble, []domain.VectorField{domain.VectorFieldCategories})

			p, _ := store.GetProfile(ctx, "u1")
			So(p.SkillsVector, ShouldResemble, []float32{1, 0})
			So(p.RolesVector, ShouldResemble, []float32{0, 1})
			So(p.CategoryVector, ShouldBeNil)
		})

		Convey("A failed batch writes nothing", func() {
			emb.err = errors.New("down")
			_, err := svc.RecalculateProfile(ctx, "u1")
			So(errors.Is(err, port.ErrEmbeddingUnavailable), ShouldBeTrue)

			p, _ := store.GetProfile(ctx, "u1")
			So(p.SkillsVector, ShouldBeNil)
			So(p.CategoryVector, ShouldResemble, []float32{9, 9})
		})

		Convey("A short answer is treated as unavailable", func() {
			emb.short = true
			_, err := svc.EmbedAll(ctx, []string{"go", "cto"})
			So(errors.Is(err, port.ErrEmbeddingUnavailable), ShouldBeTrue)
		})
	})

	Convey("Providers without batching are called per text", t, func() {
		emb := &fakeEmbedder{vectors: map[string][]float32{"go": {1, 0}}}
		svc := NewEmbeddingService(emb, newMemStore(), EmbeddingConfig{}, nil)

		vecs, err := svc.EmbedAll(context.Background(), []string{"go", " "})
		So(err, ShouldBeNil)
		So(vecs, ShouldResemble, [][]float32{{1, 0}, {}})
		So(emb.callCount(), ShouldEqual, 1)
	})
}
