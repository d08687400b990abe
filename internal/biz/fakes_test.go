package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

var testLogger = log.NewStdLogger(&discard{})

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func strp(s string) *string { return &s }

type fakePlaceRepo struct {
	mu     sync.Mutex
	places map[string]*Place
}

func newFakePlaceRepo(places ...*Place) *fakePlaceRepo {
	r := &fakePlaceRepo{places: make(map[string]*Place)}
	for _, p := range places {
		r.places[p.ID] = p
	}
	return r
}

func (r *fakePlaceRepo) find(match func(*Place) bool) (*Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.places {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrPlaceNotFound
}

func (r *fakePlaceRepo) FindByID(_ context.Context, id string) (*Place, error) {
	return r.find(func(p *Place) bool { return p.ID == id })
}

func (r *fakePlaceRepo) FindByGooglePlaceID(_ context.Context, v string) (*Place, error) {
	return r.find(func(p *Place) bool { return p.GooglePlaceID != nil && *p.GooglePlaceID == v })
}

func (r *fakePlaceRepo) FindByGoogleCID(_ context.Context, v string) (*Place, error) {
	return r.find(func(p *Place) bool { return p.GoogleCID != nil && *p.GoogleCID == v })
}

func (r *fakePlaceRepo) FindByTripadvisorPath(_ context.Context, v string) (*Place, error) {
	return r.find(func(p *Place) bool { return p.TripadvisorURLPath != nil && *p.TripadvisorURLPath == v })
}

func (r *fakePlaceRepo) UpsertPlace(_ context.Context, place *Place) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.places {
		if place.GooglePlaceID != nil && p.GooglePlaceID != nil && *p.GooglePlaceID == *place.GooglePlaceID ||
			place.GoogleCID != nil && p.GoogleCID != nil && *p.GoogleCID == *place.GoogleCID {
			place.ID = p.ID
			place.GoogleRating, place.TripadvisorRating = p.GoogleRating, p.TripadvisorRating
			cp := *place
			r.places[p.ID] = &cp
			return false, nil
		}
	}
	place.ID = uuid.NewString()
	cp := *place
	r.places[place.ID] = &cp
	return true, nil
}

func (r *fakePlaceRepo) SetTripadvisorPath(_ context.Context, id, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.places[id]
	if !ok {
		return ErrPlaceNotFound
	}
	p.TripadvisorURLPath = &path
	return nil
}

func (r *fakePlaceRepo) SetGoogleCID(_ context.Context, id, cid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.places[id]
	if !ok {
		return ErrPlaceNotFound
	}
	p.GoogleCID = &cid
	return nil
}

func (r *fakePlaceRepo) UpdateRatingSnapshot(_ context.Context, id string, provider Provider, snap *RatingSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.places[id]
	if !ok {
		return ErrPlaceNotFound
	}
	switch provider {
	case ProviderGoogle:
		p.GoogleRating = snap
	case ProviderTripadvisor:
		p.TripadvisorRating = snap
	default:
		return fmt.Errorf("no rating slot for %s", provider)
	}
	return nil
}

type fakeReviewRepo struct {
	mu       sync.Mutex
	rows     map[string]*Review
	order    []string
	failOn   map[string]error
	upserts  int
	analyzed map[string]int
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{rows: make(map[string]*Review), failOn: make(map[string]error), analyzed: make(map[string]int)}
}

func (r *fakeReviewRepo) UpsertReviews(_ context.Context, reviews []*Review) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	for _, rv := range reviews {
		key := rv.IdentityKey()
		cp := *rv
		if old, ok := r.rows[key]; ok {
			cp.ID = old.ID
			cp.Analysis, cp.AnalyzedAt = old.Analysis, old.AnalyzedAt
		} else {
			cp.ID = uuid.NewString()
			r.order = append(r.order, key)
		}
		r.rows[key] = &cp
	}
	return len(reviews), nil
}

func (r *fakeReviewRepo) InsertReview(_ context.Context, rv *Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rv
	r.rows[rv.ID] = &cp
	r.order = append(r.order, rv.ID)
	return nil
}

func (r *fakeReviewRepo) byProvider(p Provider) []*Review {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Review
	for _, k := range r.order {
		if rv := r.rows[k]; rv.Provider == p {
			out = append(out, rv)
		}
	}
	return out
}

func (r *fakeReviewRepo) ListUnannotated(_ context.Context, placeID string, limit int) ([]*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Review
	for _, k := range r.order {
		rv := r.rows[k]
		if rv.PlaceID == placeID && rv.Analysis == nil && reviewText(rv) != "" {
			out = append(out, rv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PostedAt, out[j].PostedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeReviewRepo) ListByIDs(_ context.Context, placeID string, ids []string) ([]*Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*Review
	for _, k := range r.order {
		if rv := r.rows[k]; rv.PlaceID == placeID && want[rv.ID] {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r *fakeReviewRepo) UpdateAnalysis(_ context.Context, id string, a *Analysis, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failOn[id]; err != nil {
		return err
	}
	for _, rv := range r.rows {
		if rv.ID == id {
			rv.Analysis = a
			rv.AnalyzedAt = &at
			r.analyzed[id]++
			return nil
		}
	}
	return ErrReviewNotFound
}

type fakeRatingRepo struct {
	mu     sync.Mutex
	cache  map[string]*CombinedRating
	stores int
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{cache: make(map[string]*CombinedRating)}
}

func (r *fakeRatingRepo) GetCombined(_ context.Context, id string) (*CombinedRating, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cache[id]
	return c, ok
}

func (r *fakeRatingRepo) StoreCombined(_ context.Context, id string, c *CombinedRating) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores++
	r.cache[id] = c
}

func (r *fakeRatingRepo) InvalidateCombined(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, id)
}

type fakeSource struct {
	info     *BusinessInfo
	infoErr  error
	listings map[Provider]*ReviewListing
	errs     map[Provider]error

	mu      sync.Mutex
	queries []ReviewQuery
}

func (s *fakeSource) BusinessInfo(_ context.Context, _ *BusinessLookup) (*BusinessInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	cp := *s.info
	place := *s.info.Place
	cp.Place = &place
	return &cp, nil
}

func (s *fakeSource) Reviews(_ context.Context, q *ReviewQuery) (*ReviewListing, error) {
	s.mu.Lock()
	s.queries = append(s.queries, *q)
	s.mu.Unlock()
	if err := s.errs[q.Provider]; err != nil {
		return nil, err
	}
	if l, ok := s.listings[q.Provider]; ok {
		return l, nil
	}
	return &ReviewListing{Provider: q.Provider}, nil
}

type fakeAnnotator struct {
	mu        sync.Mutex
	calls     [][]AnnotationInput
	failBatch bool
	failIDs   map[string]bool
	omitIDs   map[string]bool
}

func (a *fakeAnnotator) Annotate(_ context.Context, items []AnnotationInput) (map[string]*Analysis, error) {
	a.mu.Lock()
	a.calls = append(a.calls, items)
	a.mu.Unlock()
	if a.failBatch && len(items) > 1 {
		return nil, fmt.Errorf("batch rejected")
	}
	out := make(map[string]*Analysis, len(items))
	for _, it := range items {
		if a.failIDs[it.ReviewID] {
			return nil, fmt.Errorf("item %s rejected", it.ReviewID)
		}
		if a.omitIDs[it.ReviewID] {
			continue
		}
		out[it.ReviewID] = &Analysis{
			Language:     "es",
			Sentiment:    SentimentPositive,
			OverallScore: 1.4,
			Confidence:   0.9,
			Aspects: []Aspect{
				{Aspect: "servicio", SubAspect: "velocidad", Sentiment: SentimentNegative, Severity: 5, GapToFiveContrib: 0.7},
				{Aspect: "comida", SubAspect: "sabor", Sentiment: SentimentPositive, Severity: 0, GapToFiveContrib: 0.6},
			},
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []ReviewsIngested
}

func (p *fakePublisher) PublishReviewsIngested(_ context.Context, evt *ReviewsIngested) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return nil
}
