package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// Outcome statuses for one provider branch of an ingestion run.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusSkipped = "skipped"
)

// IngestOptions holds the defaults applied to ingestion requests.
type IngestOptions struct {
	DefaultDepth     int
	DefaultSinceDays int
}

// IngestRequest asks for a review refresh of one place.
type IngestRequest struct {
	Identifiers PlaceIdentifiers
	// Providers defaults to google and tripadvisor.
	Providers []Provider
	Depth     int
	// SinceDays of 0 means the default; a negative value disables the cutoff.
	SinceDays int
}

// ProviderOutcome is the per-provider part of an ingestion result.
type ProviderOutcome struct {
	Status   string
	Fetched  int
	Upserted int
	Skipped  int
	Error    string
}

// IngestResult reports every provider individually.
type IngestResult struct {
	PlaceID   string
	Providers map[Provider]*ProviderOutcome
	Combined  *CombinedRating
}

// IngestUseCase fetches provider reviews and merges them into storage.
type IngestUseCase struct {
	places    *PlaceUseCase
	placeRepo PlaceRepo
	reviews   ReviewRepo
	source    ReviewSource
	rating    *RatingUseCase
	events    EventPublisher
	locale    Locale
	opts      IngestOptions
	now       func() time.Time
	log       *log.Helper
}

// NewIngestUseCase creates a new IngestUseCase instance
func NewIngestUseCase(places *PlaceUseCase, placeRepo PlaceRepo, reviews ReviewRepo, source ReviewSource,
	rating *RatingUseCase, events EventPublisher, locale Locale, opts IngestOptions, logger log.Logger) *IngestUseCase {
	if opts.DefaultDepth <= 0 {
		opts.DefaultDepth = 20
	}
	if opts.DefaultSinceDays == 0 {
		opts.DefaultSinceDays = 60
	}
	return &IngestUseCase{
		places:    places,
		placeRepo: placeRepo,
		reviews:   reviews,
		source:    source,
		rating:    rating,
		events:    events,
		locale:    locale,
		opts:      opts,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}
}

// Ingest resolves the place, then runs one branch per provider. Branch
// failures are recorded in the result and never abort the other branch.
// The combined rating is recomputed after every branch has finished.
func (uc *IngestUseCase) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	providers, err := normalizeProviders(req.Providers)
	if err != nil {
		return nil, err
	}
	if req.Depth < 0 {
		return nil, invalidArgument("depth must not be negative")
	}

	place, err := uc.places.Resolve(ctx, req.Identifiers)
	if err != nil {
		return nil, err
	}

	depth := req.Depth
	if depth == 0 {
		depth = uc.opts.DefaultDepth
	}
	sinceDays := req.SinceDays
	if sinceDays == 0 {
		sinceDays = uc.opts.DefaultSinceDays
	}

	// Provider identifiers supplied with the request are attached on first use.
	if cid := strings.TrimSpace(req.Identifiers.GoogleCID); cid != "" && place.GoogleCID == nil {
		if err := uc.placeRepo.SetGoogleCID(ctx, place.ID, cid); err != nil {
			uc.log.Warnf("failed to attach google cid to %s: %v", place.ID, err)
		}
		place.GoogleCID = &cid
	}
	if taPath := strings.TrimSpace(req.Identifiers.TripadvisorURLPath); taPath != "" && place.TripadvisorURLPath == nil {
		if err := uc.placeRepo.SetTripadvisorPath(ctx, place.ID, taPath); err != nil {
			uc.log.Warnf("failed to attach tripadvisor path to %s: %v", place.ID, err)
		}
		place.TripadvisorURLPath = &taPath
	}

	result := &IngestResult{
		PlaceID:   place.ID,
		Providers: make(map[Provider]*ProviderOutcome, len(providers)),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			outcome := uc.ingestProvider(ctx, place, p, depth, sinceDays)
			mu.Lock()
			result.Providers[p] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	combined, err := uc.rating.Recombine(ctx, place.ID)
	if err != nil {
		uc.log.Warnf("failed to recombine rating for %s: %v", place.ID, err)
	}
	result.Combined = combined
	return result, nil
}

func (uc *IngestUseCase) ingestProvider(ctx context.Context, place *Place, provider Provider, depth, sinceDays int) *ProviderOutcome {
	identifier := ""
	switch provider {
	case ProviderGoogle:
		if place.GoogleCID != nil {
			identifier = *place.GoogleCID
		}
	case ProviderTripadvisor:
		if place.TripadvisorURLPath != nil {
			identifier = *place.TripadvisorURLPath
		}
	}
	if identifier == "" {
		uc.log.Infof("skip %s ingestion for %s: no identifier", provider, place.ID)
		return &ProviderOutcome{Status: StatusSkipped, Error: fmt.Sprintf("place has no %s identifier", provider)}
	}

	listing, err := uc.source.Reviews(ctx, &ReviewQuery{
		Provider:   provider,
		Identifier: identifier,
		Locale:     uc.locale,
		Depth:      depth,
	})
	if err != nil {
		return uc.failed(place.ID, provider, err)
	}

	if sinceDays < 0 {
		sinceDays = 0
	}
	rows, skipped := NormalizeReviews(listing.Items, NormalizeOptions{
		PlaceID:   place.ID,
		Provider:  provider,
		SinceDays: sinceDays,
		Now:       uc.now(),
	})
	outcome := &ProviderOutcome{Status: StatusOK, Fetched: len(listing.Items), Skipped: skipped}

	if len(rows) > 0 {
		n, err := uc.reviews.UpsertReviews(ctx, rows)
		if err != nil {
			return uc.failed(place.ID, provider, err)
		}
		outcome.Upserted = n
	}

	if listing.Rating != nil {
		if err := uc.placeRepo.UpdateRatingSnapshot(ctx, place.ID, provider, listing.Rating); err != nil {
			outcome.Status = StatusError
			outcome.Error = fmt.Sprintf("store %s rating: %v", provider, err)
			uc.log.Errorf("failed to store %s rating for %s: %v", provider, place.ID, err)
		}
	}

	uc.log.Infof("ingested %s for %s: fetched=%d upserted=%d skipped=%d",
		provider, place.ID, outcome.Fetched, outcome.Upserted, outcome.Skipped)

	if outcome.Upserted > 0 && uc.events != nil {
		evt := &ReviewsIngested{PlaceID: place.ID, Provider: provider, Count: outcome.Upserted, At: uc.now().UTC()}
		if err := uc.events.PublishReviewsIngested(ctx, evt); err != nil {
			uc.log.Warnf("failed to publish ingestion event for %s/%s: %v", place.ID, provider, err)
		}
	}
	return outcome
}

func (uc *IngestUseCase) failed(placeID string, provider Provider, err error) *ProviderOutcome {
	status := StatusError
	if errors.Is(err, ErrProviderTimeout) {
		status = StatusTimeout
	}
	uc.log.Errorf("%s ingestion for %s failed (%s): %v", provider, placeID, status, err)
	return &ProviderOutcome{Status: status, Error: err.Error()}
}

func normalizeProviders(in []Provider) ([]Provider, error) {
	if len(in) == 0 {
		return []Provider{ProviderGoogle, ProviderTripadvisor}, nil
	}
	seen := make(map[Provider]bool, len(in))
	out := make([]Provider, 0, len(in))
	for _, p := range in {
		p = Provider(strings.ToLower(strings.TrimSpace(string(p))))
		if p != ProviderGoogle && p != ProviderTripadvisor {
			return nil, invalidArgument("unsupported provider %q", p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}
