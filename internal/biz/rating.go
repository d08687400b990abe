package biz

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-kratos/kratos/v2/log"
)

// CombineRatings derives the cross-provider view from per-provider snapshots.
// A single provider is returned verbatim; several are vote-weighted. Zero
// total votes yields a value of 0. No snapshots yields nil.
func CombineRatings(snaps map[Provider]*RatingSnapshot) *CombinedRating {
	providers := make([]Provider, 0, len(snaps))
	for p, s := range snaps {
		if s != nil {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		return nil
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })

	combined := &CombinedRating{
		Distribution: make(map[int]int64, 5),
		Sources:      providers,
	}
	var weighted float64
	for _, p := range providers {
		s := snaps[p]
		combined.Votes += s.Votes
		weighted += s.Value * float64(s.Votes)
		for star, n := range s.Distribution {
			combined.Distribution[star] += n
		}
	}

	switch {
	case len(providers) == 1:
		combined.Value = snaps[providers[0]].Value
	case combined.Votes > 0:
		combined.Value = weighted / float64(combined.Votes)
	default:
		combined.Value = 0
	}
	return combined
}

// PlaceRating is the read model for one place.
type PlaceRating struct {
	PlaceID   string
	Combined  *CombinedRating
	Providers map[Provider]*RatingSnapshot
}

// RatingUseCase handles rating-related business logic
type RatingUseCase struct {
	placeRepo  PlaceRepo
	ratingRepo RatingRepo
	log        *log.Helper
}

// NewRatingUseCase creates a new RatingUseCase instance
func NewRatingUseCase(placeRepo PlaceRepo, ratingRepo RatingRepo, logger log.Logger) *RatingUseCase {
	return &RatingUseCase{
		placeRepo:  placeRepo,
		ratingRepo: ratingRepo,
		log:        log.NewHelper(logger),
	}
}

// GetPlaceRating returns the per-provider snapshots and the combined view.
// The combined view is served from cache when present.
func (uc *RatingUseCase) GetPlaceRating(ctx context.Context, placeID string) (*PlaceRating, error) {
	place, err := uc.placeRepo.FindByID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	out := &PlaceRating{PlaceID: place.ID, Providers: place.Snapshots()}
	if cached, ok := uc.ratingRepo.GetCombined(ctx, place.ID); ok {
		out.Combined = cached
		return out, nil
	}

	out.Combined = CombineRatings(out.Providers)
	if out.Combined != nil {
		uc.ratingRepo.StoreCombined(ctx, place.ID, out.Combined)
	}
	return out, nil
}

// Recombine re-reads the place after its snapshot writes and refreshes the
// derived view. It must run after every provider write it depends on.
func (uc *RatingUseCase) Recombine(ctx context.Context, placeID string) (*CombinedRating, error) {
	uc.ratingRepo.InvalidateCombined(ctx, placeID)

	place, err := uc.placeRepo.FindByID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload place: %w", err)
	}
	combined := CombineRatings(place.Snapshots())
	if combined != nil {
		uc.ratingRepo.StoreCombined(ctx, placeID, combined)
		uc.log.Infof("combined rating for %s: %.3f over %d votes from %v", placeID, combined.Value, combined.Votes, combined.Sources)
	}
	return combined, nil
}
