package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PlaceIdentifiers is any subset of the ways a caller can name a place.
type PlaceIdentifiers struct {
	IDHint             string
	GooglePlaceID      string
	GoogleCID          string
	TripadvisorURLPath string
}

// Empty reports whether no identifier was supplied.
func (p PlaceIdentifiers) Empty() bool {
	return strings.TrimSpace(p.IDHint) == "" &&
		strings.TrimSpace(p.GooglePlaceID) == "" &&
		strings.TrimSpace(p.GoogleCID) == "" &&
		strings.TrimSpace(p.TripadvisorURLPath) == ""
}

// PlaceUseCase resolves identifiers and onboards new places.
type PlaceUseCase struct {
	repo   PlaceRepo
	source ReviewSource
	rating *RatingUseCase
	locale Locale
	log    *log.Helper
}

// NewPlaceUseCase creates a new PlaceUseCase instance
func NewPlaceUseCase(repo PlaceRepo, source ReviewSource, rating *RatingUseCase, locale Locale, logger log.Logger) *PlaceUseCase {
	return &PlaceUseCase{
		repo:   repo,
		source: source,
		rating: rating,
		locale: locale,
		log:    log.NewHelper(logger),
	}
}

// Resolve returns the place named by ids. Provider identifiers are tried
// first in a fixed order; the internal id hint is untrusted and only used
// when it is a well-formed UUID of an existing place.
func (uc *PlaceUseCase) Resolve(ctx context.Context, ids PlaceIdentifiers) (*Place, error) {
	if ids.Empty() {
		return nil, invalidArgument("at least one place identifier is required")
	}

	lookups := []struct {
		name  string
		value string
		find  func(context.Context, string) (*Place, error)
	}{
		{"google_place_id", ids.GooglePlaceID, uc.repo.FindByGooglePlaceID},
		{"google_cid", ids.GoogleCID, uc.repo.FindByGoogleCID},
		{"tripadvisor_url_path", ids.TripadvisorURLPath, uc.repo.FindByTripadvisorPath},
	}
	for _, l := range lookups {
		v := strings.TrimSpace(l.value)
		if v == "" {
			continue
		}
		place, err := l.find(ctx, v)
		if err == nil {
			uc.log.Debugf("resolved place %s by %s", place.ID, l.name)
			return place, nil
		}
		if !errors.Is(err, ErrPlaceNotFound) {
			return nil, fmt.Errorf("failed to resolve by %s: %w", l.name, err)
		}
	}

	if hint := strings.TrimSpace(ids.IDHint); hint != "" {
		if _, err := uuid.Parse(hint); err != nil {
			uc.log.Warnf("ignoring malformed place id hint %q", hint)
		} else {
			place, err := uc.repo.FindByID(ctx, hint)
			if err == nil {
				uc.log.Debugf("resolved place %s by id hint", place.ID)
				return place, nil
			}
			if !errors.Is(err, ErrPlaceNotFound) {
				return nil, fmt.Errorf("failed to resolve by id hint: %w", err)
			}
		}
	}

	return nil, ErrResolutionMiss
}

// OnboardRequest names the business to import.
type OnboardRequest struct {
	GooglePlaceID      string
	GoogleCID          string
	TripadvisorURLPath string
	LocationName       string
	LanguageCode       string
}

// OnboardResult reports the stored place and whether it was new.
type OnboardResult struct {
	Place    *Place
	Created  bool
	Combined *CombinedRating
}

// Onboard fetches the business profile and creates or refreshes the place
// keyed by its provider identifier. It never creates a second row for an
// identifier that already exists.
func (uc *PlaceUseCase) Onboard(ctx context.Context, req *OnboardRequest) (*OnboardResult, error) {
	placeID := strings.TrimSpace(req.GooglePlaceID)
	cid := strings.TrimSpace(req.GoogleCID)
	if placeID == "" && cid == "" {
		return nil, invalidArgument("google_place_id or google_cid is required")
	}

	locale := uc.locale
	if req.LocationName != "" {
		locale.LocationName = req.LocationName
	}
	if req.LanguageCode != "" {
		locale.LanguageCode = req.LanguageCode
	}

	info, err := uc.source.BusinessInfo(ctx, &BusinessLookup{
		GooglePlaceID: placeID,
		GoogleCID:     cid,
		Locale:        locale,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch business info: %w", err)
	}

	place := info.Place
	// The caller's identifiers win when the provider omits them.
	if place.GooglePlaceID == nil && placeID != "" {
		place.GooglePlaceID = &placeID
	}
	if place.GoogleCID == nil && cid != "" {
		place.GoogleCID = &cid
	}
	if path := strings.TrimSpace(req.TripadvisorURLPath); path != "" {
		place.TripadvisorURLPath = &path
	}

	created, err := uc.repo.UpsertPlace(ctx, place)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert place: %w", err)
	}
	uc.log.Infof("onboarded place %s (%s) created=%t", place.ID, place.Name, created)

	if info.GoogleRating != nil {
		if info.GoogleRating.FetchedAt.IsZero() {
			info.GoogleRating.FetchedAt = time.Now().UTC()
		}
		if err := uc.repo.UpdateRatingSnapshot(ctx, place.ID, ProviderGoogle, info.GoogleRating); err != nil {
			return nil, fmt.Errorf("failed to store google rating: %w", err)
		}
		place.GoogleRating = info.GoogleRating
	}

	combined, err := uc.rating.Recombine(ctx, place.ID)
	if err != nil {
		uc.log.Warnf("failed to recombine rating for %s: %v", place.ID, err)
	}

	return &OnboardResult{Place: place, Created: created, Combined: combined}, nil
}
