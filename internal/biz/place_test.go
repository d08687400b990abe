package biz

import (
	"context"
	"errors"
	"testing"
)

func TestResolvePrecedence(t *testing.T) {
	byPlaceID := &Place{ID: "0190d6b8-7c1e-7a51-9f7e-3c1b7c1d0001", Name: "Cafe Norte", GooglePlaceID: strp("ChIJ-norte"), GoogleCID: strp("111")}
	other := &Place{ID: "0190d6b8-7c1e-7a51-9f7e-3c1b7c1d0002", Name: "Cafe Sur", GoogleCID: strp("222"), TripadvisorURLPath: strp("/Restaurant_Review-sur")}
	uc := NewPlaceUseCase(newFakePlaceRepo(byPlaceID, other), nil, nil, Locale{}, testLogger)
	ctx := context.Background()

	// A stale hint pointing at another existing place must not win.
	got, err := uc.Resolve(ctx, PlaceIdentifiers{IDHint: other.ID, GooglePlaceID: "ChIJ-norte"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != byPlaceID.ID {
		t.Fatalf("expected place id lookup to win, got %s", got.ID)
	}

	got, err = uc.Resolve(ctx, PlaceIdentifiers{GoogleCID: "222", TripadvisorURLPath: "/nope"})
	if err != nil || got.ID != other.ID {
		t.Fatalf("cid lookup: %v %v", got, err)
	}

	got, err = uc.Resolve(ctx, PlaceIdentifiers{GooglePlaceID: "unknown", TripadvisorURLPath: "/Restaurant_Review-sur"})
	if err != nil || got.ID != other.ID {
		t.Fatalf("tripadvisor lookup: %v %v", got, err)
	}

	got, err = uc.Resolve(ctx, PlaceIdentifiers{IDHint: byPlaceID.ID})
	if err != nil || got.ID != byPlaceID.ID {
		t.Fatalf("hint lookup: %v %v", got, err)
	}
}

func TestResolveRejectsUntrustedHint(t *testing.T) {
	uc := NewPlaceUseCase(newFakePlaceRepo(), nil, nil, Locale{}, testLogger)
	ctx := context.Background()

	if _, err := uc.Resolve(ctx, PlaceIdentifiers{IDHint: "not-a-uuid"}); !errors.Is(err, ErrResolutionMiss) {
		t.Fatalf("malformed hint: got %v", err)
	}
	if _, err := uc.Resolve(ctx, PlaceIdentifiers{IDHint: "0190d6b8-7c1e-7a51-9f7e-3c1b7c1d0009"}); !errors.Is(err, ErrResolutionMiss) {
		t.Fatalf("unknown hint: got %v", err)
	}
	if _, err := uc.Resolve(ctx, PlaceIdentifiers{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty identifiers: got %v", err)
	}
}

func TestOnboardUpsertsByProviderIdentifier(t *testing.T) {
	places := newFakePlaceRepo()
	ratings := newFakeRatingRepo()
	rating := NewRatingUseCase(places, ratings, testLogger)
	source := &fakeSource{info: &BusinessInfo{
		Place:        &Place{Name: "Parrilla Don Julio", GooglePlaceID: strp("ChIJ-julio"), GoogleCID: strp("987")},
		GoogleRating: &RatingSnapshot{Value: 4.7, Votes: 1200, Distribution: map[int]int64{5: 1000, 4: 200}},
	}}
	uc := NewPlaceUseCase(places, source, rating, Locale{LanguageCode: "es"}, testLogger)
	ctx := context.Background()

	first, err := uc.Onboard(ctx, &OnboardRequest{GooglePlaceID: "ChIJ-julio", TripadvisorURLPath: "/Restaurant_Review-julio"})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if !first.Created {
		t.Fatalf("expected first onboarding to create")
	}
	if first.Combined == nil || first.Combined.Value != 4.7 {
		t.Fatalf("combined after onboarding: %+v", first.Combined)
	}

	second, err := uc.Onboard(ctx, &OnboardRequest{GooglePlaceID: "ChIJ-julio"})
	if err != nil {
		t.Fatalf("re-onboard: %v", err)
	}
	if second.Created || second.Place.ID != first.Place.ID {
		t.Fatalf("re-onboarding must update in place: %+v", second)
	}
	if len(places.places) != 1 {
		t.Fatalf("expected one place, got %d", len(places.places))
	}

	if _, err := uc.Onboard(ctx, &OnboardRequest{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("missing identifiers: got %v", err)
	}
}
