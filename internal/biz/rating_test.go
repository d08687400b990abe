package biz

import (
	"context"
	"math"
	"testing"
)

func TestCombineRatings(t *testing.T) {
	google := &RatingSnapshot{Value: 4.0, Votes: 100, Distribution: map[int]int64{5: 60, 4: 20, 1: 20}}
	ta := &RatingSnapshot{Value: 5.0, Votes: 50, Distribution: map[int]int64{5: 50}}

	got := CombineRatings(map[Provider]*RatingSnapshot{ProviderGoogle: google, ProviderTripadvisor: ta})
	if math.Abs(got.Value-13.0/3.0) > 1e-9 {
		t.Fatalf("weighted value: got %v", got.Value)
	}
	if got.Votes != 150 {
		t.Fatalf("votes: got %d", got.Votes)
	}
	if got.Distribution[5] != 110 || got.Distribution[4] != 20 || got.Distribution[1] != 20 {
		t.Fatalf("distribution: got %v", got.Distribution)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("sources: got %v", got.Sources)
	}

	only := CombineRatings(map[Provider]*RatingSnapshot{ProviderGoogle: google})
	if only.Value != 4.0 {
		t.Fatalf("single provider must be verbatim, got %v", only.Value)
	}

	// Single provider without votes still reports its value.
	noVotes := CombineRatings(map[Provider]*RatingSnapshot{ProviderGoogle: {Value: 3.5}})
	if noVotes.Value != 3.5 {
		t.Fatalf("single provider without votes: got %v", noVotes.Value)
	}

	zero := CombineRatings(map[Provider]*RatingSnapshot{ProviderGoogle: {Value: 4}, ProviderTripadvisor: {Value: 2}})
	if zero.Value != 0 || math.IsNaN(zero.Value) {
		t.Fatalf("zero votes must yield 0, got %v", zero.Value)
	}

	if CombineRatings(nil) != nil {
		t.Fatalf("no snapshots must yield nil")
	}
	if CombineRatings(map[Provider]*RatingSnapshot{ProviderGoogle: nil}) != nil {
		t.Fatalf("nil snapshot must be ignored")
	}
}

func TestGetPlaceRatingUsesCache(t *testing.T) {
	place := &Place{ID: "p1", GoogleRating: &RatingSnapshot{Value: 4.2, Votes: 10}}
	ratings := newFakeRatingRepo()
	uc := NewRatingUseCase(newFakePlaceRepo(place), ratings, testLogger)
	ctx := context.Background()

	got, err := uc.GetPlaceRating(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Combined.Value != 4.2 || ratings.stores != 1 {
		t.Fatalf("first read: %+v stores=%d", got.Combined, ratings.stores)
	}
	if _, err := uc.GetPlaceRating(ctx, "p1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if ratings.stores != 1 {
		t.Fatalf("second read should hit cache, stores=%d", ratings.stores)
	}
	if _, err := uc.GetPlaceRating(ctx, "missing"); err == nil {
		t.Fatalf("expected error for missing place")
	}
}
