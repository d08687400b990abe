package biz

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedReviews(repo *fakeReviewRepo, placeID string, n int, provider Provider) []*Review {
	var out []*Review
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		posted := base.Add(time.Duration(i) * time.Hour)
		r := &Review{
			ID:               fmt.Sprintf("%s-%d", provider, i),
			PlaceID:          placeID,
			Provider:         provider,
			ProviderReviewID: strp(fmt.Sprintf("%s-rid-%d", provider, i)),
			Text:             strp(fmt.Sprintf("review %d", i)),
			PostedAt:         &posted,
		}
		_ = repo.InsertReview(context.Background(), r)
		out = append(out, r)
	}
	return out
}

func newAnnotateFixture(annotator Annotator) (*AnnotateUseCase, *fakeReviewRepo) {
	places := newFakePlaceRepo(&Place{ID: "p1"})
	reviews := newFakeReviewRepo()
	uc := NewAnnotateUseCase(places, reviews, annotator, AnnotateOptions{BatchSize: 4}, testLogger)
	return uc, reviews
}

func TestAnnotateSelectsUnannotatedAndClamps(t *testing.T) {
	ann := &fakeAnnotator{}
	uc, reviews := newAnnotateFixture(ann)
	seedReviews(reviews, "p1", 3, ProviderGoogle)
	noText := &Review{ID: "empty", PlaceID: "p1", Provider: ProviderTripadvisor}
	_ = reviews.InsertReview(context.Background(), noText)

	res, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1"})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if res.Candidates != 3 || res.Analyzed != 3 || res.Skipped != 0 || res.Errored != 0 {
		t.Fatalf("counts: %+v", res)
	}

	a := reviews.rows["google-0"].Analysis
	if a == nil {
		t.Fatalf("analysis not stored")
	}
	if a.OverallScore != 1 {
		t.Fatalf("overall score must be clamped, got %v", a.OverallScore)
	}
	if a.Aspects[0].Severity != 3 || a.Aspects[1].Severity != 1 {
		t.Fatalf("severity clamp: %+v", a.Aspects)
	}
	if a.GapToFiveScore != 1 {
		t.Fatalf("gap score must be clamped sum, got %v", a.GapToFiveScore)
	}

	// A second sweep finds nothing left to do and does not error.
	again, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1"})
	if err != nil {
		t.Fatalf("second annotate: %v", err)
	}
	if again.Candidates != 0 || again.Analyzed != 0 {
		t.Fatalf("second sweep: %+v", again)
	}

	// Named explicitly, a review without text is reported as skipped.
	named, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1", ReviewIDs: []string{"empty"}})
	if err != nil {
		t.Fatalf("named annotate: %v", err)
	}
	if named.Candidates != 1 || named.Skipped != 1 || named.Analyzed != 0 {
		t.Fatalf("named sweep: %+v", named)
	}
}

func TestAnnotateSweepReachesOlderTextReviews(t *testing.T) {
	places := newFakePlaceRepo(&Place{ID: "p1"})
	reviews := newFakeReviewRepo()
	uc := NewAnnotateUseCase(places, reviews, &fakeAnnotator{}, AnnotateOptions{DefaultLimit: 3, BatchSize: 5}, testLogger)
	seedReviews(reviews, "p1", 3, ProviderGoogle)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		posted := newer.Add(time.Duration(i) * time.Hour)
		_ = reviews.InsertReview(context.Background(), &Review{ID: fmt.Sprintf("stars-%d", i), PlaceID: "p1", Provider: ProviderGoogle, PostedAt: &posted})
	}

	res, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1"})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if res.Analyzed != 3 || res.Skipped != 0 {
		t.Fatalf("rating-only reviews must not crowd out text reviews: %+v", res)
	}
}

func TestAnnotateReanalysisKeepsIdentity(t *testing.T) {
	uc, reviews := newAnnotateFixture(&fakeAnnotator{})
	seeded := seedReviews(reviews, "p1", 1, ProviderGoogle)
	key := seeded[0].IdentityKey()

	for i := 0; i < 2; i++ {
		res, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1", ReviewIDs: []string{seeded[0].ID}})
		if err != nil || res.Analyzed != 1 {
			t.Fatalf("run %d: %+v %v", i, res, err)
		}
	}
	if reviews.analyzed[seeded[0].ID] != 2 {
		t.Fatalf("expected two analyses, got %d", reviews.analyzed[seeded[0].ID])
	}
	if got := reviews.rows[seeded[0].ID].IdentityKey(); got != key {
		t.Fatalf("identity changed: %s -> %s", key, got)
	}
}

func TestAnnotateIsolatesItemFailures(t *testing.T) {
	ann := &fakeAnnotator{failBatch: true, failIDs: map[string]bool{"google-1": true}, omitIDs: map[string]bool{"google-2": true}}
	uc, reviews := newAnnotateFixture(ann)
	seedReviews(reviews, "p1", 4, ProviderGoogle)
	reviews.failOn["google-3"] = errors.New("db down")

	res, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1"})
	if err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if res.Analyzed != 1 || res.Errored != 3 {
		t.Fatalf("counts: %+v", res)
	}
	if reviews.rows["google-1"].Analysis != nil {
		t.Fatalf("failed item must keep null analysis")
	}
	if reviews.rows["google-0"].Analysis == nil {
		t.Fatalf("healthy item must still be annotated")
	}
}

func TestAnnotateLimits(t *testing.T) {
	ann := &fakeAnnotator{}
	places := newFakePlaceRepo(&Place{ID: "p1"})
	reviews := newFakeReviewRepo()
	uc := NewAnnotateUseCase(places, reviews, ann, AnnotateOptions{DefaultLimit: 2, MaxLimit: 3, BatchSize: 5}, testLogger)
	seedReviews(reviews, "p1", 6, ProviderGoogle)

	res, _ := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1"})
	if res.Candidates != 2 {
		t.Fatalf("default limit: %+v", res)
	}
	// Newest first.
	if res.Items[0].ReviewID != "google-5" {
		t.Fatalf("expected newest review first, got %s", res.Items[0].ReviewID)
	}
	res, _ = uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "p1", Limit: 100})
	if res.Candidates != 3 {
		t.Fatalf("max limit: %+v", res)
	}

	if _, err := uc.Annotate(context.Background(), &AnnotateRequest{PlaceID: "missing"}); !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("missing place: %v", err)
	}
}

func TestBalanceBatches(t *testing.T) {
	var in []AnnotationInput
	for i := 0; i < 6; i++ {
		in = append(in, AnnotationInput{ReviewID: fmt.Sprintf("g%d", i), Provider: ProviderGoogle})
	}
	in = append(in, AnnotationInput{ReviewID: "t0", Provider: ProviderTripadvisor})
	in = append(in, AnnotationInput{ReviewID: "c0", Provider: ProviderCampaign})

	batches := BalanceBatches(in, 4)
	if len(batches) != 2 {
		t.Fatalf("batches: %v", batches)
	}
	first := batches[0]
	if len(first) != 4 || first[0].ReviewID != "g0" || first[1].ReviewID != "g1" || first[2].ReviewID != "t0" {
		t.Fatalf("first batch should take both providers: %v", first)
	}
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != len(in) {
		t.Fatalf("lost items: %d of %d", total, len(in))
	}
	if BalanceBatches(nil, 5) != nil {
		t.Fatalf("no input must yield no batches")
	}
}
