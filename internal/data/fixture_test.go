package data

import (
	"context"
	"errors"
	"testing"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"
)

func TestFixtureSourceBusinessInfo(t *testing.T) {
	src, err := NewReviewSource(&conf.Source{Mode: "fixture"}, nil, nil, testLogger)
	if err != nil {
		t.Fatalf("NewReviewSource: %v", err)
	}
	info, err := src.BusinessInfo(context.Background(), &biz.BusinessLookup{GooglePlaceID: "ChIJ-demo"})
	if err != nil {
		t.Fatalf("BusinessInfo: %v", err)
	}
	if info.Place.Name != "Casa Lola Tapas" || *info.Place.GooglePlaceID != "ChIJ-demo" {
		t.Fatalf("unexpected place: %+v", info.Place)
	}
	if *info.Place.GoogleCID != "1234567890123456789" {
		t.Fatalf("cid lost precision: %s", *info.Place.GoogleCID)
	}
	if info.GoogleRating == nil || info.GoogleRating.Votes != 812 || info.GoogleRating.Distribution[5] != 508 {
		t.Fatalf("unexpected rating: %+v", info.GoogleRating)
	}
}

func TestFixtureSourceReviews(t *testing.T) {
	src, _ := NewReviewSource(&conf.Source{Mode: "fixture"}, nil, nil, testLogger)
	ctx := context.Background()

	ta, err := src.Reviews(ctx, &biz.ReviewQuery{Provider: biz.ProviderTripadvisor, Identifier: "/x", Depth: 10})
	if err != nil {
		t.Fatalf("tripadvisor: %v", err)
	}
	if len(ta.Items) != 2 || ta.Rating == nil || ta.Rating.Votes != 133 {
		t.Fatalf("unexpected tripadvisor listing: %d items, rating %+v", len(ta.Items), ta.Rating)
	}

	if _, err := src.Reviews(ctx, &biz.ReviewQuery{Provider: biz.ProviderCampaign}); !errors.Is(err, biz.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestUnknownSourceMode(t *testing.T) {
	if _, err := NewReviewSource(&conf.Source{Mode: "replay"}, nil, nil, testLogger); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestFixtureAnnotator(t *testing.T) {
	a := newFixtureAnnotator(testLogger)
	out, err := a.Annotate(context.Background(), []biz.AnnotationInput{
		{ReviewID: "pos", Text: "Great food and friendly staff"},
		{ReviewID: "neg", Text: "Rude staff, dirty tables"},
		{ReviewID: "neu", Text: "We had lunch"},
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if out["pos"].Sentiment != biz.SentimentPositive {
		t.Fatalf("pos: %+v", out["pos"])
	}
	neg := out["neg"]
	if neg.Sentiment != biz.SentimentNegative || !neg.GapToFive || len(neg.Aspects) != 2 || neg.GapToFiveScore != 0.4 {
		t.Fatalf("neg: %+v", neg)
	}
	if out["neu"].Sentiment != biz.SentimentNeutral || out["neu"].GapReasons == nil {
		t.Fatalf("neu: %+v", out["neu"])
	}
}
