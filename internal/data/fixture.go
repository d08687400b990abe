package data

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

//go:embed fixtures/*.json
var embeddedFixtures embed.FS

const (
	fixtureBusinessInfo       = "business_info.json"
	fixtureGoogleReviews      = "google_reviews.json"
	fixtureTripadvisorReviews = "tripadvisor_reviews.json"
)

// fixtureSource serves recorded provider payloads for demos and local runs.
type fixtureSource struct {
	files fs.FS
	log   *log.Helper
	now   func() time.Time
}

func newFixtureSource(dir string, logger log.Logger) (*fixtureSource, error) {
	files, err := fixtureFS(dir)
	if err != nil {
		return nil, err
	}
	l := log.NewHelper(logger)
	l.Warn("review source running on fixtures, no provider calls will be made")
	return &fixtureSource{files: files, log: l, now: time.Now}, nil
}

func fixtureFS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embeddedFixtures, "fixtures")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded fixtures: %w", err)
	}
	return sub, nil
}

func (s *fixtureSource) BusinessInfo(ctx context.Context, lookup *biz.BusinessLookup) (*biz.BusinessInfo, error) {
	block, err := fs.ReadFile(s.files, fixtureBusinessInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	item, err := firstItem(block)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: fixture has no business profile", biz.ErrPlaceNotFound)
	}
	info, err := biz.ParseBusinessInfo(item, s.now().UTC(), s.log)
	if err != nil {
		return nil, err
	}
	// Echo the caller's identifiers so any id can be onboarded in demo mode.
	if lookup.GooglePlaceID != "" {
		id := lookup.GooglePlaceID
		info.Place.GooglePlaceID = &id
	}
	if lookup.GoogleCID != "" {
		cid := lookup.GoogleCID
		info.Place.GoogleCID = &cid
	}
	return info, nil
}

func (s *fixtureSource) Reviews(ctx context.Context, q *biz.ReviewQuery) (*biz.ReviewListing, error) {
	var name string
	switch q.Provider {
	case biz.ProviderGoogle:
		name = fixtureGoogleReviews
	case biz.ProviderTripadvisor:
		name = fixtureTripadvisorReviews
	default:
		return nil, fmt.Errorf("%w: no fixture for provider %q", biz.ErrInvalidArgument, q.Provider)
	}
	block, err := fs.ReadFile(s.files, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	listing, err := biz.ParseReviewListing(q.Provider, block, s.now().UTC(), s.log)
	if err != nil {
		return nil, err
	}
	if depth := RoundDepth(q.Depth); len(listing.Items) > depth {
		listing.Items = listing.Items[:depth]
	}
	return listing, nil
}

var (
	fixturePositive = []string{"great", "excellent", "delicious", "friendly", "lovely", "amazing", "genial", "excelente", "buen", "delicios"}
	fixtureNegative = []string{"slow", "dirty", "rude", "cold", "bad", "wait", "lento", "sucio", "malo", "frío"}
)

// fixtureAnnotator is a keyword scorer standing in for the NLP service.
type fixtureAnnotator struct {
	log *log.Helper
}

func newFixtureAnnotator(logger log.Logger) *fixtureAnnotator {
	return &fixtureAnnotator{log: log.NewHelper(logger)}
}

func (a *fixtureAnnotator) Annotate(ctx context.Context, items []biz.AnnotationInput) (map[string]*biz.Analysis, error) {
	out := make(map[string]*biz.Analysis, len(items))
	for _, it := range items {
		out[it.ReviewID] = scoreFixtureText(it.Text)
	}
	a.log.Debugf("fixture annotator scored %d reviews", len(items))
	return out, nil
}

func scoreFixtureText(text string) *biz.Analysis {
	lower := strings.ToLower(text)
	var pos, neg []string
	for _, w := range fixturePositive {
		if strings.Contains(lower, w) {
			pos = append(pos, w)
		}
	}
	for _, w := range fixtureNegative {
		if strings.Contains(lower, w) {
			neg = append(neg, w)
		}
	}

	a := &biz.Analysis{
		Language:   "und",
		Sentiment:  biz.SentimentNeutral,
		Confidence: 0.5,
	}
	total := len(pos) + len(neg)
	if total > 0 {
		a.OverallScore = float64(len(pos)) / float64(total)
		a.Confidence = 0.6
	} else {
		a.OverallScore = 0.5
	}
	switch {
	case len(pos) > len(neg):
		a.Sentiment = biz.SentimentPositive
	case len(neg) > len(pos):
		a.Sentiment = biz.SentimentNegative
	}
	for _, w := range neg {
		a.Aspects = append(a.Aspects, biz.Aspect{
			Aspect:           "experience",
			Sentiment:        biz.SentimentNegative,
			EvidenceSpans:    []string{w},
			Severity:         2,
			GapToFiveContrib: 0.2,
		})
		a.GapReasons = append(a.GapReasons, w)
	}
	a.GapToFive = len(neg) > 0
	a.ExecutiveSummary = fmt.Sprintf("%d positive and %d negative cues", len(pos), len(neg))
	biz.NormalizeAnalysis(a)
	return a
}
