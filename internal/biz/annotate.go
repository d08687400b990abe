package biz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// AnnotateOptions bounds one annotation sweep.
type AnnotateOptions struct {
	DefaultLimit int
	MaxLimit     int
	BatchSize    int
}

// AnnotateRequest selects the reviews to analyze. ReviewIDs, when given,
// re-analyzes those rows regardless of their current state.
type AnnotateRequest struct {
	PlaceID   string
	Limit     int
	ReviewIDs []string
}

// AnnotateItem reports what happened to one review.
type AnnotateItem struct {
	ReviewID string
	Status   string
	Error    string
}

// Per-item annotation statuses.
const (
	ItemAnalyzed = "analyzed"
	ItemSkipped  = "skipped"
	ItemErrored  = "errored"
)

// AnnotateResult carries counts so callers can tell "nothing to do" from
// "everything failed".
type AnnotateResult struct {
	Candidates int
	Analyzed   int
	Skipped    int
	Errored    int
	Items      []AnnotateItem
}

// AnnotateUseCase attaches NLP analysis to stored reviews.
type AnnotateUseCase struct {
	places    PlaceRepo
	reviews   ReviewRepo
	annotator Annotator
	opts      AnnotateOptions
	now       func() time.Time
	log       *log.Helper
}

// NewAnnotateUseCase creates a new AnnotateUseCase instance
func NewAnnotateUseCase(places PlaceRepo, reviews ReviewRepo, annotator Annotator, opts AnnotateOptions, logger log.Logger) *AnnotateUseCase {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 500
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	return &AnnotateUseCase{
		places:    places,
		reviews:   reviews,
		annotator: annotator,
		opts:      opts,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}
}

// Annotate analyzes up to limit candidates. A failure on one item never
// prevents the rest from being annotated.
func (uc *AnnotateUseCase) Annotate(ctx context.Context, req *AnnotateRequest) (*AnnotateResult, error) {
	if strings.TrimSpace(req.PlaceID) == "" {
		return nil, invalidArgument("place_id is required")
	}
	if _, err := uc.places.FindByID(ctx, req.PlaceID); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = uc.opts.DefaultLimit
	}
	if limit > uc.opts.MaxLimit {
		limit = uc.opts.MaxLimit
	}

	var (
		candidates []*Review
		err        error
	)
	if len(req.ReviewIDs) > 0 {
		ids := req.ReviewIDs
		if len(ids) > limit {
			ids = ids[:limit]
		}
		candidates, err = uc.reviews.ListByIDs(ctx, req.PlaceID, ids)
	} else {
		candidates, err = uc.reviews.ListUnannotated(ctx, req.PlaceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list annotation candidates: %w", err)
	}

	result := &AnnotateResult{Candidates: len(candidates)}
	var inputs []AnnotationInput
	for _, r := range candidates {
		text := reviewText(r)
		if text == "" {
			uc.record(result, r.ID, ItemSkipped, "no text")
			continue
		}
		inputs = append(inputs, AnnotationInput{ReviewID: r.ID, Provider: r.Provider, Text: text})
	}

	for _, batch := range BalanceBatches(inputs, uc.opts.BatchSize) {
		uc.runBatch(ctx, batch, result)
	}

	uc.log.Infof("annotated place %s: candidates=%d analyzed=%d skipped=%d errored=%d",
		req.PlaceID, result.Candidates, result.Analyzed, result.Skipped, result.Errored)
	return result, nil
}

func (uc *AnnotateUseCase) runBatch(ctx context.Context, batch []AnnotationInput, result *AnnotateResult) {
	failed := make(map[string]string)
	analyses, err := uc.annotator.Annotate(ctx, batch)
	if err != nil {
		uc.log.Warnf("annotation batch of %d failed, retrying per item: %v", len(batch), err)
		analyses = make(map[string]*Analysis, len(batch))
		for _, in := range batch {
			one, err := uc.annotator.Annotate(ctx, []AnnotationInput{in})
			if err != nil {
				failed[in.ReviewID] = err.Error()
				continue
			}
			analyses[in.ReviewID] = one[in.ReviewID]
		}
	}

	for _, in := range batch {
		if msg, ok := failed[in.ReviewID]; ok {
			uc.record(result, in.ReviewID, ItemErrored, msg)
			continue
		}
		a := analyses[in.ReviewID]
		if a == nil {
			uc.record(result, in.ReviewID, ItemErrored, "missing from annotator response")
			continue
		}
		NormalizeAnalysis(a)
		if err := uc.reviews.UpdateAnalysis(ctx, in.ReviewID, a, uc.now().UTC()); err != nil {
			uc.log.Errorf("failed to store analysis for review %s: %v", in.ReviewID, err)
			uc.record(result, in.ReviewID, ItemErrored, err.Error())
			continue
		}
		uc.record(result, in.ReviewID, ItemAnalyzed, "")
	}
}

func (uc *AnnotateUseCase) record(result *AnnotateResult, reviewID, status, msg string) {
	switch status {
	case ItemAnalyzed:
		result.Analyzed++
	case ItemSkipped:
		result.Skipped++
	case ItemErrored:
		result.Errored++
	}
	result.Items = append(result.Items, AnnotateItem{ReviewID: reviewID, Status: status, Error: msg})
}

// BalanceBatches splits inputs into batches of at most size, taking up to
// half of each batch from Google and the rest from TripAdvisor before
// filling with whatever remains. Order inside each provider is preserved.
func BalanceBatches(inputs []AnnotationInput, size int) [][]AnnotationInput {
	if size <= 0 {
		size = 1
	}
	queues := make(map[Provider][]AnnotationInput)
	var others []Provider
	for _, in := range inputs {
		if _, ok := queues[in.Provider]; !ok && in.Provider != ProviderGoogle && in.Provider != ProviderTripadvisor {
			others = append(others, in.Provider)
		}
		queues[in.Provider] = append(queues[in.Provider], in)
	}

	take := func(p Provider, n int) []AnnotationInput {
		q := queues[p]
		if n > len(q) {
			n = len(q)
		}
		out := q[:n]
		queues[p] = q[n:]
		return out
	}

	googleQuota := int(math.Round(float64(size) * 0.5))
	taQuota := size - googleQuota

	var batches [][]AnnotationInput
	for remaining := len(inputs); remaining > 0; {
		batch := make([]AnnotationInput, 0, size)
		batch = append(batch, take(ProviderGoogle, googleQuota)...)
		batch = append(batch, take(ProviderTripadvisor, taQuota)...)
		for _, p := range append([]Provider{ProviderGoogle, ProviderTripadvisor}, others...) {
			if len(batch) >= size {
				break
			}
			batch = append(batch, take(p, size-len(batch))...)
		}
		remaining -= len(batch)
		batches = append(batches, batch)
	}
	return batches
}

// NormalizeAnalysis clamps scores into their ranges and derives the gap score
// from the aspect contributions.
func NormalizeAnalysis(a *Analysis) {
	a.OverallScore = clamp(a.OverallScore, 0, 1)
	a.Confidence = clamp(a.Confidence, 0, 1)
	if !a.Sentiment.Valid() {
		a.Sentiment = SentimentNeutral
	}

	var gap float64
	for i := range a.Aspects {
		asp := &a.Aspects[i]
		asp.GapToFiveContrib = clamp(asp.GapToFiveContrib, 0, 1)
		if asp.Severity < 1 {
			asp.Severity = 1
		}
		if asp.Severity > 3 {
			asp.Severity = 3
		}
		if !asp.Sentiment.Valid() {
			asp.Sentiment = SentimentNeutral
		}
		gap += asp.GapToFiveContrib
	}
	a.GapToFiveScore = clamp(gap, 0, 1)

	for i := range a.StaffMentions {
		if !a.StaffMentions[i].Sentiment.Valid() {
			a.StaffMentions[i].Sentiment = SentimentNeutral
		}
	}
	if a.GapReasons == nil {
		a.GapReasons = []string{}
	}
	if a.CriticalFlags == nil {
		a.CriticalFlags = []string{}
	}
	if a.ActionItems == nil {
		a.ActionItems = []string{}
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func reviewText(r *Review) string {
	if r.Text != nil && strings.TrimSpace(*r.Text) != "" {
		return *r.Text
	}
	if r.OriginalText != nil {
		return strings.TrimSpace(*r.OriginalText)
	}
	return ""
}
