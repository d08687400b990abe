package service

import (
	"context"
	"strconv"
	"time"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-playground/validator/v10"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewReviewSyncService)

// ReviewSyncService implements the HTTP API
type ReviewSyncService struct {
	places   *biz.PlaceUseCase
	ingest   *biz.IngestUseCase
	rating   *biz.RatingUseCase
	annotate *biz.AnnotateUseCase
	feedback *biz.FeedbackUseCase
	validate *validator.Validate
	log      *log.Helper
}

// NewReviewSyncService creates a new ReviewSyncService
func NewReviewSyncService(places *biz.PlaceUseCase, ingest *biz.IngestUseCase, rating *biz.RatingUseCase,
	annotate *biz.AnnotateUseCase, feedback *biz.FeedbackUseCase, logger log.Logger) *ReviewSyncService {
	return &ReviewSyncService{
		places:   places,
		ingest:   ingest,
		rating:   rating,
		annotate: annotate,
		feedback: feedback,
		validate: validator.New(),
		log:      log.NewHelper(logger),
	}
}

// HealthCheck implements health check
func (s *ReviewSyncService) HealthCheck(ctx context.Context, req *HealthCheckRequest) (*HealthCheckReply, error) {
	return &HealthCheckReply{Status: "ok"}, nil
}

// Onboard imports a business profile and its Google rating.
func (s *ReviewSyncService) Onboard(ctx context.Context, req *OnboardRequest) (*OnboardReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	res, err := s.places.Onboard(ctx, &biz.OnboardRequest{
		GooglePlaceID:      req.GooglePlaceID,
		GoogleCID:          req.GoogleCID,
		TripadvisorURLPath: req.TripadvisorURLPath,
		LocationName:       req.LocationName,
		LanguageCode:       req.LanguageCode,
	})
	if err != nil {
		return nil, s.toServiceError(err)
	}
	return &OnboardReply{
		Place:    placeToReply(res.Place),
		Created:  res.Created,
		Combined: combinedToReply(res.Combined),
	}, nil
}

// Resolve maps identifiers to the internal place id.
func (s *ReviewSyncService) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	place, err := s.places.Resolve(ctx, req.toBiz())
	if err != nil {
		return nil, s.toServiceError(err)
	}
	return &ResolveReply{PlaceID: place.ID, Place: placeToReply(place)}, nil
}

// Ingest refreshes reviews for one place. Provider failures are reported per
// provider with a 200; only resolution and input errors fail the call.
func (s *ReviewSyncService) Ingest(ctx context.Context, req *IngestRequest) (*IngestReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	in := &biz.IngestRequest{
		Identifiers: req.PlaceIdentifiers.toBiz(),
		Depth:       req.Depth,
	}
	for _, p := range req.Providers {
		in.Providers = append(in.Providers, biz.Provider(p))
	}
	if req.SinceDays != nil {
		in.SinceDays = *req.SinceDays
		if in.SinceDays == 0 {
			in.SinceDays = -1
		}
	}

	res, err := s.ingest.Ingest(ctx, in)
	if err != nil {
		return nil, s.toServiceError(err)
	}
	reply := &IngestReply{
		PlaceID:   res.PlaceID,
		Providers: make(map[string]*ProviderOutcomeReply, len(res.Providers)),
		Combined:  combinedToReply(res.Combined),
	}
	for p, o := range res.Providers {
		reply.Providers[string(p)] = &ProviderOutcomeReply{
			Status:   o.Status,
			Fetched:  o.Fetched,
			Upserted: o.Upserted,
			Skipped:  o.Skipped,
			Error:    o.Error,
		}
	}
	return reply, nil
}

// GetRating returns per-provider snapshots and the combined view.
func (s *ReviewSyncService) GetRating(ctx context.Context, req *GetRatingRequest) (*GetRatingReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	pr, err := s.rating.GetPlaceRating(ctx, req.PlaceID)
	if err != nil {
		return nil, s.toServiceError(err)
	}
	reply := &GetRatingReply{
		PlaceID:   pr.PlaceID,
		Combined:  combinedToReply(pr.Combined),
		Providers: make(map[string]*SnapshotReply, len(pr.Providers)),
	}
	for p, snap := range pr.Providers {
		reply.Providers[string(p)] = snapshotToReply(snap)
	}
	return reply, nil
}

// Annotate runs one annotation sweep over a place.
func (s *ReviewSyncService) Annotate(ctx context.Context, req *AnnotateRequest) (*AnnotateReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	res, err := s.annotate.Annotate(ctx, &biz.AnnotateRequest{
		PlaceID:   req.PlaceID,
		Limit:     req.Limit,
		ReviewIDs: req.ReviewIDs,
	})
	if err != nil {
		return nil, s.toServiceError(err)
	}
	return annotateToReply(res), nil
}

// SubmitFeedback stores first-party campaign feedback.
func (s *ReviewSyncService) SubmitFeedback(ctx context.Context, req *FeedbackRequest) (*FeedbackReply, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	var ua string
	if tr, ok := transport.FromServerContext(ctx); ok {
		ua = tr.RequestHeader().Get("User-Agent")
	}
	review, err := s.feedback.Submit(ctx, &biz.FeedbackRequest{
		Identifiers: req.PlaceIdentifiers.toBiz(),
		CampaignID:  req.CampaignID,
		Rating:      req.Rating,
		Text:        req.Text,
		AuthorEmail: req.AuthorEmail,
		UserAgent:   ua,
	})
	if err != nil {
		return nil, s.toServiceError(err)
	}
	return &FeedbackReply{ReviewID: review.ID, PlaceID: review.PlaceID}, nil
}

// HandleReviewsIngested annotates the reviews announced by an ingestion
// event. It is driven by the Kafka consumer.
func (s *ReviewSyncService) HandleReviewsIngested(ctx context.Context, evt *biz.ReviewsIngested) error {
	if evt.PlaceID == "" || evt.Count <= 0 {
		return nil
	}
	res, err := s.annotate.Annotate(ctx, &biz.AnnotateRequest{PlaceID: evt.PlaceID, Limit: evt.Count})
	if err != nil {
		return err
	}
	s.log.Infof("event-driven annotation for %s (%s): analyzed=%d errored=%d", evt.PlaceID, evt.Provider, res.Analyzed, res.Errored)
	return nil
}

func placeToReply(p *biz.Place) *PlaceReply {
	if p == nil {
		return nil
	}
	return &PlaceReply{
		ID:                 p.ID,
		Name:               p.Name,
		GooglePlaceID:      p.GooglePlaceID,
		GoogleCID:          p.GoogleCID,
		TripadvisorURLPath: p.TripadvisorURLPath,
		Category:           p.Category,
		Address:            p.Address,
		City:               p.City,
		CountryCode:        p.CountryCode,
		Phone:              p.Phone,
		URL:                p.URL,
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		PlaceTopics:        p.PlaceTopics,
	}
}

func combinedToReply(c *biz.CombinedRating) *CombinedReply {
	if c == nil {
		return nil
	}
	out := &CombinedReply{
		Value:        c.Value,
		Votes:        c.Votes,
		Distribution: distributionToReply(c.Distribution),
	}
	for _, p := range c.Sources {
		out.Sources = append(out.Sources, string(p))
	}
	return out
}

func snapshotToReply(s *biz.RatingSnapshot) *SnapshotReply {
	if s == nil {
		return nil
	}
	return &SnapshotReply{
		Value:        s.Value,
		Votes:        s.Votes,
		Max:          s.Max,
		Distribution: distributionToReply(s.Distribution),
		FetchedAt:    s.FetchedAt.UTC().Format(time.RFC3339),
	}
}

func distributionToReply(d map[int]int64) map[string]int64 {
	if len(d) == 0 {
		return nil
	}
	out := make(map[string]int64, len(d))
	for star, n := range d {
		out[strconv.Itoa(star)] = n
	}
	return out
}

func annotateToReply(res *biz.AnnotateResult) *AnnotateReply {
	reply := &AnnotateReply{
		Candidates: res.Candidates,
		Analyzed:   res.Analyzed,
		Skipped:    res.Skipped,
		Errored:    res.Errored,
		Items:      make([]*AnnotateItemReply, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		reply.Items = append(reply.Items, &AnnotateItemReply{ReviewID: it.ReviewID, Status: it.Status, Error: it.Error})
	}
	return reply
}
