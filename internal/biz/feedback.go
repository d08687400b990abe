package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

var (
	mobileUA = regexp.MustCompile(`(?i)mobile`)
	tabletUA = regexp.MustCompile(`(?i)tablet|ipad`)
)

// FeedbackRequest is first-party feedback collected through a campaign.
type FeedbackRequest struct {
	Identifiers PlaceIdentifiers
	CampaignID  string
	Rating      float64
	Text        string
	AuthorEmail string
	UserAgent   string
}

// FeedbackContext is stored as the review's context metadata.
type FeedbackContext struct {
	DeviceType  string    `json:"device_type"`
	UserAgent   string    `json:"user_agent,omitempty"`
	DayOfWeek   string    `json:"day_of_week"`
	TimeOfDay   string    `json:"time_of_day"`
	IsWeekend   bool      `json:"is_weekend"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// FeedbackUseCase stores campaign feedback as reviews of provider campaign.
type FeedbackUseCase struct {
	places  *PlaceUseCase
	reviews ReviewRepo
	events  EventPublisher
	now     func() time.Time
	log     *log.Helper
}

// NewFeedbackUseCase creates a new FeedbackUseCase instance
func NewFeedbackUseCase(places *PlaceUseCase, reviews ReviewRepo, events EventPublisher, logger log.Logger) *FeedbackUseCase {
	return &FeedbackUseCase{
		places:  places,
		reviews: reviews,
		events:  events,
		now:     time.Now,
		log:     log.NewHelper(logger),
	}
}

// Submit stores the feedback and announces it for annotation when it carries
// enough text to analyze.
func (uc *FeedbackUseCase) Submit(ctx context.Context, req *FeedbackRequest) (*Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, invalidArgument("rating must be between 1 and 5")
	}
	place, err := uc.places.Resolve(ctx, req.Identifiers)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate review ID: %w", err)
	}
	now := uc.now()
	meta, err := json.Marshal(NewFeedbackContext(req.UserAgent, now))
	if err != nil {
		return nil, fmt.Errorf("failed to encode context metadata: %w", err)
	}

	rating := req.Rating
	review := &Review{
		ID:              id.String(),
		PlaceID:         place.ID,
		Provider:        ProviderCampaign,
		Rating:          &rating,
		ContextMetadata: meta,
	}
	posted := now.UTC()
	review.PostedAt = &posted
	if text := strings.TrimSpace(req.Text); text != "" {
		review.Text = &text
	}
	if c := strings.TrimSpace(req.CampaignID); c != "" {
		review.CampaignID = &c
	}
	author := "Anonymous"
	if at := strings.Index(req.AuthorEmail, "@"); at > 0 {
		author = req.AuthorEmail[:at]
	}
	review.AuthorName = &author

	if err := uc.reviews.InsertReview(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}
	uc.log.Infof("stored campaign feedback %s for place %s", review.ID, place.ID)

	if review.Text != nil && len(*review.Text) > 10 && uc.events != nil {
		evt := &ReviewsIngested{PlaceID: place.ID, Provider: ProviderCampaign, Count: 1, At: posted}
		if err := uc.events.PublishReviewsIngested(ctx, evt); err != nil {
			uc.log.Warnf("failed to publish feedback event for %s: %v", place.ID, err)
		}
	}
	return review, nil
}

// NewFeedbackContext derives device and time buckets for a submission.
func NewFeedbackContext(userAgent string, at time.Time) FeedbackContext {
	device := "desktop"
	switch {
	case userAgent == "":
		device = "unknown"
	case mobileUA.MatchString(userAgent):
		device = "mobile"
	case tabletUA.MatchString(userAgent):
		device = "tablet"
	}

	var tod string
	switch h := at.Hour(); {
	case h >= 6 && h < 12:
		tod = "morning"
	case h >= 12 && h < 17:
		tod = "afternoon"
	case h >= 17 && h < 22:
		tod = "evening"
	default:
		tod = "night"
	}

	wd := at.Weekday()
	return FeedbackContext{
		DeviceType:  device,
		UserAgent:   userAgent,
		DayOfWeek:   strings.ToLower(wd.String()),
		TimeOfDay:   tod,
		IsWeekend:   wd == time.Saturday || wd == time.Sunday,
		SubmittedAt: at.UTC(),
	}
}
