package biz

import (
	"context"
	"encoding/json"
	"time"
)

// Provider identifies where a review or rating came from.
type Provider string

const (
	ProviderGoogle      Provider = "google"
	ProviderTripadvisor Provider = "tripadvisor"
	ProviderCampaign    Provider = "campaign"
)

// Sentiment is the polarity assigned by the annotator.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known polarities.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Place domain model (an external business)
type Place struct {
	ID                 string
	GooglePlaceID      *string
	GoogleCID          *string
	TripadvisorURLPath *string
	FeatureID          *string

	Name          string
	OriginalTitle *string
	Description   *string
	Category      *string
	Phone         *string
	URL           *string
	Domain        *string
	MainImage     *string
	Address       *string
	City          *string
	Region        *string
	Zip           *string
	CountryCode   *string
	Latitude      *float64
	Longitude     *float64
	IsClaimed     *bool
	CurrentStatus *string
	PriceLevel    *string
	PlaceTopics   map[string]int64

	// Raw is the untouched provider payload the profile was built from.
	Raw json.RawMessage

	GoogleRating      *RatingSnapshot
	TripadvisorRating *RatingSnapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshots returns the per-provider rating slots that hold data.
func (p *Place) Snapshots() map[Provider]*RatingSnapshot {
	out := make(map[Provider]*RatingSnapshot, 2)
	if p.GoogleRating != nil {
		out[ProviderGoogle] = p.GoogleRating
	}
	if p.TripadvisorRating != nil {
		out[ProviderTripadvisor] = p.TripadvisorRating
	}
	return out
}

// RatingSnapshot is one provider's rating summary at fetch time.
type RatingSnapshot struct {
	Value        float64       `json:"value"`
	Votes        int64         `json:"votes"`
	Max          float64       `json:"max,omitempty"`
	Distribution map[int]int64 `json:"distribution,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

// CombinedRating is the vote-weighted view across providers. It is derived
// from the snapshots and never written as its own slot.
type CombinedRating struct {
	Value        float64       `json:"value"`
	Votes        int64         `json:"votes"`
	Distribution map[int]int64 `json:"distribution"`
	Sources      []Provider    `json:"sources"`
}

// Review domain model
type Review struct {
	ID               string
	PlaceID          string
	Provider         Provider
	ProviderReviewID *string

	Rating               *float64
	Text                 *string
	OriginalText         *string
	AuthorName           *string
	ProfileURL           *string
	ProfileImageURL      *string
	LocalGuide           *bool
	ReviewerReviewsCount *int64
	ReviewerPhotosCount  *int64
	PostedAt             *time.Time
	ReviewURL            *string
	OwnerAnswer          *string
	OriginalOwnerAnswer  *string
	OwnerPostedAt        *time.Time
	Images               json.RawMessage
	Highlights           json.RawMessage
	Raw                  json.RawMessage

	CampaignID      *string
	ContextMetadata json.RawMessage

	Analysis   *Analysis
	AnalyzedAt *time.Time
}

// IdentityKey is the natural key used for de-duplication and upserts.
func (r *Review) IdentityKey() string {
	id := ""
	if r.ProviderReviewID != nil {
		id = *r.ProviderReviewID
	}
	return r.PlaceID + "|" + string(r.Provider) + "|" + id
}

// Analysis is the NLP annotation attached to a review.
type Analysis struct {
	Language         string         `json:"language"`
	Sentiment        Sentiment      `json:"sentiment"`
	OverallScore     float64        `json:"overall_score"`
	Confidence       float64        `json:"overall_sentiment_confidence"`
	GapToFive        bool           `json:"gap_to_five"`
	GapToFiveScore   float64        `json:"gap_to_five_score"`
	GapReasons       []string       `json:"gap_reasons"`
	CriticalFlags    []string       `json:"critical_flags"`
	ExecutiveSummary string         `json:"executive_summary"`
	ActionItems      []string       `json:"action_items"`
	StaffMentions    []StaffMention `json:"staff_mentions"`
	Aspects          []Aspect       `json:"aspects"`
}

type Aspect struct {
	Aspect           string    `json:"aspect"`
	SubAspect        string    `json:"sub_aspect"`
	Sentiment        Sentiment `json:"sentiment"`
	EvidenceSpans    []string  `json:"evidence_spans"`
	Severity         int       `json:"severity"`
	GapToFiveContrib float64   `json:"gap_to_five_contrib"`
}

type StaffMention struct {
	DetectedName string    `json:"detected_name"`
	Role         string    `json:"role"`
	Sentiment    Sentiment `json:"sentiment"`
	EvidenceSpan string    `json:"evidence_span"`
}

// Locale carries the provider search context.
type Locale struct {
	LanguageCode string
	LocationName string
	LocationCode int32
}

// BusinessLookup asks the directory provider for one business profile.
type BusinessLookup struct {
	GooglePlaceID string
	GoogleCID     string
	Locale        Locale
}

// BusinessInfo is a parsed directory profile.
type BusinessInfo struct {
	Place             *Place
	GoogleRating      *RatingSnapshot
	TripadvisorRating *RatingSnapshot
}

// ReviewQuery asks a provider for its review listing.
type ReviewQuery struct {
	Provider Provider
	// Identifier is the Google CID or the TripAdvisor URL path.
	Identifier string
	Locale     Locale
	Depth      int
}

// ReviewListing is one provider's response: raw items plus an optional fresh
// rating snapshot.
type ReviewListing struct {
	Provider Provider
	Items    []RawReview
	Rating   *RatingSnapshot
}

// RawReview is a provider review item as it arrives on the wire.
type RawReview struct {
	ReviewID            *string         `json:"review_id"`
	ReviewText          *string         `json:"review_text"`
	OriginalReviewText  *string         `json:"original_review_text"`
	Timestamp           *string         `json:"timestamp"`
	Rating              *RawRating      `json:"rating"`
	ProfileName         *string         `json:"profile_name"`
	ProfileURL          *string         `json:"profile_url"`
	ProfileImageURL     *string         `json:"profile_image_url"`
	LocalGuide          *bool           `json:"local_guide"`
	ReviewsCount        *int64          `json:"reviews_count"`
	PhotosCount         *int64          `json:"photos_count"`
	ReviewURL           *string         `json:"review_url"`
	OwnerAnswer         *string         `json:"owner_answer"`
	OriginalOwnerAnswer *string         `json:"original_owner_answer"`
	OwnerTimestamp      *string         `json:"owner_timestamp"`
	Images              json.RawMessage `json:"images"`
	ReviewImages        json.RawMessage `json:"review_images"`
	ReviewHighlights    json.RawMessage `json:"review_highlights"`

	Raw json.RawMessage `json:"-"`
}

type RawRating struct {
	Value *float64 `json:"value"`
}

// AnnotationInput is one review handed to the NLP service.
type AnnotationInput struct {
	ReviewID string
	Provider Provider
	Text     string
}

// ReviewsIngestedTopic is the default topic for ReviewsIngested events.
const ReviewsIngestedTopic = "reviews.ingested"

// ReviewsIngested is published after reviews for a place were written.
type ReviewsIngested struct {
	PlaceID  string    `json:"place_id"`
	Provider Provider  `json:"provider"`
	Count    int       `json:"count"`
	At       time.Time `json:"at"`
}

// PlaceRepo defines the repository interface for places
type PlaceRepo interface {
	FindByID(ctx context.Context, id string) (*Place, error)
	FindByGooglePlaceID(ctx context.Context, placeID string) (*Place, error)
	FindByGoogleCID(ctx context.Context, cid string) (*Place, error)
	FindByTripadvisorPath(ctx context.Context, urlPath string) (*Place, error)
	// UpsertPlace creates or updates the profile keyed by provider identity
	// and reports whether a new row was inserted.
	UpsertPlace(ctx context.Context, place *Place) (created bool, err error)
	SetTripadvisorPath(ctx context.Context, placeID, urlPath string) error
	SetGoogleCID(ctx context.Context, placeID, cid string) error
	// UpdateRatingSnapshot writes one provider's slot and nothing else.
	UpdateRatingSnapshot(ctx context.Context, placeID string, provider Provider, snap *RatingSnapshot) error
}

// ReviewRepo defines the repository interface for reviews
type ReviewRepo interface {
	// UpsertReviews writes the batch in one statement keyed by identity.
	UpsertReviews(ctx context.Context, reviews []*Review) (int, error)
	InsertReview(ctx context.Context, review *Review) error
	ListUnannotated(ctx context.Context, placeID string, limit int) ([]*Review, error)
	ListByIDs(ctx context.Context, placeID string, ids []string) ([]*Review, error)
	UpdateAnalysis(ctx context.Context, reviewID string, analysis *Analysis, analyzedAt time.Time) error
}

// RatingRepo caches combined views and maintains rankings.
type RatingRepo interface {
	GetCombined(ctx context.Context, placeID string) (*CombinedRating, bool)
	StoreCombined(ctx context.Context, placeID string, combined *CombinedRating)
	InvalidateCombined(ctx context.Context, placeID string)
}

// ReviewSource is the business directory and review listing provider.
type ReviewSource interface {
	BusinessInfo(ctx context.Context, lookup *BusinessLookup) (*BusinessInfo, error)
	Reviews(ctx context.Context, query *ReviewQuery) (*ReviewListing, error)
}

// Annotator is the NLP annotation service. A nil entry or a missing key in
// the returned map means the item was not analyzed.
type Annotator interface {
	Annotate(ctx context.Context, items []AnnotationInput) (map[string]*Analysis, error)
}

// EventPublisher announces ingested reviews to downstream workers.
type EventPublisher interface {
	PublishReviewsIngested(ctx context.Context, evt *ReviewsIngested) error
}
