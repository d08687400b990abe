package service

import (
	"net/http"

	"reviewsync/internal/biz"
)

type HealthCheckRequest struct{}

type HealthCheckReply struct {
	Status string `json:"status"`
}

// PlaceIdentifiers is accepted by every endpoint that names a place.
type PlaceIdentifiers struct {
	ExternalPlaceID    string `json:"external_place_id" validate:"required_without_all=GooglePlaceID GoogleCID TripadvisorURLPath,max=64"`
	GooglePlaceID      string `json:"google_place_id" validate:"max=255"`
	GoogleCID          string `json:"google_cid" validate:"omitempty,numeric,max=32"`
	TripadvisorURLPath string `json:"tripadvisor_url_path" validate:"max=512"`
}

func (p PlaceIdentifiers) toBiz() biz.PlaceIdentifiers {
	return biz.PlaceIdentifiers{
		IDHint:             p.ExternalPlaceID,
		GooglePlaceID:      p.GooglePlaceID,
		GoogleCID:          p.GoogleCID,
		TripadvisorURLPath: p.TripadvisorURLPath,
	}
}

type OnboardRequest struct {
	GooglePlaceID      string `json:"google_place_id" validate:"required_without=GoogleCID,max=255"`
	GoogleCID          string `json:"google_cid" validate:"omitempty,numeric,max=32"`
	TripadvisorURLPath string `json:"tripadvisor_url_path" validate:"max=512"`
	LocationName       string `json:"location_name" validate:"max=255"`
	LanguageCode       string `json:"language_code" validate:"omitempty,len=2"`
}

type OnboardReply struct {
	Place    *PlaceReply    `json:"place"`
	Created  bool           `json:"created"`
	Combined *CombinedReply `json:"combined"`
}

// HTTPStatus answers 201 when the place was created.
func (r *OnboardReply) HTTPStatus() int {
	if r.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}

type ResolveRequest struct {
	PlaceIdentifiers
}

type ResolveReply struct {
	PlaceID string      `json:"place_id"`
	Place   *PlaceReply `json:"place"`
}

type IngestRequest struct {
	PlaceIdentifiers
	Providers []string `json:"providers" validate:"omitempty,max=2,dive,oneof=google tripadvisor"`
	Depth     int      `json:"depth" validate:"gte=0,lte=1000"`
	// SinceDays of 0 disables the recency cutoff; absent uses the default.
	SinceDays *int `json:"since_days" validate:"omitempty,gte=0,lte=3650"`
}

type ProviderOutcomeReply struct {
	Status   string `json:"status"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

type IngestReply struct {
	PlaceID   string                           `json:"place_id"`
	Providers map[string]*ProviderOutcomeReply `json:"providers"`
	Combined  *CombinedReply                   `json:"combined"`
}

type GetRatingRequest struct {
	PlaceID string `json:"place_id" validate:"required,uuid"`
}

type GetRatingReply struct {
	PlaceID   string                    `json:"place_id"`
	Combined  *CombinedReply            `json:"combined"`
	Providers map[string]*SnapshotReply `json:"providers"`
}

type AnnotateRequest struct {
	PlaceID   string   `json:"place_id" validate:"required,uuid"`
	Limit     int      `json:"limit" validate:"gte=0"`
	ReviewIDs []string `json:"review_ids" validate:"omitempty,max=500,dive,required"`
}

type AnnotateItemReply struct {
	ReviewID string `json:"review_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type AnnotateReply struct {
	Candidates int                  `json:"candidates"`
	Analyzed   int                  `json:"analyzed"`
	Skipped    int                  `json:"skipped"`
	Errored    int                  `json:"errored"`
	Items      []*AnnotateItemReply `json:"items"`
}

type FeedbackRequest struct {
	PlaceIdentifiers
	CampaignID  string  `json:"campaign_id" validate:"max=64"`
	Rating      float64 `json:"rating" validate:"required,gte=1,lte=5"`
	Text        string  `json:"text" validate:"max=5000"`
	AuthorEmail string  `json:"author_email" validate:"omitempty,email"`
}

type FeedbackReply struct {
	ReviewID string `json:"review_id"`
	PlaceID  string `json:"place_id"`
}

// HTTPStatus answers 201 for stored feedback.
func (r *FeedbackReply) HTTPStatus() int { return http.StatusCreated }

type PlaceReply struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	GooglePlaceID      *string          `json:"google_place_id"`
	GoogleCID          *string          `json:"google_cid"`
	TripadvisorURLPath *string          `json:"tripadvisor_url_path"`
	Category           *string          `json:"category,omitempty"`
	Address            *string          `json:"address,omitempty"`
	City               *string          `json:"city,omitempty"`
	CountryCode        *string          `json:"country_code,omitempty"`
	Phone              *string          `json:"phone,omitempty"`
	URL                *string          `json:"url,omitempty"`
	Latitude           *float64         `json:"latitude,omitempty"`
	Longitude          *float64         `json:"longitude,omitempty"`
	PlaceTopics        map[string]int64 `json:"place_topics,omitempty"`
}

type CombinedReply struct {
	Value        float64          `json:"value"`
	Votes        int64            `json:"votes"`
	Distribution map[string]int64 `json:"distribution,omitempty"`
	Sources      []string         `json:"sources"`
}

type SnapshotReply struct {
	Value        float64          `json:"value"`
	Votes        int64            `json:"votes"`
	Max          float64          `json:"max,omitempty"`
	Distribution map[string]int64 `json:"distribution,omitempty"`
	FetchedAt    string           `json:"fetched_at"`
}
