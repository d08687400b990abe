package data

import (
	"time"

	"gorm.io/datatypes"
)

// Place represents the external_places table
type Place struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	GooglePlaceID      *string `gorm:"column:google_place_id;size:255;uniqueIndex:uq_places_google_place_id"`
	GoogleCID          *string `gorm:"column:google_cid;size:64;uniqueIndex:uq_places_google_cid"`
	TripadvisorURLPath *string `gorm:"column:tripadvisor_url_path;size:512;uniqueIndex:uq_places_tripadvisor_url_path"`
	FeatureID          *string `gorm:"column:feature_id;size:128"`

	Name          string  `gorm:"not null;size:255"`
	OriginalTitle *string `gorm:"size:255"`
	Description   *string `gorm:"type:text"`
	Category      *string `gorm:"size:255"`
	Phone         *string `gorm:"size:64"`
	URL           *string `gorm:"column:url;size:1024"`
	Domain        *string `gorm:"size:255"`
	MainImage     *string `gorm:"size:1024"`
	Address       *string `gorm:"size:512"`
	City          *string `gorm:"size:128"`
	Region        *string `gorm:"size:128"`
	Zip           *string `gorm:"size:32"`
	CountryCode   *string `gorm:"size:8"`
	Latitude      *float64
	Longitude     *float64
	IsClaimed     *bool
	CurrentStatus *string `gorm:"size:64"`
	PriceLevel    *string `gorm:"column:price_level_text;size:32"`

	PlaceTopics     datatypes.JSON `gorm:"column:place_topics"`
	BusinessInfoRaw datatypes.JSON `gorm:"column:business_info_raw"`

	// Per-provider rating snapshots. Each provider writes only its own column.
	GoogleRatings      datatypes.JSON `gorm:"column:google_ratings"`
	TripadvisorRatings datatypes.JSON `gorm:"column:tripadvisor_ratings"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (Place) TableName() string {
	return "external_places"
}

// Review represents the reviews table
type Review struct {
	ID               string  `gorm:"primaryKey;size:36"`
	ExternalPlaceID  string  `gorm:"column:external_place_id;not null;size:36;uniqueIndex:uq_review_identity,priority:1;index:idx_reviews_place_sentiment,priority:1"`
	Provider         string  `gorm:"not null;size:32;uniqueIndex:uq_review_identity,priority:2"`
	ProviderReviewID *string `gorm:"column:provider_review_id;size:512;uniqueIndex:uq_review_identity,priority:3"`

	RatingValue          *float64   `gorm:"column:rating_value"`
	ReviewText           *string    `gorm:"column:review_text;type:text"`
	OriginalReviewText   *string    `gorm:"column:original_review_text;type:text"`
	AuthorName           *string    `gorm:"size:255"`
	ProfileURL           *string    `gorm:"column:profile_url;size:1024"`
	ProfileImageURL      *string    `gorm:"column:profile_image_url;size:1024"`
	LocalGuide           *bool      `gorm:"column:local_guide"`
	ReviewerReviewsCount *int64     `gorm:"column:reviewer_reviews_count"`
	ReviewerPhotosCount  *int64     `gorm:"column:reviewer_photos_count"`
	PostedAt             *time.Time `gorm:"column:posted_at;index:idx_reviews_posted_at"`
	ReviewURL            *string    `gorm:"column:review_url;size:1024"`
	OwnerAnswer          *string    `gorm:"type:text"`
	OriginalOwnerAnswer  *string    `gorm:"type:text"`
	OwnerPostedAt        *time.Time `gorm:"column:owner_posted_at"`
	Images               datatypes.JSON
	ReviewHighlights     datatypes.JSON `gorm:"column:review_highlights"`
	ReviewItemRaw        datatypes.JSON `gorm:"column:review_item_raw"`

	CampaignID      *string        `gorm:"column:campaign_id;size:64"`
	ContextMetadata datatypes.JSON `gorm:"column:context_metadata"`

	// Analysis columns stay NULL until annotated.
	Language                   *string        `gorm:"size:16"`
	Sentiment                  *string        `gorm:"size:16;index:idx_reviews_place_sentiment,priority:2"`
	Aspects                    datatypes.JSON `gorm:"column:aspects"`
	OverallScore               *float64       `gorm:"column:overall_score"`
	OverallSentimentConfidence *float64       `gorm:"column:overall_sentiment_confidence"`
	GapToFive                  *bool          `gorm:"column:gap_to_five"`
	GapToFiveScore             *float64       `gorm:"column:gap_to_five_score"`
	GapReasons                 datatypes.JSON `gorm:"column:gap_reasons"`
	CriticalFlags              datatypes.JSON `gorm:"column:critical_flags"`
	ExecutiveSummary           *string        `gorm:"column:executive_summary;type:text"`
	ActionItems                datatypes.JSON `gorm:"column:action_items"`
	StaffMentions              datatypes.JSON `gorm:"column:staff_mentions"`
	AnalyzedAt                 *time.Time     `gorm:"column:analyzed_at"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (Review) TableName() string {
	return "reviews"
}

// providerColumns are replaced when a provider review is re-ingested.
// Analysis columns are not listed, so annotations survive re-ingestion.
var providerColumns = []string{
	"rating_value",
	"review_text",
	"original_review_text",
	"author_name",
	"profile_url",
	"profile_image_url",
	"local_guide",
	"reviewer_reviews_count",
	"reviewer_photos_count",
	"posted_at",
	"review_url",
	"owner_answer",
	"original_owner_answer",
	"owner_posted_at",
	"images",
	"review_highlights",
	"review_item_raw",
	"updated_at",
}

// placeProfileColumns are refreshed when a place is onboarded again.
var placeProfileColumns = []string{
	"google_cid",
	"feature_id",
	"name",
	"original_title",
	"description",
	"category",
	"phone",
	"url",
	"domain",
	"main_image",
	"address",
	"city",
	"region",
	"zip",
	"country_code",
	"latitude",
	"longitude",
	"is_claimed",
	"current_status",
	"price_level_text",
	"place_topics",
	"business_info_raw",
	"updated_at",
}
