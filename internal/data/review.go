package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

type reviewRepo struct {
	data *Data
	log  *log.Helper
}

// NewReviewRepo creates a new review repository
func NewReviewRepo(data *Data, logger log.Logger) biz.ReviewRepo {
	return &reviewRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// UpsertReviews writes the whole batch in one INSERT ... ON CONFLICT keyed by
// (external_place_id, provider, provider_review_id). Provider fields are
// replaced; analysis fields and the row id are kept.
func (r *reviewRepo) UpsertReviews(ctx context.Context, reviews []*biz.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}
	rows := make([]*Review, 0, len(reviews))
	for _, rv := range reviews {
		m, err := reviewFromBiz(rv)
		if err != nil {
			return 0, err
		}
		id, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("failed to generate review ID: %w", err)
		}
		m.ID = id.String()
		rows = append(rows, m)
	}

	result := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_place_id"},
			{Name: "provider"},
			{Name: "provider_review_id"},
		},
		DoUpdates: clause.AssignmentColumns(providerColumns),
	}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert reviews: %w", result.Error)
	}

	r.log.Infof("upserted %d %s reviews for %s", len(rows), reviews[0].Provider, reviews[0].PlaceID)
	return len(rows), nil
}

func (r *reviewRepo) InsertReview(ctx context.Context, review *biz.Review) error {
	m, err := reviewFromBiz(review)
	if err != nil {
		return err
	}
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate review ID: %w", err)
		}
		m.ID = id.String()
		review.ID = m.ID
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// ListUnannotated returns reviews with text and NULL sentiment, newest first
// with undated reviews last. Rating-only reviews are never candidates, so
// repeated sweeps always reach older reviews.
func (r *reviewRepo) ListUnannotated(ctx context.Context, placeID string, limit int) ([]*biz.Review, error) {
	var rows []Review
	err := r.data.db.WithContext(ctx).
		Where("external_place_id = ? AND sentiment IS NULL", placeID).
		Where("((review_text IS NOT NULL AND TRIM(review_text) <> '') OR (original_review_text IS NOT NULL AND TRIM(original_review_text) <> ''))").
		Order("posted_at IS NULL").
		Order("posted_at DESC").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unannotated reviews: %w", err)
	}
	return reviewsToBiz(rows)
}

func (r *reviewRepo) ListByIDs(ctx context.Context, placeID string, ids []string) ([]*biz.Review, error) {
	var rows []Review
	err := r.data.db.WithContext(ctx).
		Where("external_place_id = ? AND id IN ?", placeID, ids).
		Order("posted_at IS NULL").
		Order("posted_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviewsToBiz(rows)
}

func (r *reviewRepo) UpdateAnalysis(ctx context.Context, reviewID string, a *biz.Analysis, analyzedAt time.Time) error {
	encode := func(v interface{}) (datatypes.JSON, error) {
		b, err := json.Marshal(v)
		return datatypes.JSON(b), err
	}
	updates := map[string]interface{}{
		"language":                     a.Language,
		"sentiment":                    string(a.Sentiment),
		"overall_score":                a.OverallScore,
		"overall_sentiment_confidence": a.Confidence,
		"gap_to_five":                  a.GapToFive,
		"gap_to_five_score":            a.GapToFiveScore,
		"executive_summary":            a.ExecutiveSummary,
		"analyzed_at":                  analyzedAt,
		"updated_at":                   analyzedAt,
	}
	for column, v := range map[string]interface{}{
		"aspects":        a.Aspects,
		"gap_reasons":    a.GapReasons,
		"critical_flags": a.CriticalFlags,
		"action_items":   a.ActionItems,
		"staff_mentions": a.StaffMentions,
	} {
		raw, err := encode(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", column, err)
		}
		updates[column] = raw
	}

	res := r.data.db.WithContext(ctx).Model(&Review{}).Where("id = ?", reviewID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to store analysis: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrReviewNotFound
	}
	return nil
}

func reviewFromBiz(rv *biz.Review) (*Review, error) {
	if rv.PlaceID == "" {
		return nil, fmt.Errorf("%w: review without place", biz.ErrInvalidArgument)
	}
	m := &Review{
		ID:                   rv.ID,
		ExternalPlaceID:      rv.PlaceID,
		Provider:             string(rv.Provider),
		ProviderReviewID:     rv.ProviderReviewID,
		RatingValue:          rv.Rating,
		ReviewText:           rv.Text,
		OriginalReviewText:   rv.OriginalText,
		AuthorName:           rv.AuthorName,
		ProfileURL:           rv.ProfileURL,
		ProfileImageURL:      rv.ProfileImageURL,
		LocalGuide:           rv.LocalGuide,
		ReviewerReviewsCount: rv.ReviewerReviewsCount,
		ReviewerPhotosCount:  rv.ReviewerPhotosCount,
		PostedAt:             rv.PostedAt,
		ReviewURL:            rv.ReviewURL,
		OwnerAnswer:          rv.OwnerAnswer,
		OriginalOwnerAnswer:  rv.OriginalOwnerAnswer,
		OwnerPostedAt:        rv.OwnerPostedAt,
		Images:               jsonOrNil(rv.Images),
		ReviewHighlights:     jsonOrNil(rv.Highlights),
		ReviewItemRaw:        jsonOrNil(rv.Raw),
		CampaignID:           rv.CampaignID,
		ContextMetadata:      jsonOrNil(rv.ContextMetadata),
	}
	return m, nil
}

func reviewsToBiz(rows []Review) ([]*biz.Review, error) {
	out := make([]*biz.Review, 0, len(rows))
	for i := range rows {
		rv, err := reviewToBiz(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, nil
}

func reviewToBiz(m *Review) (*biz.Review, error) {
	rv := &biz.Review{
		ID:                   m.ID,
		PlaceID:              m.ExternalPlaceID,
		Provider:             biz.Provider(m.Provider),
		ProviderReviewID:     m.ProviderReviewID,
		Rating:               m.RatingValue,
		Text:                 m.ReviewText,
		OriginalText:         m.OriginalReviewText,
		AuthorName:           m.AuthorName,
		ProfileURL:           m.ProfileURL,
		ProfileImageURL:      m.ProfileImageURL,
		LocalGuide:           m.LocalGuide,
		ReviewerReviewsCount: m.ReviewerReviewsCount,
		ReviewerPhotosCount:  m.ReviewerPhotosCount,
		PostedAt:             m.PostedAt,
		ReviewURL:            m.ReviewURL,
		OwnerAnswer:          m.OwnerAnswer,
		OriginalOwnerAnswer:  m.OriginalOwnerAnswer,
		OwnerPostedAt:        m.OwnerPostedAt,
		Images:               json.RawMessage(m.Images),
		Highlights:           json.RawMessage(m.ReviewHighlights),
		Raw:                  json.RawMessage(m.ReviewItemRaw),
		CampaignID:           m.CampaignID,
		ContextMetadata:      json.RawMessage(m.ContextMetadata),
		AnalyzedAt:           m.AnalyzedAt,
	}
	if m.Sentiment == nil {
		return rv, nil
	}

	a := &biz.Analysis{Sentiment: biz.Sentiment(*m.Sentiment)}
	if m.Language != nil {
		a.Language = *m.Language
	}
	if m.OverallScore != nil {
		a.OverallScore = *m.OverallScore
	}
	if m.OverallSentimentConfidence != nil {
		a.Confidence = *m.OverallSentimentConfidence
	}
	if m.GapToFive != nil {
		a.GapToFive = *m.GapToFive
	}
	if m.GapToFiveScore != nil {
		a.GapToFiveScore = *m.GapToFiveScore
	}
	if m.ExecutiveSummary != nil {
		a.ExecutiveSummary = *m.ExecutiveSummary
	}
	for _, f := range []struct {
		raw datatypes.JSON
		dst interface{}
	}{
		{m.Aspects, &a.Aspects},
		{m.GapReasons, &a.GapReasons},
		{m.CriticalFlags, &a.CriticalFlags},
		{m.ActionItems, &a.ActionItems},
		{m.StaffMentions, &a.StaffMentions},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode analysis of review %s: %w", m.ID, err)
		}
	}
	rv.Analysis = a
	return rv, nil
}

func jsonOrNil(b []byte) datatypes.JSON {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return datatypes.JSON(b)
}
