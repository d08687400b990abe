package biz

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

var providerTimeLayouts = []string{
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseProviderTime normalizes a provider timestamp to a UTC instant.
// Unparseable or blank values yield nil and are treated as absent.
func ParseProviderTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeOptions controls how one provider listing becomes review rows.
type NormalizeOptions struct {
	PlaceID   string
	Provider  Provider
	SinceDays int
	Now       time.Time
}

// NormalizeReviews maps raw items to canonical reviews, applies the recency
// cutoff and collapses duplicate identities, keeping the last occurrence in
// input order. It returns the rows and the number of items cut off.
func NormalizeReviews(items []RawReview, opts NormalizeOptions) ([]*Review, int) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	var cutoff time.Time
	if opts.SinceDays > 0 {
		cutoff = now.Add(-time.Duration(opts.SinceDays) * 24 * time.Hour)
	}

	rows := make([]*Review, 0, len(items))
	skipped := 0
	for i := range items {
		r := mapReview(&items[i], opts.PlaceID, opts.Provider)
		if !cutoff.IsZero() && r.PostedAt != nil && r.PostedAt.Before(cutoff) {
			skipped++
			continue
		}
		rows = append(rows, r)
	}
	return DedupeReviews(rows), skipped
}

// DedupeReviews keeps the last review per identity key, ordered by the
// position of that last occurrence.
func DedupeReviews(rows []*Review) []*Review {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[r.IdentityKey()] = i
	}
	out := make([]*Review, 0, len(last))
	for i, r := range rows {
		if last[r.IdentityKey()] == i {
			out = append(out, r)
		}
	}
	return out
}

func mapReview(item *RawReview, placeID string, provider Provider) *Review {
	r := &Review{
		PlaceID:             placeID,
		Provider:            provider,
		Text:                blankToNil(item.ReviewText),
		OriginalText:        blankToNil(item.OriginalReviewText),
		AuthorName:          blankToNil(item.ProfileName),
		ProfileURL:          blankToNil(item.ProfileURL),
		ProfileImageURL:     blankToNil(item.ProfileImageURL),
		PostedAt:            ParseProviderTime(item.Timestamp),
		ReviewURL:           blankToNil(item.ReviewURL),
		OwnerAnswer:         blankToNil(item.OwnerAnswer),
		OriginalOwnerAnswer: blankToNil(item.OriginalOwnerAnswer),
		OwnerPostedAt:       ParseProviderTime(item.OwnerTimestamp),
		Highlights:          nonNullJSON(item.ReviewHighlights),
		Raw:                 item.Raw,
	}
	if item.Rating != nil && item.Rating.Value != nil {
		if v := *item.Rating.Value; v >= 1 && v <= 5 {
			r.Rating = &v
		}
	}

	switch provider {
	case ProviderGoogle:
		r.LocalGuide = item.LocalGuide
		r.ReviewerReviewsCount = item.ReviewsCount
		r.ReviewerPhotosCount = item.PhotosCount
		r.Images = nonNullJSON(item.Images)
	case ProviderTripadvisor:
		r.Images = nonNullJSON(item.Images)
		if r.Images == nil {
			r.Images = nonNullJSON(item.ReviewImages)
		}
	}

	id := reviewIdentity(item)
	r.ProviderReviewID = &id
	return r
}

// reviewIdentity prefers a stable provider value so that re-ingestion hits
// the same row: review_id, then review_url, then a hash of author, timestamp
// and text. A random id is the last resort.
func reviewIdentity(item *RawReview) string {
	if v := blankToNil(item.ReviewID); v != nil {
		return *v
	}
	if v := blankToNil(item.ReviewURL); v != nil {
		return *v
	}
	var parts []string
	for _, p := range []*string{item.ProfileName, item.Timestamp, item.ReviewText} {
		if v := blankToNil(p); v != nil {
			parts = append(parts, *v)
		}
	}
	if len(parts) >= 2 {
		sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
		return "h:" + hex.EncodeToString(sum[:16])
	}
	return uuid.NewString()
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func nonNullJSON(b []byte) []byte {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return b
}
