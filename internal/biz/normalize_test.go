package biz

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseProviderTime(t *testing.T) {
	want := time.Date(2025, 11, 3, 18, 4, 5, 0, time.UTC)
	cases := []struct {
		in   string
		want *time.Time
	}{
		{"2025-11-03 18:04:05 +00:00", &want},
		{"2025-11-03 15:04:05 -03:00", &want},
		{"2025-11-03T18:04:05Z", &want},
		{"", nil},
		{"last week", nil},
	}
	for _, tc := range cases {
		in := tc.in
		got := ParseProviderTime(&in)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
		if got != nil && !got.Equal(*tc.want) {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
		if got != nil && got.Location() != time.UTC {
			t.Fatalf("%q: expected UTC, got %v", tc.in, got.Location())
		}
	}
	if ParseProviderTime(nil) != nil {
		t.Fatalf("nil input must yield nil")
	}
}

func TestNormalizeReviewsMapsOptionalFields(t *testing.T) {
	raw := `{
		"review_id": "abc",
		"review_text": "Muy rico",
		"timestamp": "2026-02-20 10:00:00 +00:00",
		"rating": {"value": 5},
		"profile_name": "Lucia",
		"local_guide": true,
		"reviews_count": 12,
		"owner_answer": "Gracias!",
		"owner_timestamp": "2026-02-21 09:00:00 +00:00",
		"images": [{"url": "https://img.example/1.jpg"}]
	}`
	var item RawReview
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	item.Raw = json.RawMessage(raw)

	rows, skipped := NormalizeReviews([]RawReview{item, {}}, NormalizeOptions{
		PlaceID:  "p1",
		Provider: ProviderGoogle,
		Now:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if skipped != 0 || len(rows) != 2 {
		t.Fatalf("rows=%d skipped=%d", len(rows), skipped)
	}
	r := rows[0]
	if *r.ProviderReviewID != "abc" || *r.Rating != 5 || *r.AuthorName != "Lucia" || !*r.LocalGuide {
		t.Fatalf("mapped review: %+v", r)
	}
	if r.OwnerPostedAt == nil || r.Images == nil || r.Raw == nil {
		t.Fatalf("owner answer, images and raw payload must be kept")
	}

	empty := rows[1]
	if empty.Text != nil || empty.Rating != nil || empty.PostedAt != nil {
		t.Fatalf("missing fields must stay nil: %+v", empty)
	}
	if empty.ProviderReviewID == nil || *empty.ProviderReviewID == "" {
		t.Fatalf("an identity must always be assigned")
	}
}

func TestReviewIdentityFallbacks(t *testing.T) {
	byURL := reviewIdentity(&RawReview{ReviewURL: strp("https://ta.example/r/9")})
	if byURL != "https://ta.example/r/9" {
		t.Fatalf("url fallback: %s", byURL)
	}

	item := RawReview{ProfileName: strp("Ana"), Timestamp: strp("2026-01-01 00:00:00 +00:00"), ReviewText: strp("Excelente")}
	a, b := reviewIdentity(&item), reviewIdentity(&item)
	if a != b || !strings.HasPrefix(a, "h:") {
		t.Fatalf("content hash must be stable: %s vs %s", a, b)
	}

	r1, r2 := reviewIdentity(&RawReview{}), reviewIdentity(&RawReview{})
	if r1 == r2 {
		t.Fatalf("last-resort ids must be random")
	}
}

func TestNormalizeReviewsDropsOutOfRangeRating(t *testing.T) {
	rows, _ := NormalizeReviews([]RawReview{{ReviewID: strp("x"), Rating: &RawRating{Value: fptr(0)}}}, NormalizeOptions{PlaceID: "p", Provider: ProviderTripadvisor})
	if rows[0].Rating != nil {
		t.Fatalf("rating 0 must be dropped")
	}
}
