package biz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

var (
	distributionChain = Chain[map[string]interface{}]{
		Field: "rating_distribution",
		Extractors: []Extractor[map[string]interface{}]{
			PathObject("rating_distribution"),
			PathObject("rating.rating_distribution"),
			PathObject("rating.distribution"),
		},
	}

	googleVotesChain = Chain[float64]{
		Field: "votes",
		Extractors: []Extractor[float64]{
			PathNumber("rating.votes_count"),
			PathNumber("rating.rating_votes_count"),
			PathNumber("votes_count"),
			PathNumber("reviews_count"),
		},
	}

	// TripAdvisor reports the total review count more reliably than
	// rating.votes_count.
	tripadvisorVotesChain = Chain[float64]{
		Field: "votes",
		Extractors: []Extractor[float64]{
			PathNumber("reviews_count"),
			PathNumber("rating.votes_count"),
		},
	}

	topicsChain = Chain[map[string]interface{}]{
		Field: "place_topics",
		Extractors: []Extractor[map[string]interface{}]{
			PathObject("place_topics"),
			PathObject("topics"),
			PathObject("business_topics"),
		},
	}
)

// ParseBusinessInfo builds a place profile and its Google rating snapshot from
// one my_business_info result item.
func ParseBusinessInfo(raw json.RawMessage, fetchedAt time.Time, logger *log.Helper) (*BusinessInfo, error) {
	item, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode business info: %w", err)
	}

	place := &Place{
		GooglePlaceID: optString(item, "place_id"),
		GoogleCID:     optString(item, "cid"),
		FeatureID:     optString(item, "feature_id"),
		OriginalTitle: optString(item, "original_title"),
		Description:   optString(item, "description"),
		Category:      optString(item, "category"),
		Phone:         optString(item, "phone"),
		URL:           optString(item, "url"),
		Domain:        optString(item, "domain"),
		MainImage:     optString(item, "main_image"),
		Address:       optString(item, "address"),
		City:          optString(item, "address_info.city"),
		Region:        optString(item, "address_info.region"),
		Zip:           optString(item, "address_info.zip"),
		CountryCode:   optString(item, "address_info.country_code"),
		Latitude:      optNumber(item, "latitude"),
		Longitude:     optNumber(item, "longitude"),
		CurrentStatus: optString(item, "work_time.current_status"),
		PriceLevel:    optString(item, "price_level"),
		Raw:           raw,
	}
	if title := optString(item, "title"); title != nil {
		place.Name = *title
	}
	if b, ok := lookup(item, "is_claimed").(bool); ok {
		place.IsClaimed = &b
	}
	// CIDs are large integers and sometimes arrive as numbers.
	if place.GoogleCID == nil {
		if n, ok := lookup(item, "cid").(json.Number); ok {
			s := n.String()
			place.GoogleCID = &s
		}
	}
	if place.GooglePlaceID == nil && place.GoogleCID == nil {
		return nil, fmt.Errorf("business info carries neither place_id nor cid")
	}

	if topics, _ := topicsChain.Extract(item, logger); topics != nil {
		place.PlaceTopics = make(map[string]int64, len(topics))
		for k, v := range topics {
			if n, ok := toFloat(v); ok {
				place.PlaceTopics[k] = int64(n)
			}
		}
	}

	info := &BusinessInfo{Place: place}
	info.GoogleRating = parseSnapshot(item, googleVotesChain, fetchedAt, logger)
	return info, nil
}

// ParseReviewListing reads the first result block of a reviews task.
func ParseReviewListing(provider Provider, raw json.RawMessage, fetchedAt time.Time, logger *log.Helper) (*ReviewListing, error) {
	listing := &ReviewListing{Provider: provider}
	if len(raw) == 0 || string(raw) == "null" {
		return listing, nil
	}

	block, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s review listing: %w", provider, err)
	}
	var typed struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, fmt.Errorf("decode %s review items: %w", provider, err)
	}

	for i, itemRaw := range typed.Items {
		var item RawReview
		if err := json.Unmarshal(itemRaw, &item); err != nil {
			if logger != nil {
				logger.Warnf("skip malformed %s review item %d: %v", provider, i, err)
			}
			continue
		}
		item.Raw = itemRaw
		listing.Items = append(listing.Items, item)
	}

	votes := googleVotesChain
	if provider == ProviderTripadvisor {
		votes = tripadvisorVotesChain
	}
	listing.Rating = parseSnapshot(block, votes, fetchedAt, logger)
	return listing, nil
}

func parseSnapshot(block map[string]interface{}, votes Chain[float64], fetchedAt time.Time, logger *log.Helper) *RatingSnapshot {
	value, ok := toFloat(lookup(block, "rating.value"))
	if !ok {
		return nil
	}
	snap := &RatingSnapshot{Value: value, FetchedAt: fetchedAt}
	if v, src := votes.Extract(block, logger); src != "" {
		snap.Votes = int64(v)
	}
	if m, ok := toFloat(lookup(block, "rating.rating_max")); ok {
		snap.Max = m
	}
	if dist, _ := distributionChain.Extract(block, logger); dist != nil {
		snap.Distribution = parseDistribution(dist)
	}
	return snap
}

// decodeObject keeps numbers as json.Number so large identifiers survive.
func decodeObject(raw []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseDistribution(dist map[string]interface{}) map[int]int64 {
	out := make(map[int]int64, 5)
	for k, v := range dist {
		star, err := strconv.Atoi(k)
		if err != nil || star < 1 || star > 5 {
			continue
		}
		if n, ok := toFloat(v); ok {
			out[star] = int64(n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func optString(item map[string]interface{}, path string) *string {
	if s, ok := PathString(path).Fn(item); ok {
		return &s
	}
	return nil
}

func optNumber(item map[string]interface{}, path string) *float64 {
	if n, ok := toFloat(lookup(item, path)); ok {
		return &n
	}
	return nil
}
