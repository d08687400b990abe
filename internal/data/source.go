package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewsync/internal/biz"
	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// liveSource reads business profiles and reviews from DataForSEO.
type liveSource struct {
	client    *DataForSEOClient
	timeout   time.Duration
	taTimeout time.Duration
	log       *log.Helper
	now       func() time.Time
}

// NewReviewSource picks the live DataForSEO source or the bundled fixtures
// according to source.mode.
func NewReviewSource(c *conf.Source, dfs *conf.DataForSEO, client *DataForSEOClient, logger log.Logger) (biz.ReviewSource, error) {
	mode := "live"
	if c != nil && c.Mode != "" {
		mode = c.Mode
	}
	switch mode {
	case "fixture":
		dir := ""
		if c != nil {
			dir = c.FixtureDir
		}
		return newFixtureSource(dir, logger)
	case "live":
		timeout, taTimeout := defaultTaskTimeout, defaultTATimeout
		if dfs != nil {
			if d := dfs.Timeout.AsDuration(); d > 0 {
				timeout = d
			}
			if d := dfs.TripadvisorTimeout.AsDuration(); d > 0 {
				taTimeout = d
			}
		}
		return &liveSource{
			client:    client,
			timeout:   timeout,
			taTimeout: taTimeout,
			log:       log.NewHelper(logger),
			now:       time.Now,
		}, nil
	}
	return nil, fmt.Errorf("unsupported source mode %q", mode)
}

func (s *liveSource) BusinessInfo(ctx context.Context, lookup *biz.BusinessLookup) (*biz.BusinessInfo, error) {
	payload := map[string]interface{}{
		"language_code": lookup.Locale.LanguageCode,
	}
	var keyword string
	switch {
	case lookup.GooglePlaceID != "":
		keyword = "place_id:" + lookup.GooglePlaceID
		payload["location_name"] = lookup.Locale.LocationName
	case lookup.GoogleCID != "":
		keyword = "cid:" + lookup.GoogleCID
		if lookup.Locale.LocationCode > 0 {
			payload["location_code"] = lookup.Locale.LocationCode
		} else {
			payload["location_name"] = lookup.Locale.LocationName
		}
	default:
		return nil, fmt.Errorf("%w: business lookup needs a place id or cid", biz.ErrInvalidArgument)
	}
	payload["keyword"] = keyword

	res, err := s.client.Fetch(ctx, &TaskRequest{
		Endpoint:  endpointBusinessInfo,
		Payload:   payload,
		Timeout:   s.timeout,
		ResumeKey: endpointBusinessInfo + ":" + keyword,
	})
	if err != nil {
		return nil, err
	}

	item, err := firstItem(res.First())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: no business profile for %s", biz.ErrPlaceNotFound, keyword)
	}
	return biz.ParseBusinessInfo(item, s.now().UTC(), s.log)
}

func (s *liveSource) Reviews(ctx context.Context, q *biz.ReviewQuery) (*biz.ReviewListing, error) {
	var tr *TaskRequest
	switch q.Provider {
	case biz.ProviderGoogle:
		tr = &TaskRequest{
			Endpoint: endpointGoogleReviews,
			Payload: map[string]interface{}{
				"keyword":       "cid:" + q.Identifier,
				"location_name": q.Locale.LocationName,
				"language_code": q.Locale.LanguageCode,
			},
			Timeout: s.timeout,
		}
	case biz.ProviderTripadvisor:
		tr = &TaskRequest{
			Endpoint: endpointTripadvisorReviews,
			Payload: map[string]interface{}{
				"url_path":      q.Identifier,
				"location_code": q.Locale.LocationCode,
			},
			Timeout: s.taTimeout,
		}
	default:
		return nil, fmt.Errorf("%w: no review endpoint for provider %q", biz.ErrInvalidArgument, q.Provider)
	}
	tr.Depth = q.Depth
	tr.ResumeKey = fmt.Sprintf("%s:%s:%d", tr.Endpoint, q.Identifier, RoundDepth(q.Depth))

	res, err := s.client.Fetch(ctx, tr)
	if err != nil {
		return nil, err
	}
	listing, err := biz.ParseReviewListing(q.Provider, res.First(), s.now().UTC(), s.log)
	if err != nil {
		return nil, err
	}
	s.log.Infof("%s task %s returned %d review items", q.Provider, res.TaskID, len(listing.Items))
	return listing, nil
}

// firstItem returns items[0] of a result block, or nil when there is none.
func firstItem(block json.RawMessage) (json.RawMessage, error) {
	if len(block) == 0 || string(block) == "null" {
		return nil, nil
	}
	var typed struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(block, &typed); err != nil {
		return nil, fmt.Errorf("failed to decode result block: %w", err)
	}
	if len(typed.Items) == 0 {
		return nil, nil
	}
	return typed.Items[0], nil
}
