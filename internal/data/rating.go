package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewsync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	combinedCacheTTL   = 15 * time.Minute
	rankPlacesByRating = "rank:places:rating"
	rankPlacesByVotes  = "rank:places:votes"
)

type ratingRepo struct {
	data *Data
	log  *log.Helper
}

// NewRatingRepo creates a new rating repository
func NewRatingRepo(data *Data, logger log.Logger) biz.RatingRepo {
	return &ratingRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func combinedKey(placeID string) string {
	return fmt.Sprintf("rating:combined:%s", placeID)
}

func (r *ratingRepo) GetCombined(ctx context.Context, placeID string) (*biz.CombinedRating, bool) {
	if r.data.rdb == nil {
		return nil, false
	}
	cached, err := r.data.rdb.Get(ctx, combinedKey(placeID)).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warnf("failed to read combined rating cache: %v", err)
		}
		return nil, false
	}
	var c biz.CombinedRating
	if err := json.Unmarshal([]byte(cached), &c); err != nil {
		r.log.Warnf("dropping corrupt combined rating cache for %s: %v", placeID, err)
		r.data.rdb.Del(ctx, combinedKey(placeID))
		return nil, false
	}
	r.log.Debugf("cache hit for combined rating: %s", placeID)
	return &c, true
}

// StoreCombined caches the derived view and refreshes the rankings.
func (r *ratingRepo) StoreCombined(ctx context.Context, placeID string, combined *biz.CombinedRating) {
	if r.data.rdb == nil || combined == nil {
		return
	}
	if data, err := json.Marshal(combined); err == nil {
		r.data.rdb.Set(ctx, combinedKey(placeID), data, combinedCacheTTL)
	}
	r.updateRankings(ctx, placeID, combined)
}

func (r *ratingRepo) InvalidateCombined(ctx context.Context, placeID string) {
	if r.data.rdb == nil {
		return
	}
	r.data.rdb.Del(ctx, combinedKey(placeID))
}

// updateRankings updates Redis ZSet rankings
func (r *ratingRepo) updateRankings(ctx context.Context, placeID string, combined *biz.CombinedRating) {
	pipe := r.data.rdb.TxPipeline()
	pipe.ZAdd(ctx, rankPlacesByVotes, redis.Z{
		Score:  float64(combined.Votes),
		Member: placeID,
	})
	if combined.Votes > 0 || len(combined.Sources) == 1 {
		pipe.ZAdd(ctx, rankPlacesByRating, redis.Z{
			Score:  combined.Value,
			Member: placeID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warnf("failed to update rankings for %s: %v", placeID, err)
	}
}
