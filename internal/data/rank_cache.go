package data

import (
	"context"
	"errors"
	"strconv"
	"time"

	"restroom/internal/biz"
	pkgredis "restroom/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
)

// rankCacheTTL bounds staleness when an invalidation is lost.
const rankCacheTTL = 10 * time.Minute

type rankCache struct {
	cache pkgredis.Cache
	log   *log.Helper
}

// NewRankCache creates a redis-backed RankCache.
func NewRankCache(cache pkgredis.Cache, logger log.Logger) biz.RankCache {
	return &rankCache{
		cache: cache,
		log:   log.NewHelper(logger),
	}
}

// GetOrCompute implements biz.RankCache. Cache errors degrade to a direct
// compute so a redis outage never breaks reads.
func (r *rankCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (float64, error)) (float64, error) {
	val, err := r.cache.GetString(ctx, key)
	if err == nil {
		if parsed, perr := strconv.ParseFloat(val, 64); perr == nil {
			return parsed, nil
		}
		r.log.Warnf("malformed cached value for %s: %q", key, val)
	} else if !errors.Is(err, pkgredis.Nil) {
		r.log.Warnf("cache read failed for %s: %v", key, err)
	}

	computed, err := compute(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.cache.SetString(ctx, key, strconv.FormatFloat(computed, 'f', -1, 64), rankCacheTTL); err != nil {
		r.log.Warnf("cache write failed for %s: %v", key, err)
	}
	return computed, nil
}

// Invalidate implements biz.RankCache.
func (r *rankCache) Invalidate(ctx context.Context, key string) error {
	_, err := r.cache.Del(ctx, key)
	return err
}
