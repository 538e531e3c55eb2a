package biz

import "context"

// RankCache is an explicit get-or-compute cache for rating aggregates.
// Invalidation is imperative and happens on review writes.
type RankCache interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) (float64, error)) (float64, error)
	Invalidate(ctx context.Context, key string) error
}
