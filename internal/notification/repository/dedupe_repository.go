package repository

import (
	"context"
	"fmt"
	"time"

	"media_pipeline/pkg/database"
)

const dedupeKeyPrefix = "notify:delivered:"

// DedupeRepository remembers which event ids were already delivered
type DedupeRepository interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string, ttl time.Duration) error
}

type dedupeRepository struct {
	redis database.RedisRepository[int64]
}

// NewDedupeRepository keep marks in redis, the value is the delivery time in unix seconds
func NewDedupeRepository(redis database.RedisRepository[int64]) DedupeRepository {
	return &dedupeRepository{redis: redis}
}

func dedupeKey(eventID string) string {
	return dedupeKeyPrefix + eventID
}

func (r *dedupeRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.redis.Exists(ctx, dedupeKey(eventID))
	if err != nil {
		return false, fmt.Errorf("dedupe seen %s: %w", eventID, err)
	}
	return ok, nil
}

func (r *dedupeRepository) Mark(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, dedupeKey(eventID), time.Now().Unix(), ttl); err != nil {
		return fmt.Errorf("dedupe mark %s: %w", eventID, err)
	}
	return nil
}
