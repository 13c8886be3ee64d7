package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers which leaf categories already had their items crawled,
// so an interrupted run can continue where it stopped.
type StateManager interface {
	// CategoryItemCount returns the number of items saved for a finished category
	// and whether the category is finished at all.
	CategoryItemCount(ctx context.Context, categoryURL string) (int, bool, error)
	MarkCategoryDone(ctx context.Context, categoryURL string, items int) error
	ClearProgress(ctx context.Context, categoryURLs ...string) error
}

type redisStateManager struct {
	redisClient redis.Cmdable
	keyPrefix   string
}

func NewRedisStateManager(redisClient redis.Cmdable, keyPrefix string) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   keyPrefix + "category:",
	}
}

func (s *redisStateManager) key(categoryURL string) string {
	return s.keyPrefix + categoryURL
}

func (s *redisStateManager) CategoryItemCount(ctx context.Context, categoryURL string) (int, bool, error) {
	val, err := s.redisClient.Get(ctx, s.key(categoryURL)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil // Not crawled yet
		}
		return 0, false, fmt.Errorf("failed to get progress for category %s: %w", categoryURL, err)
	}

	items, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse item count for category %s: %w", categoryURL, err)
	}

	return items, true, nil
}

func (s *redisStateManager) MarkCategoryDone(ctx context.Context, categoryURL string, items int) error {
	err := s.redisClient.Set(ctx, s.key(categoryURL), items, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to mark category %s as done: %w", categoryURL, err)
	}
	return nil
}

func (s *redisStateManager) ClearProgress(ctx context.Context, categoryURLs ...string) error {
	if len(categoryURLs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(categoryURLs))
	for _, u := range categoryURLs {
		keys = append(keys, s.key(u))
	}

	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}
