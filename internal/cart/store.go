package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"festival-ticketing/internal/models"
)

// RedisStore persists one cart per user under a TTL matching the cart's
// expiry, so an abandoned cart disappears from redis on its own. The
// stored copy is a convenience for page reloads; it is never trusted
// for pricing, since checkout re-derives everything server-side.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Get loads a user's cart. A missing key or a lapsed expiry both come
// back as a fresh empty cart.
func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	raw, err := s.Client.Get(ctx, cartKey(userID)).Result()
	if err == redis.Nil {
		return &models.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var c models.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.Expired(time.Now()) {
		return &models.Cart{}, nil
	}
	return &c, nil
}

// Save writes the cart with a TTL running to its expiry. Saving an
// empty cart clears the key instead.
func (s *RedisStore) Save(ctx context.Context, userID string, c *models.Cart) error {
	if c.IsEmpty() {
		return s.Clear(ctx, userID)
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		return s.Clear(ctx, userID)
	}
	if err := s.Client.Set(ctx, cartKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.Client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}
