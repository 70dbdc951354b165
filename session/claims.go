package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore hands out short exclusive claims backed by SET NX.
type ClaimStore struct {
	rdb *redis.Client
}

func NewClaimStore(rdb *redis.Client) *ClaimStore { return &ClaimStore{rdb: rdb} }

// Claim returns true only for the first caller on key until ttl passes.
func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}
