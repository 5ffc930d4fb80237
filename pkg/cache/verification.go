package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/docseal/api/pkg/models"
)

const VERIFICATION_CACHE_PREFIX = "verify:"
const VERIFICATION_CACHE_TTL = time.Minute * 5

// VerificationCache keeps verification payloads in redis. A nil client
// disables it: Get always misses and writes are dropped.
type VerificationCache struct {
	RedisClient *redis.Client
}

func NewVerificationCache(r *redis.Client) *VerificationCache {
	return &VerificationCache{RedisClient: r}
}

func key(identifier string) string {
	return VERIFICATION_CACHE_PREFIX + identifier
}

func (vc *VerificationCache) Set(ctx context.Context, pl models.VerificationPayload) error {
	if vc.RedisClient == nil {
		return nil
	}

	b, err := json.Marshal(pl)
	if err != nil {
		return err
	}

	return vc.RedisClient.SetEX(ctx, key(pl.Identifier), b, VERIFICATION_CACHE_TTL).Err()
}

// Get returns the cached payload for identifier, or nil on a miss.
func (vc *VerificationCache) Get(ctx context.Context, identifier string) (*models.VerificationPayload, error) {
	if vc.RedisClient == nil {
		return nil, nil
	}

	b, err := vc.RedisClient.Get(ctx, key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var pl models.VerificationPayload
	if err := json.Unmarshal(b, &pl); err != nil {
		return nil, err
	}

	return &pl, nil
}

func (vc *VerificationCache) Invalidate(ctx context.Context, identifiers ...string) error {
	if vc.RedisClient == nil || len(identifiers) == 0 {
		return nil
	}

	keys := make([]string, len(identifiers))
	for i, id := range identifiers {
		keys[i] = key(id)
	}

	return vc.RedisClient.Del(ctx, keys...).Err()
}
