package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plangrove/voicelink/internal/domain"
	"github.com/plangrove/voicelink/internal/repository"
)

const codeKeyPrefix = "oauth:code:"

// RedisCodeStore implements CodeStore backed by Redis. Redemption uses GETDEL
// so a code can be consumed by exactly one caller even under concurrent
// exchange attempts.
type RedisCodeStore struct {
	client redis.UniversalClient
}

var _ repository.CodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed authorization code store.
func NewRedisCodeStore(client redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

// SaveCode stores the encoded code record with TTL.
func (s *RedisCodeStore) SaveCode(ctx context.Context, code domain.AuthorizationCode, ttl time.Duration) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal code: %w", err)
	}
	if err := s.client.Set(ctx, codeKey(code.Code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist code: %w", err)
	}
	return nil
}

// RedeemCode atomically takes the code record. A missing or already-redeemed
// code returns (nil, nil); callers treat both identically.
func (s *RedisCodeStore) RedeemCode(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	bytes, err := s.client.GetDel(ctx, codeKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redeem code: %w", err)
	}
	var record domain.AuthorizationCode
	if err := json.Unmarshal(bytes, &record); err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	record.Used = true
	return &record, nil
}

func codeKey(code string) string {
	return codeKeyPrefix + code
}
