package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// ReceiptTTL bounds how long an idempotency key is honored before a
// retried checkout is treated as a fresh request.
const ReceiptTTL = 24 * time.Hour

// VelocityTTL bounds how long a failed-attempt counter survives before
// resetting on its own.
const VelocityTTL = 1 * time.Hour

// RedisReceiptStore is a Redis-backed saga.ReceiptStore, keyed by
// idempotency key under a configurable prefix.
type RedisReceiptStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisReceiptStore wraps an existing Redis client. keyPrefix
// isolates this saga deployment's keys from any other use of the same
// Redis instance.
func NewRedisReceiptStore(client *redis.Client, keyPrefix string) *RedisReceiptStore {
	if keyPrefix == "" {
		keyPrefix = "purchasesaga"
	}
	return &RedisReceiptStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisReceiptStore) key(idempotencyKey string) string {
	return fmt.Sprintf("%s:receipt:%s", s.keyPrefix, idempotencyKey)
}

func (s *RedisReceiptStore) Get(ctx context.Context, idempotencyKey string) (saga.Receipt, bool, error) {
	data, err := s.client.Get(ctx, s.key(idempotencyKey)).Bytes()
	if err == redis.Nil {
		return saga.Receipt{}, false, nil
	}
	if err != nil {
		return saga.Receipt{}, false, fmt.Errorf("store: get receipt %s: %w", idempotencyKey, err)
	}
	var r saga.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return saga.Receipt{}, false, fmt.Errorf("store: unmarshal receipt %s: %w", idempotencyKey, err)
	}
	return r, true, nil
}

func (s *RedisReceiptStore) Put(ctx context.Context, idempotencyKey string, r saga.Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal receipt %s: %w", idempotencyKey, err)
	}
	if err := s.client.Set(ctx, s.key(idempotencyKey), data, ReceiptTTL).Err(); err != nil {
		return fmt.Errorf("store: put receipt %s: %w", idempotencyKey, err)
	}
	return nil
}

// RedisVelocityStore is a Redis-backed saga.VelocityStore using INCR
// against a per-card key with a rolling TTL.
type RedisVelocityStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisVelocityStore(client *redis.Client, keyPrefix string) *RedisVelocityStore {
	if keyPrefix == "" {
		keyPrefix = "purchasesaga"
	}
	return &RedisVelocityStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisVelocityStore) key(cardFingerprint string) string {
	return fmt.Sprintf("%s:velocity:%s", s.keyPrefix, cardFingerprint)
}

func (s *RedisVelocityStore) Attempts(ctx context.Context, cardFingerprint string) (int, error) {
	n, err := s.client.Get(ctx, s.key(cardFingerprint)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get velocity %s: %w", cardFingerprint, err)
	}
	return n, nil
}

func (s *RedisVelocityStore) IncrementFailure(ctx context.Context, cardFingerprint string) error {
	key := s.key(cardFingerprint)
	if err := s.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: incr velocity %s: %w", cardFingerprint, err)
	}
	return s.client.Expire(ctx, key, VelocityTTL).Err()
}

func (s *RedisVelocityStore) Reset(ctx context.Context, cardFingerprint string) error {
	if err := s.client.Del(ctx, s.key(cardFingerprint)).Err(); err != nil {
		return fmt.Errorf("store: reset velocity %s: %w", cardFingerprint, err)
	}
	return nil
}

var (
	_ saga.ReceiptStore  = (*RedisReceiptStore)(nil)
	_ saga.VelocityStore = (*RedisVelocityStore)(nil)
)
