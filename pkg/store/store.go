// Package store provides the checkout stage's two persistence needs:
// an idempotency-keyed receipt store and a per-card failed-attempt
// counter for the velocity gate. Both ship an in-memory implementation
// (mutex-guarded map, grounded on pkg/cost.Tracker's accumulator
// shape) and a Redis-backed one for multi-instance deployments.
package store

import (
	"context"
	"sync"

	"github.com/lonestarx1/purchasesaga/pkg/saga"
)

// MemoryReceiptStore is a mutex-guarded in-process saga.ReceiptStore.
type MemoryReceiptStore struct {
	mu       sync.Mutex
	receipts map[string]saga.Receipt
}

// NewMemoryReceiptStore constructs an empty in-memory receipt store.
func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{receipts: make(map[string]saga.Receipt)}
}

func (s *MemoryReceiptStore) Get(ctx context.Context, idempotencyKey string) (saga.Receipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[idempotencyKey]
	return r, ok, nil
}

func (s *MemoryReceiptStore) Put(ctx context.Context, idempotencyKey string, r saga.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[idempotencyKey] = r
	return nil
}

// MemoryVelocityStore is a mutex-guarded in-process saga.VelocityStore.
type MemoryVelocityStore struct {
	mu       sync.Mutex
	attempts map[string]int
}

// NewMemoryVelocityStore constructs an empty in-memory velocity store.
func NewMemoryVelocityStore() *MemoryVelocityStore {
	return &MemoryVelocityStore{attempts: make(map[string]int)}
}

func (s *MemoryVelocityStore) Attempts(ctx context.Context, cardFingerprint string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[cardFingerprint], nil
}

func (s *MemoryVelocityStore) IncrementFailure(ctx context.Context, cardFingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[cardFingerprint]++
	return nil
}

func (s *MemoryVelocityStore) Reset(ctx context.Context, cardFingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, cardFingerprint)
	return nil
}

var (
	_ saga.ReceiptStore  = (*MemoryReceiptStore)(nil)
	_ saga.VelocityStore = (*MemoryVelocityStore)(nil)
)
