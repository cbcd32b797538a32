// Package memory provides in-memory store implementations used by
// tests and single-process setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// TradeResultStore is an in-memory implementation of storage.TradeResultStore.
type TradeResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeResult // keyed by intent_id
}

// NewTradeResultStore creates a new in-memory trade result store.
func NewTradeResultStore() *TradeResultStore {
	return &TradeResultStore{
		data: make(map[string]*domain.TradeResult),
	}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

// Insert adds a new result. Returns ErrDuplicateKey if intent_id exists.
func (s *TradeResultStore) Insert(_ context.Context, r *domain.TradeResult) error {
	if r == nil || r.IntentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.IntentID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *r
	s.data[r.IntentID] = &cp
	return nil
}

// GetByIntentID retrieves a result by its intent ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByIntentID(_ context.Context, intentID string) (*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[intentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *r
	return &cp, nil
}

// GetBySeason retrieves all results for a season, ordered by created_at ASC.
func (s *TradeResultStore) GetBySeason(_ context.Context, seasonID uint64) ([]*domain.TradeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.TradeResult
	for _, r := range s.data {
		if r.SeasonID == seasonID {
			cp := *r
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt != results[j].CreatedAt {
			return results[i].CreatedAt < results[j].CreatedAt
		}
		return results[i].IntentID < results[j].IntentID
	})

	return results, nil
}
