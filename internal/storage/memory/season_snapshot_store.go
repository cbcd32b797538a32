package memory

import (
	"context"
	"sort"
	"sync"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// SeasonSnapshotStore is an in-memory implementation of storage.SeasonSnapshotStore.
type SeasonSnapshotStore struct {
	mu   sync.RWMutex
	data []*domain.SeasonSnapshot
}

// NewSeasonSnapshotStore creates a new in-memory season snapshot store.
func NewSeasonSnapshotStore() *SeasonSnapshotStore {
	return &SeasonSnapshotStore{}
}

// Compile-time interface check.
var _ storage.SeasonSnapshotStore = (*SeasonSnapshotStore)(nil)

// Insert appends an observed status transition.
func (s *SeasonSnapshotStore) Insert(_ context.Context, snap *domain.SeasonSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.data = append(s.data, &cp)
	return nil
}

// GetBySeason retrieves all snapshots for a season, ordered by observed_at ASC.
func (s *SeasonSnapshotStore) GetBySeason(_ context.Context, seasonID uint64) ([]*domain.SeasonSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []*domain.SeasonSnapshot
	for _, snap := range s.data {
		if snap.SeasonID == seasonID {
			cp := *snap
			snaps = append(snaps, &cp)
		}
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].ObservedAt < snaps[j].ObservedAt
	})

	return snaps, nil
}
