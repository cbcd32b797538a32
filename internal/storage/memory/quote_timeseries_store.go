package memory

import (
	"context"
	"sort"
	"sync"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// QuoteTimeseriesStore is an in-memory implementation of storage.QuoteTimeseriesStore.
type QuoteTimeseriesStore struct {
	mu   sync.RWMutex
	data []*domain.QuotePoint
}

// NewQuoteTimeseriesStore creates a new in-memory quote timeseries store.
func NewQuoteTimeseriesStore() *QuoteTimeseriesStore {
	return &QuoteTimeseriesStore{}
}

// Compile-time interface check.
var _ storage.QuoteTimeseriesStore = (*QuoteTimeseriesStore)(nil)

// InsertBulk adds multiple sampled points.
func (s *QuoteTimeseriesStore) InsertBulk(_ context.Context, points []*domain.QuotePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		cp := *p
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetBySeason retrieves all points for a season, ordered by sampled_at ASC.
func (s *QuoteTimeseriesStore) GetBySeason(_ context.Context, seasonID uint64) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*domain.QuotePoint
	for _, p := range s.data {
		if p.SeasonID == seasonID {
			cp := *p
			points = append(points, &cp)
		}
	}

	sortQuotePoints(points)
	return points, nil
}

// GetByTimeRange retrieves points for a season within [start, end] (inclusive).
func (s *QuoteTimeseriesStore) GetByTimeRange(_ context.Context, seasonID uint64, start, end int64) ([]*domain.QuotePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*domain.QuotePoint
	for _, p := range s.data {
		if p.SeasonID == seasonID && p.SampledAt >= start && p.SampledAt <= end {
			cp := *p
			points = append(points, &cp)
		}
	}

	sortQuotePoints(points)
	return points, nil
}

func sortQuotePoints(points []*domain.QuotePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].SampledAt < points[j].SampledAt
	})
}
