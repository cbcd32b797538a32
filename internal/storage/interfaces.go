package storage

import (
	"context"

	"sof-orchestrator/internal/domain"
)

// TradeResultStore provides access to trade_results storage.
type TradeResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if intent_id exists.
	Insert(ctx context.Context, r *domain.TradeResult) error

	// GetByIntentID retrieves a result by its intent ID. Returns ErrNotFound if not exists.
	GetByIntentID(ctx context.Context, intentID string) (*domain.TradeResult, error)

	// GetBySeason retrieves all results for a season, ordered by created_at ASC.
	GetBySeason(ctx context.Context, seasonID uint64) ([]*domain.TradeResult, error)
}

// SeasonSnapshotStore provides access to season_snapshots storage.
type SeasonSnapshotStore interface {
	// Insert appends an observed status transition.
	Insert(ctx context.Context, s *domain.SeasonSnapshot) error

	// GetBySeason retrieves all snapshots for a season, ordered by observed_at ASC.
	GetBySeason(ctx context.Context, seasonID uint64) ([]*domain.SeasonSnapshot, error)
}

// QuoteTimeseriesStore provides access to quote_timeseries storage.
type QuoteTimeseriesStore interface {
	// InsertBulk adds multiple sampled points.
	InsertBulk(ctx context.Context, points []*domain.QuotePoint) error

	// GetBySeason retrieves all points for a season, ordered by sampled_at ASC.
	GetBySeason(ctx context.Context, seasonID uint64) ([]*domain.QuotePoint, error)

	// GetByTimeRange retrieves points for a season within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, seasonID uint64, start, end int64) ([]*domain.QuotePoint, error)
}
