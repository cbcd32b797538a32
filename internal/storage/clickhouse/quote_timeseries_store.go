package clickhouse

import (
	"context"
	"fmt"
	"time"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// QuoteTimeseriesStore implements storage.QuoteTimeseriesStore using ClickHouse.
type QuoteTimeseriesStore struct {
	conn *Conn
}

// NewQuoteTimeseriesStore creates a new QuoteTimeseriesStore.
func NewQuoteTimeseriesStore(conn *Conn) *QuoteTimeseriesStore {
	return &QuoteTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteTimeseriesStore = (*QuoteTimeseriesStore)(nil)

// InsertBulk adds multiple sampled points.
func (s *QuoteTimeseriesStore) InsertBulk(ctx context.Context, points []*domain.QuotePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer observeQuery("insert_quote_points", time.Now(), &err)

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote_timeseries (
			season_id, sampled_at, total_supply, base_price, buy_price, sell_price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.SeasonID, uint64(p.SampledAt), p.TotalSupply,
			p.BasePrice, p.BuyPrice, p.SellPrice,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySeason retrieves all points for a season, ordered by sampled_at ASC.
func (s *QuoteTimeseriesStore) GetBySeason(ctx context.Context, seasonID uint64) (_ []*domain.QuotePoint, err error) {
	defer observeQuery("get_quote_points_by_season", time.Now(), &err)

	query := `
		SELECT season_id, sampled_at, total_supply, base_price, buy_price, sell_price
		FROM quote_timeseries
		WHERE season_id = ?
		ORDER BY sampled_at ASC
	`

	rows, err := s.conn.Query(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("query by season id: %w", err)
	}
	defer rows.Close()

	return scanQuotePoints(rows)
}

// GetByTimeRange retrieves points for a season within [start, end] (inclusive).
func (s *QuoteTimeseriesStore) GetByTimeRange(ctx context.Context, seasonID uint64, start, end int64) (_ []*domain.QuotePoint, err error) {
	defer observeQuery("get_quote_points_by_time_range", time.Now(), &err)

	query := `
		SELECT season_id, sampled_at, total_supply, base_price, buy_price, sell_price
		FROM quote_timeseries
		WHERE season_id = ? AND sampled_at >= ? AND sampled_at <= ?
		ORDER BY sampled_at ASC
	`

	rows, err := s.conn.Query(ctx, query, seasonID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanQuotePoints(rows)
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanQuotePoints scans multiple rows.
func scanQuotePoints(rows chRows) ([]*domain.QuotePoint, error) {
	var points []*domain.QuotePoint

	for rows.Next() {
		var p domain.QuotePoint
		var sampledAt uint64

		err := rows.Scan(
			&p.SeasonID, &sampledAt, &p.TotalSupply,
			&p.BasePrice, &p.BuyPrice, &p.SellPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("scan quote point row: %w", err)
		}

		p.SampledAt = int64(sampledAt)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quote point rows: %w", err)
	}

	return points, nil
}
