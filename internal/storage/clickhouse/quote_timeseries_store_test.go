package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sof-orchestrator/internal/domain"
)

func quotePoint(seasonID uint64, at int64, base float64) *domain.QuotePoint {
	return &domain.QuotePoint{
		SeasonID:    seasonID,
		SampledAt:   at,
		TotalSupply: 5000,
		BasePrice:   base,
		BuyPrice:    base * 1.001,
		SellPrice:   base * 0.993,
	}
}

func TestQuoteTimeseriesStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteTimeseriesStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.QuotePoint{
		quotePoint(1, 1000, 1.00),
		quotePoint(1, 2000, 1.05),
		quotePoint(2, 1500, 9.90),
	})
	require.NoError(t, err)

	got, err := store.GetBySeason(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1000), got[0].SampledAt)
	require.Equal(t, int64(2000), got[1].SampledAt)
	require.InDelta(t, 1.00, got[0].BasePrice, 1e-9)
}

func TestQuoteTimeseriesStore_TimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteTimeseriesStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.QuotePoint{
		quotePoint(1, 1000, 1.00),
		quotePoint(1, 2000, 1.05),
		quotePoint(1, 3000, 1.10),
	})
	require.NoError(t, err)

	got, err := store.GetByTimeRange(ctx, 1, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestQuoteTimeseriesStore_EmptyBatch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewQuoteTimeseriesStore(conn)
	require.NoError(t, store.InsertBulk(context.Background(), nil))
}
