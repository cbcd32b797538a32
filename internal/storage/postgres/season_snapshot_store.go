package postgres

import (
	"context"
	"fmt"
	"time"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// SeasonSnapshotStore implements storage.SeasonSnapshotStore using PostgreSQL.
type SeasonSnapshotStore struct {
	pool *Pool
}

// NewSeasonSnapshotStore creates a new SeasonSnapshotStore.
func NewSeasonSnapshotStore(pool *Pool) *SeasonSnapshotStore {
	return &SeasonSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SeasonSnapshotStore = (*SeasonSnapshotStore)(nil)

// Insert appends an observed status transition.
func (s *SeasonSnapshotStore) Insert(ctx context.Context, snap *domain.SeasonSnapshot) (err error) {
	if snap == nil {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_season_snapshot", time.Now(), &err)

	query := `
		INSERT INTO season_snapshots (season_id, status, tx_hash, observed_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = s.pool.Exec(ctx, query,
		int64(snap.SeasonID), int16(snap.Status), snap.TxHash, snap.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert season snapshot: %w", err)
	}
	return nil
}

// GetBySeason retrieves all snapshots for a season, ordered by observed_at ASC.
func (s *SeasonSnapshotStore) GetBySeason(ctx context.Context, seasonID uint64) (_ []*domain.SeasonSnapshot, err error) {
	defer observeQuery("get_season_snapshots", time.Now(), &err)

	query := `
		SELECT season_id, status, tx_hash, observed_at
		FROM season_snapshots
		WHERE season_id = $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(seasonID))
	if err != nil {
		return nil, fmt.Errorf("get season snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.SeasonSnapshot
	for rows.Next() {
		var (
			snap     domain.SeasonSnapshot
			seasonID int64
			status   int16
		)
		if err := rows.Scan(&seasonID, &status, &snap.TxHash, &snap.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan season snapshot row: %w", err)
		}
		snap.SeasonID = uint64(seasonID)
		snap.Status = domain.SeasonStatus(status)
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate season snapshot rows: %w", err)
	}
	return snaps, nil
}
