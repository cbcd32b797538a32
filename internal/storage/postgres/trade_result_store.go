package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

// TradeResultStore implements storage.TradeResultStore using PostgreSQL.
type TradeResultStore struct {
	pool *Pool
}

// NewTradeResultStore creates a new TradeResultStore.
func NewTradeResultStore(pool *Pool) *TradeResultStore {
	return &TradeResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeResultStore = (*TradeResultStore)(nil)

// Insert adds a new result. Returns ErrDuplicateKey if intent_id exists.
func (s *TradeResultStore) Insert(ctx context.Context, r *domain.TradeResult) (err error) {
	if r == nil || r.IntentID == "" {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_trade_result", time.Now(), &err)

	query := `
		INSERT INTO trade_results (
			intent_id, season_id, side, ticket_amount,
			success, tx_hash, error_reason, outcome, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	ticketAmount := "0"
	if r.TicketAmount != nil {
		ticketAmount = r.TicketAmount.String()
	}

	_, err = s.pool.Exec(ctx, query,
		r.IntentID, int64(r.SeasonID), string(r.Side), ticketAmount,
		r.Success, r.TxHash, r.ErrorReason, string(r.Outcome), r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade result: %w", err)
	}
	return nil
}

// GetByIntentID retrieves a result by its intent ID. Returns ErrNotFound if not exists.
func (s *TradeResultStore) GetByIntentID(ctx context.Context, intentID string) (_ *domain.TradeResult, err error) {
	defer observeQuery("get_trade_result", time.Now(), &err)

	query := `
		SELECT intent_id, season_id, side, ticket_amount,
		       success, tx_hash, error_reason, outcome, created_at
		FROM trade_results
		WHERE intent_id = $1
	`

	row := s.pool.QueryRow(ctx, query, intentID)
	r, err := scanTradeResult(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade result by intent id: %w", err)
	}
	return r, nil
}

// GetBySeason retrieves all results for a season, ordered by created_at ASC.
func (s *TradeResultStore) GetBySeason(ctx context.Context, seasonID uint64) (_ []*domain.TradeResult, err error) {
	defer observeQuery("get_trade_results_by_season", time.Now(), &err)

	query := `
		SELECT intent_id, season_id, side, ticket_amount,
		       success, tx_hash, error_reason, outcome, created_at
		FROM trade_results
		WHERE season_id = $1
		ORDER BY created_at ASC, intent_id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(seasonID))
	if err != nil {
		return nil, fmt.Errorf("get trade results by season: %w", err)
	}
	defer rows.Close()

	var results []*domain.TradeResult
	for rows.Next() {
		r, err := scanTradeResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade result rows: %w", err)
	}
	return results, nil
}

// scanTradeResult scans a single row into a TradeResult.
func scanTradeResult(row pgx.Row) (*domain.TradeResult, error) {
	var (
		r            domain.TradeResult
		seasonID     int64
		side         string
		ticketAmount string
		outcome      string
	)

	err := row.Scan(
		&r.IntentID, &seasonID, &side, &ticketAmount,
		&r.Success, &r.TxHash, &r.ErrorReason, &outcome, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, ok := new(big.Int).SetString(ticketAmount, 10)
	if !ok {
		return nil, fmt.Errorf("parse ticket_amount %q", ticketAmount)
	}

	r.SeasonID = uint64(seasonID)
	r.Side = domain.TradeSide(side)
	r.TicketAmount = amount
	r.Outcome = domain.TradeOutcome(outcome)
	return &r, nil
}
