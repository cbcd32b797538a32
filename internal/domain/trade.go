package domain

import "math/big"

// TradeSide distinguishes buys from sells.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeQuote is the fee-adjusted pricing for a requested ticket quantity.
// Quotes are ephemeral: recomputed on every input change, never persisted.
type TradeQuote struct {
	Side TradeSide

	// BaseAmount is the pre-fee price from the bonding curve.
	BaseAmount *big.Int

	// AdjustedAmount is BaseAmount plus buy fees, or minus sell fees.
	AdjustedAmount *big.Int
}

// ZeroQuote returns the degraded quote used when the curve could not be
// read. Callers disable the trade action rather than crash.
func ZeroQuote(side TradeSide) *TradeQuote {
	return &TradeQuote{
		Side:           side,
		BaseAmount:     new(big.Int),
		AdjustedAmount: new(big.Int),
	}
}

// IsZero reports whether the quote carries no usable pricing.
func (q *TradeQuote) IsZero() bool {
	return q == nil || q.BaseAmount == nil || q.BaseAmount.Sign() == 0
}

// TradeOutcome classifies how a submitted trade concluded.
type TradeOutcome string

const (
	// OutcomeRejected means the trade was stopped locally before any
	// transaction was submitted (validation, simulation, reserve check).
	OutcomeRejected TradeOutcome = "REJECTED"

	// OutcomeConfirmed means the transaction was mined and succeeded.
	OutcomeConfirmed TradeOutcome = "CONFIRMED"

	// OutcomeReverted means the transaction was mined but the contract
	// logic reverted. Gas has been spent.
	OutcomeReverted TradeOutcome = "REVERTED"

	// OutcomeUnknown means the confirmation wait timed out. The
	// transaction may still land; eventual state is unknown, not negative.
	OutcomeUnknown TradeOutcome = "UNKNOWN"
)

// TradeResult is the uniform shape produced once per submitted trade.
// Immutable after creation.
type TradeResult struct {
	IntentID     string
	SeasonID     uint64
	Side         TradeSide
	TicketAmount *big.Int
	Success      bool
	TxHash       string
	ErrorReason  string // decoded, human-readable; empty on success
	Outcome      TradeOutcome
	CreatedAt    int64 // unix millis
}
