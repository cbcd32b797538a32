package domain

import "math/big"

// CurveConfig is the bonding curve state read from the ledger.
// It is mutated exclusively by ledger-side trade execution and is
// read-only from the orchestrator's perspective.
type CurveConfig struct {
	TotalSupply    *big.Int
	ReserveBalance *big.Int // wei held against sells
	CurrentStep    uint64
	BuyFeeBps      uint64
	SellFeeBps     uint64
	TradingLocked  bool
	Initialized    bool
}
