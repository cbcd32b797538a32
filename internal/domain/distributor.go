package domain

import (
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// DistributorSeasonRecord is the prize distributor's per-season record.
// It is re-read immediately before funding so a season is never funded twice.
type DistributorSeasonRecord struct {
	Token             *ethtypes.Address0xHex
	GrandWinner       *ethtypes.Address0xHex
	GrandAmount       *big.Int
	ConsolationAmount *big.Int
	Funded            bool
	Claimed           bool
}
