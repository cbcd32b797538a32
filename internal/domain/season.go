package domain

import (
	"fmt"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// SeasonStatus is the on-chain season lifecycle state.
// Transitions only ever move forward; a status never decreases.
type SeasonStatus uint8

const (
	StatusNotStarted SeasonStatus = iota
	StatusActive
	StatusEndRequested
	StatusVRFPending
	StatusDistributing
	StatusCompleted
)

var seasonStatusNames = map[SeasonStatus]string{
	StatusNotStarted:   "NotStarted",
	StatusActive:       "Active",
	StatusEndRequested: "EndRequested",
	StatusVRFPending:   "VRFPending",
	StatusDistributing: "Distributing",
	StatusCompleted:    "Completed",
}

func (s SeasonStatus) String() string {
	if name, ok := seasonStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// Valid reports whether the status is one of the known lifecycle states.
func (s SeasonStatus) Valid() bool {
	_, ok := seasonStatusNames[s]
	return ok
}

// Season is a bounded trading period with its own bonding curve,
// prize pool, and resolution lifecycle.
type Season struct {
	ID                 uint64
	StartTime          int64 // unix seconds
	EndTime            int64 // unix seconds
	Status             SeasonStatus
	TotalTickets       *big.Int
	TotalPrizePool     *big.Int // wei
	CurveAddress       *ethtypes.Address0xHex
	DistributorAddress *ethtypes.Address0xHex
}
