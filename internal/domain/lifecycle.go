package domain

import "math/big"

// LifecycleCheckpoint is the orchestrator's working snapshot of a season.
// It is rebuilt at the start of every lifecycle step and never cached
// across steps, because ledger state may have changed concurrently.
type LifecycleCheckpoint struct {
	SeasonID              uint64
	Status                SeasonStatus
	VRFRequestID          *big.Int // nil until an end-request has been made
	DistributorConfigured bool
	RoleGranted           bool
}

// SeasonSnapshot records one observed season status transition.
// Snapshots give operators an audit trail of multi-minute resolutions.
type SeasonSnapshot struct {
	SeasonID   uint64
	Status     SeasonStatus
	TxHash     string // transaction that drove the transition, if any
	ObservedAt int64  // unix millis
}
