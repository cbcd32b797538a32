package ledger

import (
	"errors"
	"fmt"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// ErrConfirmationTimeout is returned when a bounded confirmation wait
// elapses. The transaction outcome is unknown, not negative: it may
// still confirm later, and callers must re-check rather than assume
// reversal.
var ErrConfirmationTimeout = errors.New("confirmation wait timed out: transaction outcome unknown")

// ErrReceiptNotFound is returned when a receipt is requested for a
// transaction the node does not know about.
var ErrReceiptNotFound = errors.New("transaction receipt not available")

// RevertError carries the raw revert payload from a failed call or
// simulation. The revert package decodes it against a contract ABI.
type RevertError struct {
	Data    ethtypes.HexBytes0xPrefix
	Message string // short message from the node, if any
}

func (e *RevertError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("execution reverted: %s", e.Message)
	}
	return "execution reverted"
}

// RPCError is a structured JSON-RPC error from the node.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}
