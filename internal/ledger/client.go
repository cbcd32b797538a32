// Package ledger provides read and write access to the replicated
// transaction ledger over JSON-RPC 2.0.
package ledger

import (
	"context"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// Reader is the read-only subset of the ledger interface. Pricing and
// validation only need view calls.
type Reader interface {
	// ReadContract executes a view call against fn on the contract at to,
	// returning the decoded output values.
	ReadContract(ctx context.Context, to *ethtypes.Address0xHex, fn *abi.Entry, args ...interface{}) (*abi.ComponentValue, error)
}

// Client is the full read/write ledger interface.
type Client interface {
	Reader

	// ChainID returns the ledger's chain identifier.
	ChainID(ctx context.Context) (uint64, error)

	// Simulate dry-runs tx without submitting it. A nil return means the
	// node predicts success; a *RevertError carries the predicted revert.
	Simulate(ctx context.Context, tx *TxConfig) error

	// Submit sends tx to the ledger and returns its transaction hash.
	// Submission does not imply confirmation.
	Submit(ctx context.Context, tx *TxConfig) (string, error)

	// WaitForConfirmation blocks until txHash has the requested number of
	// confirmations, the context is cancelled, or the client's bounded
	// wait elapses (ErrConfirmationTimeout).
	WaitForConfirmation(ctx context.Context, txHash string, confirmations int) (*Receipt, error)

	// GetLogs returns event records for the given contract and event
	// signature over [fromBlock, toBlock].
	GetLogs(ctx context.Context, address *ethtypes.Address0xHex, event *abi.Entry, fromBlock, toBlock uint64) ([]Log, error)
}
