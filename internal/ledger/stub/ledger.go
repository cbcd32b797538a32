// Package stub provides an in-memory ledger.Client for testing.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/ledger"
)

type readKey struct {
	addr string
	fn   string
}

// Ledger implements ledger.Client against in-memory fixtures.
// Read results are registered per (contract, function); registering a
// queue makes successive reads observe successive values, with the last
// value sticky. Every submitted transaction is recorded for assertions.
type Ledger struct {
	mu sync.Mutex

	chainID uint64

	reads    map[readKey][]map[string]interface{}
	readErrs map[readKey]error

	simulateErrs map[string]error // keyed by to-address
	submitErr    error
	submitted    []*ledger.TxConfig

	receipts map[string]*ledger.Receipt
	waitErrs map[string]error

	logs []ledger.Log
}

// NewLedger creates a new stub ledger.
func NewLedger() *Ledger {
	return &Ledger{
		chainID:      31337,
		reads:        make(map[readKey][]map[string]interface{}),
		readErrs:     make(map[readKey]error),
		simulateErrs: make(map[string]error),
		receipts:     make(map[string]*ledger.Receipt),
		waitErrs:     make(map[string]error),
	}
}

// Compile-time interface check.
var _ ledger.Client = (*Ledger)(nil)

// SetRead registers the output values for a view call.
func (l *Ledger) SetRead(to *ethtypes.Address0xHex, fn string, outputs map[string]interface{}) {
	l.SetReadQueue(to, fn, []map[string]interface{}{outputs})
}

// SetReadQueue registers successive output values for a view call.
// Reads pop from the front; the final entry keeps being returned.
func (l *Ledger) SetReadQueue(to *ethtypes.Address0xHex, fn string, queue []map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads[readKey{to.String(), fn}] = queue
}

// SetReadErr makes a view call fail.
func (l *Ledger) SetReadErr(to *ethtypes.Address0xHex, fn string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErrs[readKey{to.String(), fn}] = err
}

// SetSimulateErr makes simulations against the contract fail.
func (l *Ledger) SetSimulateErr(to *ethtypes.Address0xHex, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.simulateErrs[to.String()] = err
}

// SetSubmitErr makes all submissions fail.
func (l *Ledger) SetSubmitErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// SetReceipt registers the receipt returned when waiting on txHash.
func (l *Ledger) SetReceipt(txHash string, receipt *ledger.Receipt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receipts[txHash] = receipt
}

// SetWaitErr makes the confirmation wait for txHash fail.
func (l *Ledger) SetWaitErr(txHash string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitErrs[txHash] = err
}

// SetLogs registers the records returned by GetLogs.
func (l *Ledger) SetLogs(logs []ledger.Log) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = logs
}

// Submitted returns every transaction passed to Submit, in order.
func (l *Ledger) Submitted() []*ledger.TxConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*ledger.TxConfig, len(l.submitted))
	copy(out, l.submitted)
	return out
}

// ChainID returns the stub chain identifier.
func (l *Ledger) ChainID(_ context.Context) (uint64, error) {
	return l.chainID, nil
}

// ReadContract returns the registered outputs for the call, round-
// tripped through the real ABI encoding so callers decode exactly what
// a node would return.
func (l *Ledger) ReadContract(ctx context.Context, to *ethtypes.Address0xHex, fn *abi.Entry, _ ...interface{}) (*abi.ComponentValue, error) {
	l.mu.Lock()
	key := readKey{to.String(), fn.Name}
	if err, ok := l.readErrs[key]; ok {
		l.mu.Unlock()
		return nil, err
	}
	queue, ok := l.reads[key]
	if !ok || len(queue) == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("stub: no read registered for %s.%s", to, fn.Name)
	}
	outputs := queue[0]
	if len(queue) > 1 {
		l.reads[key] = queue[1:]
	}
	l.mu.Unlock()

	data, err := fn.Outputs.EncodeABIDataValues(outputs)
	if err != nil {
		return nil, fmt.Errorf("stub: encode %s outputs: %w", fn.Name, err)
	}
	return fn.Outputs.DecodeABIDataCtx(ctx, data, 0)
}

// Simulate returns the registered simulation error, if any.
func (l *Ledger) Simulate(_ context.Context, tx *ledger.TxConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tx.To != nil {
		if err, ok := l.simulateErrs[tx.To.String()]; ok {
			return err
		}
	}
	return nil
}

// Submit records the transaction and returns a deterministic hash.
func (l *Ledger) Submit(_ context.Context, tx *ledger.TxConfig) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.submitErr != nil {
		return "", l.submitErr
	}
	l.submitted = append(l.submitted, tx)
	return fmt.Sprintf("0xstub%064d", len(l.submitted)), nil
}

// WaitForConfirmation returns the registered receipt or error for the
// hash; unregistered hashes confirm successfully.
func (l *Ledger) WaitForConfirmation(_ context.Context, txHash string, _ int) (*ledger.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.waitErrs[txHash]; ok {
		return nil, err
	}
	if receipt, ok := l.receipts[txHash]; ok {
		return receipt, nil
	}
	return &ledger.Receipt{TxHash: txHash, BlockNumber: 1, Success: true}, nil
}

// GetLogs returns the registered log records.
func (l *Ledger) GetLogs(_ context.Context, _ *ethtypes.Address0xHex, _ *abi.Entry, _, _ uint64) ([]ledger.Log, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Log, len(l.logs))
	copy(out, l.logs)
	return out, nil
}
