package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/ledger/stub"
	"sof-orchestrator/internal/storage/memory"
)

var (
	testRaffle      = ethtypes.MustNewAddress("0x3333333333333333333333333333333333333333")
	testDistributor = ethtypes.MustNewAddress("0x4444444444444444444444444444444444444444")
	testCurveAddr   = ethtypes.MustNewAddress("0x1111111111111111111111111111111111111111")
)

const (
	zeroAddr     = "0x0000000000000000000000000000000000000000"
	testRoleHash = "0x8b4f2c6e1a9d3f5b7c0e2a4d6f8b1c3e5a7d9f0b2c4e6a8d0f1b3c5e7a9d1f3b"
)

func newTestSession(l *stub.Ledger) *ledger.Session {
	return &ledger.Session{
		Account: ethtypes.MustNewAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		ChainID: 31337,
		Client:  l,
	}
}

type recordSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *recordSink) sink(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *recordSink) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func newTestOrchestrator(sink StatusSink, snapshots *memory.SeasonSnapshotStore) *Orchestrator {
	cfg := DefaultConfig(testRaffle)
	cfg.VRFPollInterval = 2 * time.Millisecond
	if snapshots == nil {
		return NewOrchestrator(cfg, nil, sink, nil)
	}
	return NewOrchestrator(cfg, nil, sink, snapshots)
}

func seasonOutputs(status domain.SeasonStatus, distributor string) map[string]interface{} {
	return map[string]interface{}{
		"status":           big.NewInt(int64(status)),
		"startTime":        big.NewInt(1_700_000_000),
		"endTime":          big.NewInt(1_700_100_000),
		"totalTickets":     big.NewInt(5000),
		"totalPrizePool":   big.NewInt(900_000),
		"bondingCurve":     testCurveAddr.String(),
		"prizeDistributor": distributor,
	}
}

func distributorOutputs(funded bool) map[string]interface{} {
	return map[string]interface{}{
		"token":             testCurveAddr.String(),
		"grandWinner":       zeroAddr,
		"grandAmount":       big.NewInt(0),
		"consolationAmount": big.NewInt(0),
		"funded":            funded,
		"claimed":           false,
	}
}

// grantRole satisfies the funding prerequisites on the stub.
func grantRole(l *stub.Ledger) {
	l.SetRead(testDistributor, "RAFFLE_ROLE", map[string]interface{}{"role": testRoleHash})
	l.SetRead(testDistributor, "hasRole", map[string]interface{}{"granted": true})
}

func raffleErrorEntry(t *testing.T, name string) *abi.Entry {
	t.Helper()
	for _, entry := range contracts.RaffleErrors {
		if entry.Name == name {
			return entry
		}
	}
	t.Fatalf("no raffle error named %s", name)
	return nil
}

func TestResolveAlreadyCompleted(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusCompleted, testDistributor.String()))

	sink := &recordSink{}
	o := newTestOrchestrator(sink.sink, nil)

	result, err := o.Resolve(context.Background(), newTestSession(l), 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.AlreadyCompleted {
		t.Error("AlreadyCompleted not set for a completed season")
	}
	if result.FinalStatus != domain.StatusCompleted {
		t.Errorf("final status = %s", result.FinalStatus)
	}
	if len(l.Submitted()) != 0 {
		t.Errorf("submitted %d transactions, want none", len(l.Submitted()))
	}
	if !sink.contains("nothing to do") {
		t.Error("no-op run did not report through the sink")
	}
}

func TestResolveFullRun(t *testing.T) {
	l := stub.NewLedger()
	l.SetReadQueue(testRaffle, "getSeasonDetails", []map[string]interface{}{
		seasonOutputs(domain.StatusActive, testDistributor.String()),
		seasonOutputs(domain.StatusVRFPending, testDistributor.String()),
		seasonOutputs(domain.StatusDistributing, testDistributor.String()),
		seasonOutputs(domain.StatusCompleted, testDistributor.String()),
	})
	grantRole(l)
	l.SetRead(testRaffle, "vrfRequestForSeason", map[string]interface{}{"requestId": big.NewInt(42)})
	l.SetReadQueue(testRaffle, "isRequestFulfilled", []map[string]interface{}{
		{"fulfilled": false},
		{"fulfilled": true},
	})
	l.SetRead(testDistributor, "getSeason", distributorOutputs(false))

	sink := &recordSink{}
	snapshots := memory.NewSeasonSnapshotStore()
	o := newTestOrchestrator(sink.sink, snapshots)

	result, err := o.Resolve(context.Background(), newTestSession(l), 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.FinalStatus != domain.StatusCompleted {
		t.Errorf("final status = %s, want Completed", result.FinalStatus)
	}
	if result.AlreadyCompleted {
		t.Error("AlreadyCompleted set on a run that performed writes")
	}

	// requestSeasonEnd, extractPrizePool, fundDistributor, in that order.
	submitted := l.Submitted()
	if len(submitted) != 3 {
		t.Fatalf("submitted %d transactions, want 3", len(submitted))
	}
	for i, tx := range submitted {
		if tx.To.String() != testRaffle.String() {
			t.Errorf("tx %d to %s, want raffle manager", i, tx.To)
		}
	}
	if len(result.TxHashes) != 3 {
		t.Errorf("result records %d tx hashes, want 3", len(result.TxHashes))
	}

	if !sink.contains("randomness fulfilled") {
		t.Error("fulfillment milestone not reported")
	}

	// Every observed status transition leaves an audit record.
	stored, err := snapshots.GetBySeason(context.Background(), 3)
	if err != nil {
		t.Fatalf("read snapshots: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("recorded %d snapshots, want 4", len(stored))
	}
	want := []domain.SeasonStatus{
		domain.StatusActive,
		domain.StatusVRFPending,
		domain.StatusDistributing,
		domain.StatusCompleted,
	}
	for i, snap := range stored {
		if snap.Status != want[i] {
			t.Errorf("snapshot %d status = %s, want %s", i, snap.Status, want[i])
		}
	}
}

func TestResolveMissingDistributor(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusActive, zeroAddr))

	o := newTestOrchestrator(nil, nil)
	_, err := o.Resolve(context.Background(), newTestSession(l), 3)

	if !errors.Is(err, ErrPrerequisite) {
		t.Fatalf("err = %v, want ErrPrerequisite", err)
	}
	if len(l.Submitted()) != 0 {
		t.Error("prerequisite failure must not submit transactions")
	}
}

func TestResolveRoleNotGranted(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusActive, testDistributor.String()))
	l.SetRead(testDistributor, "RAFFLE_ROLE", map[string]interface{}{"role": testRoleHash})
	l.SetRead(testDistributor, "hasRole", map[string]interface{}{"granted": false})

	o := newTestOrchestrator(nil, nil)
	_, err := o.Resolve(context.Background(), newTestSession(l), 3)

	if !errors.Is(err, ErrPrerequisite) {
		t.Fatalf("err = %v, want ErrPrerequisite", err)
	}
	if len(l.Submitted()) != 0 {
		t.Error("prerequisite failure must not submit transactions")
	}
}

func TestResolveAlreadyFunded(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusDistributing, testDistributor.String()))
	l.SetRead(testDistributor, "getSeason", distributorOutputs(true))

	sink := &recordSink{}
	o := newTestOrchestrator(sink.sink, nil)

	result, err := o.Resolve(context.Background(), newTestSession(l), 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(l.Submitted()) != 0 {
		t.Error("already-funded season must not be funded again")
	}
	if result.FinalStatus != domain.StatusDistributing {
		t.Errorf("final status = %s", result.FinalStatus)
	}
	if !sink.contains("already funded") {
		t.Error("funding guard not reported through the sink")
	}
}

func TestResolveVRFPending(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusVRFPending, testDistributor.String()))
	l.SetRead(testRaffle, "vrfRequestForSeason", map[string]interface{}{"requestId": big.NewInt(42)})
	l.SetRead(testRaffle, "isRequestFulfilled", map[string]interface{}{"fulfilled": false})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	o := newTestOrchestrator(nil, nil)
	result, err := o.Resolve(ctx, newTestSession(l), 3)

	if !errors.Is(err, ErrVRFPending) {
		t.Fatalf("err = %v, want ErrVRFPending", err)
	}
	if len(l.Submitted()) != 0 {
		t.Error("pending randomness must not trigger writes")
	}
	if result.Checkpoint == nil || result.Checkpoint.VRFRequestID == nil {
		t.Fatal("checkpoint missing the VRF request id")
	}
	if result.Checkpoint.VRFRequestID.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("vrf request id = %s, want 42", result.Checkpoint.VRFRequestID)
	}
}

func TestResolveNotStarted(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusNotStarted, testDistributor.String()))

	o := newTestOrchestrator(nil, nil)
	_, err := o.Resolve(context.Background(), newTestSession(l), 3)

	if !errors.Is(err, ErrNotResolvable) {
		t.Fatalf("err = %v, want ErrNotResolvable", err)
	}
}

func TestResolveStepReverted(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testRaffle, "getSeasonDetails", seasonOutputs(domain.StatusActive, testDistributor.String()))
	grantRole(l)

	// The end request mines but reverts on chain.
	payload, err := raffleErrorEntry(t, "InvalidSeasonStatus").EncodeCallDataValues([]interface{}{big.NewInt(4)})
	if err != nil {
		t.Fatalf("encode revert payload: %v", err)
	}
	endTxHash := fmt.Sprintf("0xstub%064d", 1)
	l.SetReceipt(endTxHash, &ledger.Receipt{
		TxHash:       endTxHash,
		BlockNumber:  1,
		Success:      false,
		RevertReason: payload,
	})

	o := newTestOrchestrator(nil, nil)
	_, err = o.Resolve(context.Background(), newTestSession(l), 3)

	if err == nil || !strings.Contains(err.Error(), "InvalidSeasonStatus") {
		t.Fatalf("err = %v, want classified InvalidSeasonStatus revert", err)
	}
	// The failed step stops the run; no further writes follow.
	if len(l.Submitted()) != 1 {
		t.Errorf("submitted %d transactions, want 1", len(l.Submitted()))
	}
}
