package validation

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/ledger/stub"
)

var (
	testToken = ethtypes.MustNewAddress("0x2222222222222222222222222222222222222222")
	testCurve = ethtypes.MustNewAddress("0x1111111111111111111111111111111111111111")
)

type denyGate struct{}

func (denyGate) Allowed(context.Context, *ethtypes.Address0xHex) (bool, error) {
	return false, nil
}

func newTestSession(l *stub.Ledger) *ledger.Session {
	return &ledger.Session{
		Account: ethtypes.MustNewAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		ChainID: 31337,
		Client:  l,
	}
}

// activeSeason is active both by status and by wall clock at testNow.
var testNow = time.Unix(1_700_000_000, 0)

func activeSeason() *domain.Season {
	return &domain.Season{
		ID:           7,
		StartTime:    testNow.Unix() - 3600,
		EndTime:      testNow.Unix() + 3600,
		Status:       domain.StatusActive,
		CurveAddress: testCurve,
	}
}

func openCurve() *domain.CurveConfig {
	return &domain.CurveConfig{
		TotalSupply:    big.NewInt(5000),
		ReserveBalance: big.NewInt(1_000_000),
		BuyFeeBps:      10,
		SellFeeBps:     70,
		Initialized:    true,
	}
}

func newTestValidator(gate Gate) *Validator {
	v := NewValidator(testToken, gate)
	v.now = func() time.Time { return testNow }
	return v
}

func buyRequest(cost int64) *Request {
	return &Request{
		Side:          domain.SideBuy,
		Season:        activeSeason(),
		Curve:         openCurve(),
		TicketAmount:  big.NewInt(100),
		EstimatedCost: big.NewInt(cost),
	}
}

func TestValidateBuyOK(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testToken, "balanceOf", map[string]interface{}{"balance": big.NewInt(2_000_000)})

	res, err := newTestValidator(nil).Validate(context.Background(), newTestSession(l), buyRequest(1_001_000))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.OK || res.Reason != ReasonOK {
		t.Fatalf("result = %+v, want OK", res)
	}
}

func TestValidateGateBeforeBalance(t *testing.T) {
	// No balance read is registered: if the validator touched the ledger
	// before the gate verdict, the stub would error out.
	l := stub.NewLedger()

	res, err := newTestValidator(denyGate{}).Validate(context.Background(), newTestSession(l), buyRequest(1))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.OK || res.Reason != ReasonGatingRequired {
		t.Fatalf("result = %+v, want GATING_REQUIRED", res)
	}
}

func TestValidateSeasonWindow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Season)
	}{
		{"status not active", func(s *domain.Season) { s.Status = domain.StatusEndRequested }},
		{"before start", func(s *domain.Season) { s.StartTime = testNow.Unix() + 60 }},
		{"after end", func(s *domain.Season) { s.EndTime = testNow.Unix() - 60 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := buyRequest(1)
			tt.mutate(req.Season)

			res, err := newTestValidator(nil).Validate(context.Background(), newTestSession(stub.NewLedger()), req)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if res.Reason != ReasonSeasonNotActive {
				t.Fatalf("reason = %s, want SEASON_NOT_ACTIVE", res.Reason)
			}
		})
	}
}

func TestValidateTradingLocked(t *testing.T) {
	req := buyRequest(1)
	req.Curve.TradingLocked = true

	res, err := newTestValidator(nil).Validate(context.Background(), newTestSession(stub.NewLedger()), req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Reason != ReasonTradingLocked {
		t.Fatalf("reason = %s, want TRADING_LOCKED", res.Reason)
	}
}

func TestValidateBuyBalances(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		cost    int64
		want    Reason
	}{
		{"zero balance", 0, 1, ReasonZeroBalance},
		{"short of cost", 500, 1_001_000, ReasonInsufficientBalance},
		{"exact cover", 1_001_000, 1_001_000, ReasonOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := stub.NewLedger()
			l.SetRead(testToken, "balanceOf", map[string]interface{}{"balance": big.NewInt(tt.balance)})

			res, err := newTestValidator(nil).Validate(context.Background(), newTestSession(l), buyRequest(tt.cost))
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if res.Reason != tt.want {
				t.Fatalf("reason = %s, want %s", res.Reason, tt.want)
			}
		})
	}
}

func TestValidateSellUsesTicketPosition(t *testing.T) {
	l := stub.NewLedger()
	l.SetRead(testCurve, "balanceOf", map[string]interface{}{"balance": big.NewInt(40)})

	req := &Request{
		Side:         domain.SideSell,
		Season:       activeSeason(),
		Curve:        openCurve(),
		TicketAmount: big.NewInt(100),
	}

	res, err := newTestValidator(nil).Validate(context.Background(), newTestSession(l), req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Reason != ReasonInsufficientBalance {
		t.Fatalf("reason = %s, want INSUFFICIENT_BALANCE", res.Reason)
	}

	req.TicketAmount = big.NewInt(40)
	res, err = newTestValidator(nil).Validate(context.Background(), newTestSession(l), req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.OK {
		t.Fatalf("result = %+v, want OK", res)
	}
}

func TestValidateBalanceReadFailure(t *testing.T) {
	l := stub.NewLedger()
	l.SetReadErr(testToken, "balanceOf", errors.New("rpc: connection refused"))

	_, err := newTestValidator(nil).Validate(context.Background(), newTestSession(l), buyRequest(1))
	if err == nil {
		t.Fatal("want error when the balance read fails")
	}
}
