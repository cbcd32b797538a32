// Package validation gates trade requests before any transaction is
// built: authorization, season window, curve lock, and balance cover.
package validation

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"

	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
)

// Reason identifies why a request was rejected, or OK.
type Reason string

const (
	ReasonOK                  Reason = "OK"
	ReasonGatingRequired      Reason = "GATING_REQUIRED"
	ReasonSeasonNotActive     Reason = "SEASON_NOT_ACTIVE"
	ReasonTradingLocked       Reason = "TRADING_LOCKED"
	ReasonZeroBalance         Reason = "ZERO_BALANCE"
	ReasonInsufficientBalance Reason = "INSUFFICIENT_BALANCE"
)

// Result is the validator's verdict.
type Result struct {
	OK     bool
	Reason Reason
}

func rejected(reason Reason) Result {
	return Result{OK: false, Reason: reason}
}

// Request carries everything the validator needs to judge a trade.
// Season and Curve are the caller's freshly read ledger state.
type Request struct {
	Side         domain.TradeSide
	Season       *domain.Season
	Curve        *domain.CurveConfig
	TicketAmount *big.Int

	// EstimatedCost is the fee-adjusted cost a buy must cover.
	// Ignored for sells.
	EstimatedCost *big.Int
}

// Gate decides whether an account is authorized to trade at all. It is
// consulted before any balance read so unauthorized callers never see
// balance-shaped rejections.
type Gate interface {
	Allowed(ctx context.Context, account *ethtypes.Address0xHex) (bool, error)
}

// AllowAll is the open gate.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context, *ethtypes.Address0xHex) (bool, error) {
	return true, nil
}

// Validator applies the eligibility checks in fixed order: gate, season
// window, trading lock, balance. The first failing check wins.
type Validator struct {
	token *ethtypes.Address0xHex // settlement token funding buys
	gate  Gate
	now   func() time.Time
}

// NewValidator creates a validator. A nil gate admits everyone.
func NewValidator(token *ethtypes.Address0xHex, gate Gate) *Validator {
	if gate == nil {
		gate = AllowAll{}
	}
	return &Validator{token: token, gate: gate, now: time.Now}
}

// Validate judges req for the session's account. A non-nil error means
// a check could not be evaluated, not that the request was rejected.
func (v *Validator) Validate(ctx context.Context, session *ledger.Session, req *Request) (Result, error) {
	allowed, err := v.gate.Allowed(ctx, session.Account)
	if err != nil {
		return Result{}, fmt.Errorf("gate check: %w", err)
	}
	if !allowed {
		return rejected(ReasonGatingRequired), nil
	}

	if !v.seasonActive(req.Season) {
		return rejected(ReasonSeasonNotActive), nil
	}

	// The lock is independent of season status: an active season can
	// still have its curve frozen by the operator.
	if req.Curve != nil && req.Curve.TradingLocked {
		return rejected(ReasonTradingLocked), nil
	}

	return v.checkBalance(ctx, session, req)
}

// seasonActive requires both the on-chain status and the wall clock to
// agree; whichever is more restrictive wins.
func (v *Validator) seasonActive(season *domain.Season) bool {
	if season == nil || season.Status != domain.StatusActive {
		return false
	}
	now := v.now().Unix()
	return now >= season.StartTime && now < season.EndTime
}

func (v *Validator) checkBalance(ctx context.Context, session *ledger.Session, req *Request) (Result, error) {
	var (
		balance *big.Int
		needed  *big.Int
		err     error
	)
	switch req.Side {
	case domain.SideSell:
		// Sells are covered by the ticket position on the curve.
		balance, err = v.readBalance(ctx, session, req.Season.CurveAddress)
		needed = req.TicketAmount
	default:
		// Buys are covered by the settlement token balance.
		balance, err = v.readBalance(ctx, session, v.token)
		needed = req.EstimatedCost
	}
	if err != nil {
		return Result{}, err
	}

	if balance.Sign() == 0 {
		return rejected(ReasonZeroBalance), nil
	}
	if needed != nil && balance.Cmp(needed) < 0 {
		return rejected(ReasonInsufficientBalance), nil
	}
	return Result{OK: true, Reason: ReasonOK}, nil
}

func (v *Validator) readBalance(ctx context.Context, session *ledger.Session, contract *ethtypes.Address0xHex) (*big.Int, error) {
	cv, err := session.Client.ReadContract(ctx, contract, contracts.ERC20BalanceOf, session.Account.String())
	if err != nil {
		return nil, fmt.Errorf("read balanceOf: %w", err)
	}
	balance, err := contracts.SingleBigInt(cv)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return balance, nil
}
