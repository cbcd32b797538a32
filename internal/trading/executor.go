// Package trading executes buy and sell trades against a season's
// bonding curve: pre-flight checks, approval, submission, confirmation
// wait, and outcome classification.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/idhash"
	"sof-orchestrator/internal/ledger"
	"sof-orchestrator/internal/observability"
	"sof-orchestrator/internal/pricing"
	"sof-orchestrator/internal/revert"
	"sof-orchestrator/internal/storage"
)

// maxAllowance is the unlimited-approval sentinel, 2^256-1.
var maxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Config tunes executor behavior.
type Config struct {
	// Token is the settlement token spent on buys.
	Token *ethtypes.Address0xHex

	// Confirmations is how many confirmations a trade waits for.
	Confirmations int

	// UnknownRefreshDelay is how long after an unknown outcome the
	// executor fires one best-effort invalidation, giving a slow
	// transaction time to land.
	UnknownRefreshDelay time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig(token *ethtypes.Address0xHex) Config {
	return Config{
		Token:               token,
		Confirmations:       1,
		UnknownRefreshDelay: 15 * time.Second,
	}
}

// BuyParams describes one requested ticket purchase.
type BuyParams struct {
	SeasonID     uint64
	Curve        *ethtypes.Address0xHex
	TicketAmount *big.Int

	// QuotedCost is the fee-adjusted cost the caller was quoted.
	QuotedCost *big.Int

	// SlippagePct widens QuotedCost into the spend cap, in percent.
	SlippagePct float64
}

// SellParams describes one requested ticket sale.
type SellParams struct {
	SeasonID     uint64
	Curve        *ethtypes.Address0xHex
	TicketAmount *big.Int

	// QuotedPayout is the fee-adjusted payout the caller was quoted.
	QuotedPayout *big.Int

	// SlippagePct narrows QuotedPayout into the payout floor, in percent.
	SlippagePct float64
}

// Executor runs trades strictly sequentially within one invocation.
// Every result it returns is immutable and already persisted
// (best-effort) and notified.
type Executor struct {
	cfg         Config
	log         logrus.FieldLogger
	notifier    domain.Notifier
	invalidator domain.Invalidator
	results     storage.TradeResultStore // nil disables persistence
	now         func() time.Time
}

// NewExecutor creates an executor. notifier, invalidator and results
// may be nil; nil sinks are replaced with no-ops.
func NewExecutor(cfg Config, log logrus.FieldLogger, notifier domain.Notifier, invalidator domain.Invalidator, results storage.TradeResultStore) *Executor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	if invalidator == nil {
		invalidator = domain.NopInvalidator{}
	}
	if cfg.Confirmations <= 0 {
		cfg.Confirmations = 1
	}
	if cfg.UnknownRefreshDelay <= 0 {
		cfg.UnknownRefreshDelay = 15 * time.Second
	}
	return &Executor{
		cfg:         cfg,
		log:         log,
		notifier:    notifier,
		invalidator: invalidator,
		results:     results,
		now:         time.Now,
	}
}

// ExecuteBuy purchases tickets: top up the settlement token allowance
// when it does not cover the spend cap, simulate, submit the buy with a
// slippage cap, wait, and classify the outcome. It never returns a raw
// ledger error; every failure mode is folded into the TradeResult.
func (e *Executor) ExecuteBuy(ctx context.Context, session *ledger.Session, p *BuyParams) *domain.TradeResult {
	start := e.now()
	result := e.newResult(session, domain.SideBuy, p.SeasonID, p.TicketAmount, start)
	log := e.log.WithFields(logrus.Fields{
		"intent_id": result.IntentID,
		"season_id": p.SeasonID,
		"side":      domain.SideBuy,
	})

	spendCap := pricing.ApplyMaxSlippage(p.QuotedCost, p.SlippagePct)

	buyData, err := contracts.CurveBuyTokens.EncodeCallDataValues([]interface{}{p.TicketAmount, spendCap})
	if err != nil {
		return e.finishRejected(ctx, result, start, fmt.Sprintf("encode buy call: %v", err))
	}
	buyTx := &ledger.TxConfig{From: session.Account, To: p.Curve, Data: buyData}

	// The allowance must cover the spend cap before the buy can even be
	// simulated: eth_call enforces the same transfer checks as execution,
	// so a fresh account's buy reverts until the approval lands.
	if allowance := e.readAllowance(ctx, session, p.Curve); allowance == nil || allowance.Cmp(spendCap) < 0 {
		// Unlimited approval, so subsequent buys skip straight to the trade.
		approveData, err := contracts.ERC20Approve.EncodeCallDataValues([]interface{}{p.Curve.String(), maxAllowance})
		if err != nil {
			return e.finishRejected(ctx, result, start, fmt.Sprintf("encode approve call: %v", err))
		}
		approveTx := &ledger.TxConfig{From: session.Account, To: e.cfg.Token, Data: approveData}

		approveHash, err := session.Client.Submit(ctx, approveTx)
		if err != nil {
			return e.finishRejected(ctx, result, start, revert.Classify(err, contracts.CurveErrors))
		}
		log.WithField("tx_hash", approveHash).Debug("approval submitted")

		receipt, err := session.Client.WaitForConfirmation(ctx, approveHash, e.cfg.Confirmations)
		if err != nil {
			return e.finishUnknown(ctx, result, start, approveHash, p.SeasonID, session, err)
		}
		if !receipt.Success {
			reason := e.classifyReceipt(receipt, contracts.CurveErrors)
			return e.finishReverted(ctx, result, start, approveHash, reason)
		}
	}

	// Pre-flight simulation, after the allowance is in place. A predicted
	// revert stops the trade before any gas is spent on the buy itself.
	if err := session.Client.Simulate(ctx, buyTx); err != nil {
		reason := revert.Classify(err, contracts.CurveErrors)
		log.WithError(err).Info("buy simulation rejected")
		return e.finishRejected(ctx, result, start, reason)
	}

	observability.RecordTradeSubmitted(string(domain.SideBuy))
	buyHash, err := session.Client.Submit(ctx, buyTx)
	if err != nil {
		return e.finishRejected(ctx, result, start, revert.Classify(err, contracts.CurveErrors))
	}
	log.WithField("tx_hash", buyHash).Info("buy submitted")

	receipt, err := session.Client.WaitForConfirmation(ctx, buyHash, e.cfg.Confirmations)
	if err != nil {
		return e.finishUnknown(ctx, result, start, buyHash, p.SeasonID, session, err)
	}
	if !receipt.Success {
		reason := e.classifyReceipt(receipt, contracts.CurveErrors)
		return e.finishReverted(ctx, result, start, buyHash, reason)
	}

	return e.finishConfirmed(ctx, result, start, buyHash, p.SeasonID, session,
		fmt.Sprintf("Bought %s tickets", p.TicketAmount))
}

// ExecuteSell sells tickets: a local reserve check, simulation, then
// submission with a payout floor. The reserve check rejects without
// submitting anything when the curve cannot cover the payout.
func (e *Executor) ExecuteSell(ctx context.Context, session *ledger.Session, p *SellParams) *domain.TradeResult {
	start := e.now()
	result := e.newResult(session, domain.SideSell, p.SeasonID, p.TicketAmount, start)
	log := e.log.WithFields(logrus.Fields{
		"intent_id": result.IntentID,
		"season_id": p.SeasonID,
		"side":      domain.SideSell,
	})

	payoutFloor := pricing.ApplyMinSlippage(p.QuotedPayout, p.SlippagePct)

	cfg, err := e.readCurveConfig(ctx, session, p.Curve)
	if err != nil {
		return e.finishRejected(ctx, result, start, fmt.Sprintf("read curve reserves: %v", err))
	}
	if cfg.ReserveBalance.Cmp(p.QuotedPayout) < 0 {
		log.WithFields(logrus.Fields{
			"reserves": cfg.ReserveBalance,
			"payout":   p.QuotedPayout,
		}).Info("sell rejected by reserve check")
		return e.finishRejected(ctx, result, start,
			fmt.Sprintf("curve reserves %s below estimated payout %s", cfg.ReserveBalance, p.QuotedPayout))
	}

	sellData, err := contracts.CurveSellTokens.EncodeCallDataValues([]interface{}{p.TicketAmount, payoutFloor})
	if err != nil {
		return e.finishRejected(ctx, result, start, fmt.Sprintf("encode sell call: %v", err))
	}
	sellTx := &ledger.TxConfig{From: session.Account, To: p.Curve, Data: sellData}

	if err := session.Client.Simulate(ctx, sellTx); err != nil {
		reason := revert.Classify(err, contracts.CurveErrors)
		log.WithError(err).Info("sell simulation rejected")
		return e.finishRejected(ctx, result, start, reason)
	}

	observability.RecordTradeSubmitted(string(domain.SideSell))
	sellHash, err := session.Client.Submit(ctx, sellTx)
	if err != nil {
		return e.finishRejected(ctx, result, start, revert.Classify(err, contracts.CurveErrors))
	}
	log.WithField("tx_hash", sellHash).Info("sell submitted")

	receipt, err := session.Client.WaitForConfirmation(ctx, sellHash, e.cfg.Confirmations)
	if err != nil {
		return e.finishUnknown(ctx, result, start, sellHash, p.SeasonID, session, err)
	}
	if !receipt.Success {
		reason := e.classifyReceipt(receipt, contracts.CurveErrors)
		return e.finishReverted(ctx, result, start, sellHash, reason)
	}

	return e.finishConfirmed(ctx, result, start, sellHash, p.SeasonID, session,
		fmt.Sprintf("Sold %s tickets", p.TicketAmount))
}

func (e *Executor) newResult(session *ledger.Session, side domain.TradeSide, seasonID uint64, amount *big.Int, start time.Time) *domain.TradeResult {
	return &domain.TradeResult{
		IntentID: idhash.ComputeIntentID(
			session.Account.String(), session.ChainID, seasonID,
			string(side), amount.String(), start.UnixMilli(),
		),
		SeasonID:     seasonID,
		Side:         side,
		TicketAmount: new(big.Int).Set(amount),
		CreatedAt:    start.UnixMilli(),
	}
}

// readAllowance returns the settlement token allowance granted to
// spender. A failed read returns nil, which callers treat as
// insufficient; re-approving is idempotent.
func (e *Executor) readAllowance(ctx context.Context, session *ledger.Session, spender *ethtypes.Address0xHex) *big.Int {
	cv, err := session.Client.ReadContract(ctx, e.cfg.Token, contracts.ERC20Allowance, session.Account.String(), spender.String())
	if err != nil {
		e.log.WithError(err).Debug("allowance read failed, approving")
		return nil
	}
	if len(cv.Children) != 1 {
		return nil
	}
	remaining, ok := cv.Children[0].Value.(*big.Int)
	if !ok {
		return nil
	}
	return remaining
}

func (e *Executor) readCurveConfig(ctx context.Context, session *ledger.Session, curve *ethtypes.Address0xHex) (*domain.CurveConfig, error) {
	cv, err := session.Client.ReadContract(ctx, curve, contracts.CurveConfigFn)
	if err != nil {
		return nil, err
	}
	return contracts.CurveConfigFromValue(cv)
}

// classifyReceipt decodes a mined-but-failed receipt into a reason.
func (e *Executor) classifyReceipt(receipt *ledger.Receipt, contractErrors abi.ABI) string {
	return revert.Classify(&ledger.RevertError{Data: receipt.RevertReason}, contractErrors)
}

func (e *Executor) finishRejected(ctx context.Context, r *domain.TradeResult, start time.Time, reason string) *domain.TradeResult {
	r.Outcome = domain.OutcomeRejected
	r.ErrorReason = reason
	observability.RecordTradeRejected(string(r.Side), "preflight")
	e.notify(domain.NotifyError, reason, "")
	return e.finish(ctx, r, start)
}

func (e *Executor) finishReverted(ctx context.Context, r *domain.TradeResult, start time.Time, txHash, reason string) *domain.TradeResult {
	r.Outcome = domain.OutcomeReverted
	r.TxHash = txHash
	r.ErrorReason = reason
	e.notify(domain.NotifyError, reason, txHash)
	return e.finish(ctx, r, start)
}

// finishUnknown handles confirmation-wait failures. The transaction may
// still land, so the outcome is unknown, not negative, and a delayed
// invalidation gives a late confirmation a chance to surface.
func (e *Executor) finishUnknown(ctx context.Context, r *domain.TradeResult, start time.Time, txHash string, seasonID uint64, session *ledger.Session, waitErr error) *domain.TradeResult {
	r.Outcome = domain.OutcomeUnknown
	r.TxHash = txHash
	if errors.Is(waitErr, ledger.ErrConfirmationTimeout) {
		r.ErrorReason = "confirmation wait timed out; transaction outcome unknown"
	} else {
		r.ErrorReason = fmt.Sprintf("confirmation wait failed: %v", waitErr)
	}
	e.notify(domain.NotifyError, r.ErrorReason, txHash)
	e.scheduleRefresh(ctx, invalidationKeys(seasonID, session)...)
	return e.finish(ctx, r, start)
}

func (e *Executor) finishConfirmed(ctx context.Context, r *domain.TradeResult, start time.Time, txHash string, seasonID uint64, session *ledger.Session, message string) *domain.TradeResult {
	r.Outcome = domain.OutcomeConfirmed
	r.Success = true
	r.TxHash = txHash
	e.notify(domain.NotifySuccess, message, txHash)
	e.invalidator.Invalidate(invalidationKeys(seasonID, session)...)
	return e.finish(ctx, r, start)
}

func (e *Executor) finish(ctx context.Context, r *domain.TradeResult, start time.Time) *domain.TradeResult {
	observability.RecordTradeOutcome(string(r.Side), string(r.Outcome), e.now().Sub(start).Seconds())
	if e.results != nil {
		// Persistence is an audit concern; its failure never fails the trade.
		if err := e.results.Insert(ctx, r); err != nil {
			e.log.WithError(err).WithField("intent_id", r.IntentID).Warn("persist trade result")
		}
	}
	return r
}

func (e *Executor) notify(kind domain.NotificationType, message, txHash string) {
	e.notifier.Notify(domain.Notification{
		ID:      uuid.NewString(),
		Type:    kind,
		Message: message,
		TxHash:  txHash,
	})
}

// scheduleRefresh fires one invalidation after the configured delay,
// unless the context ends first.
func (e *Executor) scheduleRefresh(ctx context.Context, keys ...string) {
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.UnknownRefreshDelay):
			e.invalidator.Invalidate(keys...)
		}
	}()
}

// invalidationKeys names the cached reads a completed trade dirties.
// The keys are opaque to this package; the caller owns the cache.
func invalidationKeys(seasonID uint64, session *ledger.Session) []string {
	return []string{
		fmt.Sprintf("season:%d:curve", seasonID),
		fmt.Sprintf("season:%d:position:%s", seasonID, session.Account),
		fmt.Sprintf("account:%s:balance", session.Account),
	}
}
