// Package pricing computes fee-adjusted buy and sell quotes against a
// season's bonding curve. Quotes are recomputed from ledger state on
// every call; nothing is cached.
package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/sirupsen/logrus"

	"sof-orchestrator/internal/contracts"
	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/ledger"
)

// Estimator produces trade quotes. A failed curve read degrades to the
// zero quote instead of an error, so callers can disable the trade
// action and keep rendering.
type Estimator struct {
	log logrus.FieldLogger
}

// NewEstimator creates an estimator. A nil logger falls back to the
// standard logrus logger.
func NewEstimator(log logrus.FieldLogger) *Estimator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Estimator{log: log}
}

// QuoteBuy returns the cost of buying qty tickets: the curve's base
// price plus the buy fee. On read failure the zero quote is returned
// and the failure is logged, not raised.
func (e *Estimator) QuoteBuy(ctx context.Context, session *ledger.Session, curve *ethtypes.Address0xHex, qty *big.Int) *domain.TradeQuote {
	base, cfg, err := e.readQuoteInputs(ctx, session, curve, contracts.CurveCalculateBuyPrice, qty)
	if err != nil {
		e.log.WithError(err).WithField("curve", curve).Warn("buy quote degraded to zero")
		return domain.ZeroQuote(domain.SideBuy)
	}
	return &domain.TradeQuote{
		Side:           domain.SideBuy,
		BaseAmount:     base,
		AdjustedAmount: addFee(base, cfg.BuyFeeBps),
	}
}

// QuoteSell returns the payout for selling qty tickets: the curve's
// base price minus the sell fee. Degrades the same way as QuoteBuy.
func (e *Estimator) QuoteSell(ctx context.Context, session *ledger.Session, curve *ethtypes.Address0xHex, qty *big.Int) *domain.TradeQuote {
	base, cfg, err := e.readQuoteInputs(ctx, session, curve, contracts.CurveCalculateSellPrice, qty)
	if err != nil {
		e.log.WithError(err).WithField("curve", curve).Warn("sell quote degraded to zero")
		return domain.ZeroQuote(domain.SideSell)
	}
	return &domain.TradeQuote{
		Side:           domain.SideSell,
		BaseAmount:     base,
		AdjustedAmount: subFee(base, cfg.SellFeeBps),
	}
}

// readQuoteInputs reads the base price and the fee configuration.
func (e *Estimator) readQuoteInputs(ctx context.Context, session *ledger.Session, curve *ethtypes.Address0xHex, priceFn *abi.Entry, qty *big.Int) (*big.Int, *domain.CurveConfig, error) {
	priceVal, err := session.Client.ReadContract(ctx, curve, priceFn, qty)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", priceFn.Name, err)
	}
	base, err := contracts.SingleBigInt(priceVal)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", priceFn.Name, err)
	}

	cfgVal, err := session.Client.ReadContract(ctx, curve, contracts.CurveConfigFn)
	if err != nil {
		return nil, nil, fmt.Errorf("read curveConfig: %w", err)
	}
	cfg, err := contracts.CurveConfigFromValue(cfgVal)
	if err != nil {
		return nil, nil, fmt.Errorf("decode curveConfig: %w", err)
	}
	return base, cfg, nil
}

// addFee returns base plus floor(base*feeBps/10000).
func addFee(base *big.Int, feeBps uint64) *big.Int {
	fee := new(big.Int).Mul(base, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, bpsDenominator)
	return fee.Add(base, fee)
}

// subFee returns base minus floor(base*feeBps/10000).
func subFee(base *big.Int, feeBps uint64) *big.Int {
	fee := new(big.Int).Mul(base, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, bpsDenominator)
	return new(big.Int).Sub(base, fee)
}
