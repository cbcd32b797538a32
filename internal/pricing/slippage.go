package pricing

import (
	"math"
	"math/big"
)

var bpsDenominator = big.NewInt(10000)

// pctToBps converts a percentage tolerance (1.5 means 1.5%) to basis
// points, clamped to [0, 10000]. Callers get the documented bound back
// rather than an error for out-of-range tolerances.
func pctToBps(pct float64) int64 {
	bps := int64(math.Round(pct * 100))
	if bps < 0 {
		return 0
	}
	if bps > 10000 {
		return 10000
	}
	return bps
}

// ApplyMaxSlippage raises amount by pct percent, treating pct below 0
// as 0 and above 100 as 100. Used as the spend cap on buys; the result
// is always >= amount and never more than double it.
func ApplyMaxSlippage(amount *big.Int, pct float64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(10000+pctToBps(pct)))
	return out.Quo(out, bpsDenominator)
}

// ApplyMinSlippage lowers amount by pct percent, treating pct below 0
// as 0 and above 100 as 100. Used as the payout floor on sells; the
// result is always <= amount and never negative.
func ApplyMinSlippage(amount *big.Int, pct float64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(10000-pctToBps(pct)))
	return out.Quo(out, bpsDenominator)
}
