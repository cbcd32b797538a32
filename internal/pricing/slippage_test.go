package pricing

import (
	"math/big"
	"testing"
)

func TestApplyMaxSlippage(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    float64
		want   int64
	}{
		{"one percent", 1_001_000, 1.0, 1_011_010},
		{"half percent", 1_000_000, 0.5, 1_005_000},
		{"zero tolerance", 1_000_000, 0, 1_000_000},
		{"fractional bps rounds", 1_000_000, 0.015, 1_000_200},
		{"negative clamps to zero", 1_000_000, -3, 1_000_000},
		{"above hundred clamps", 1_000_000, 250, 2_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyMaxSlippage(big.NewInt(tt.amount), tt.pct)
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("ApplyMaxSlippage(%d, %v) = %s, want %d", tt.amount, tt.pct, got, tt.want)
			}
		})
	}
}

func TestApplyMinSlippage(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    float64
		want   int64
	}{
		{"one percent", 993_000, 1.0, 983_070},
		{"half percent", 1_000_000, 0.5, 995_000},
		{"zero tolerance", 1_000_000, 0, 1_000_000},
		{"above hundred clamps", 1_000_000, 250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyMinSlippage(big.NewInt(tt.amount), tt.pct)
			if got.Cmp(big.NewInt(tt.want)) != 0 {
				t.Errorf("ApplyMinSlippage(%d, %v) = %s, want %d", tt.amount, tt.pct, got, tt.want)
			}
		})
	}
}

func TestSlippageBounds(t *testing.T) {
	amounts := []int64{0, 1, 999, 1_000_000, 123_456_789}
	pcts := []float64{0, 0.1, 1, 2.5, 10, 99.99}

	for _, a := range amounts {
		for _, p := range pcts {
			amount := big.NewInt(a)
			if got := ApplyMaxSlippage(amount, p); got.Cmp(amount) < 0 {
				t.Errorf("ApplyMaxSlippage(%d, %v) = %s below input", a, p, got)
			}
			if got := ApplyMinSlippage(amount, p); got.Cmp(amount) > 0 {
				t.Errorf("ApplyMinSlippage(%d, %v) = %s above input", a, p, got)
			}
		}
	}
}
