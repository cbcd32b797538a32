package idhash

import (
	"testing"
)

func TestComputeIntentID(t *testing.T) {
	tests := []struct {
		name         string
		account      string
		chainID      uint64
		seasonID     uint64
		side         string
		ticketAmount string
		createdAt    int64
		wantLen      int // hash length should be 64
	}{
		{
			name:         "buy intent",
			account:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			chainID:      31337,
			seasonID:     7,
			side:         "BUY",
			ticketAmount: "100",
			createdAt:    1704067234567,
			wantLen:      64,
		},
		{
			name:         "sell intent",
			account:      "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			chainID:      1,
			seasonID:     12,
			side:         "SELL",
			ticketAmount: "2500",
			createdAt:    1704067300000,
			wantLen:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeIntentID(tt.account, tt.chainID, tt.seasonID, tt.side, tt.ticketAmount, tt.createdAt)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeIntentID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeIntentID(tt.account, tt.chainID, tt.seasonID, tt.side, tt.ticketAmount, tt.createdAt)
			if got != got2 {
				t.Errorf("ComputeIntentID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeIntentID_DifferentInputs(t *testing.T) {
	base := ComputeIntentID("0xaa", 31337, 7, "BUY", "100", 1000)

	diffAccount := ComputeIntentID("0xbb", 31337, 7, "BUY", "100", 1000)
	if base == diffAccount {
		t.Error("Different account should produce different hash")
	}

	diffChain := ComputeIntentID("0xaa", 1, 7, "BUY", "100", 1000)
	if base == diffChain {
		t.Error("Different chain should produce different hash")
	}

	diffSeason := ComputeIntentID("0xaa", 31337, 8, "BUY", "100", 1000)
	if base == diffSeason {
		t.Error("Different season should produce different hash")
	}

	diffSide := ComputeIntentID("0xaa", 31337, 7, "SELL", "100", 1000)
	if base == diffSide {
		t.Error("Different side should produce different hash")
	}

	diffAmount := ComputeIntentID("0xaa", 31337, 7, "BUY", "101", 1000)
	if base == diffAmount {
		t.Error("Different amount should produce different hash")
	}

	diffTime := ComputeIntentID("0xaa", 31337, 7, "BUY", "100", 2000)
	if base == diffTime {
		t.Error("Different creation time should produce different hash")
	}
}
