package memory

import (
	"context"
	"math/big"
	"testing"

	"sof-orchestrator/internal/domain"
	"sof-orchestrator/internal/storage"
)

func testResult(intentID string, seasonID uint64, createdAt int64) *domain.TradeResult {
	return &domain.TradeResult{
		IntentID:     intentID,
		SeasonID:     seasonID,
		Side:         domain.SideBuy,
		TicketAmount: big.NewInt(10),
		Success:      true,
		TxHash:       "0xdeadbeef",
		Outcome:      domain.OutcomeConfirmed,
		CreatedAt:    createdAt,
	}
}

func TestTradeResultStore_InsertAndGet(t *testing.T) {
	store := NewTradeResultStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testResult("i1", 1, 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.GetByIntentID(ctx, "i1")
	if err != nil {
		t.Fatalf("GetByIntentID: %v", err)
	}
	if got.IntentID != "i1" || got.SeasonID != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestTradeResultStore_Duplicate(t *testing.T) {
	store := NewTradeResultStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testResult("i1", 1, 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(ctx, testResult("i1", 1, 200)); err != storage.ErrDuplicateKey {
		t.Errorf("Insert duplicate: err = %v, want ErrDuplicateKey", err)
	}
}

func TestTradeResultStore_NotFound(t *testing.T) {
	store := NewTradeResultStore()

	if _, err := store.GetByIntentID(context.Background(), "missing"); err != storage.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTradeResultStore_GetBySeasonOrdered(t *testing.T) {
	store := NewTradeResultStore()
	ctx := context.Background()

	for _, r := range []*domain.TradeResult{
		testResult("i2", 5, 200),
		testResult("i1", 5, 100),
		testResult("i3", 6, 150),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	results, err := store.GetBySeason(ctx, 5)
	if err != nil {
		t.Fatalf("GetBySeason: %v", err)
	}
	if len(results) != 2 || results[0].IntentID != "i1" || results[1].IntentID != "i2" {
		t.Errorf("results = %+v", results)
	}
}

func TestTradeResultStore_CopyOnRead(t *testing.T) {
	store := NewTradeResultStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testResult("i1", 1, 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, _ := store.GetByIntentID(ctx, "i1")
	got.TxHash = "mutated"

	again, _ := store.GetByIntentID(ctx, "i1")
	if again.TxHash != "0xdeadbeef" {
		t.Error("store returned a shared pointer, mutation leaked")
	}
}
