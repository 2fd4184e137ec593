package book

import (
	"encoding/json"
	"math/big"
	"reflect"
	"testing"

	"liquidityBook/internal/pricemath"
)

func TestNewPoolValidation(t *testing.T) {
	price := new(big.Int).Set(pricemath.Q96)

	if _, err := NewPool(tokenA, tokenA, 25, 3000, price, 1<<23); err == nil {
		t.Fatalf("expected error for identical tokens")
	}
	if _, err := NewPool(tokenA, tokenB, 0, 3000, price, 1<<23); err == nil {
		t.Fatalf("expected error for zero bin step")
	}
	if _, err := NewPool(tokenA, tokenB, 25, 1_000_000, price, 1<<23); err == nil {
		t.Fatalf("expected error for fee rate >= 100%%")
	}
	if _, err := NewPool(tokenA, tokenB, 25, 3000, big.NewInt(0), 1<<23); err == nil {
		t.Fatalf("expected error for zero price")
	}

	pool, err := NewPool(tokenA, tokenB, 25, 3000, price, 1<<23)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.ActiveBinID() != 1<<23 {
		t.Fatalf("active bin mismatch: %d", pool.ActiveBinID())
	}
	if got := pool.BinIDs(); len(got) != 1 || got[0] != 1<<23 {
		t.Fatalf("expected single active bin, got %v", got)
	}
}

func TestDerivePoolID(t *testing.T) {
	id := DerivePoolID(tokenA, tokenB, 25)
	if id != DerivePoolID(tokenA, tokenB, 25) {
		t.Fatalf("pool id not deterministic")
	}
	if id == DerivePoolID(tokenB, tokenA, 25) {
		t.Fatalf("pool id should depend on token order")
	}
	if id == DerivePoolID(tokenA, tokenB, 50) {
		t.Fatalf("pool id should depend on bin step")
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 100_000, new(big.Int).Set(pricemath.Q96), 1<<23)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	if _, err := pool.Deposit(alice, []BinDeposit{
		{BinID: pool.ActiveBinID(), AmountX: big.NewInt(250), AmountY: big.NewInt(1000)},
		{BinID: pool.ActiveBinID() + 2, AmountX: big.NewInt(40)},
	}, 10); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := pool.SwapExactIn(XForY, big.NewInt(100), 20); err != nil {
		t.Fatalf("swap: %v", err)
	}

	snap := pool.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	var decoded PoolSnapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	restored, err := RestorePool(decoded)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(snap, restored.Snapshot()) {
		t.Fatalf("snapshot drifted through restore")
	}

	// The restored pool keeps working: same quote as the original.
	want, err := pool.Quote(XForY, big.NewInt(50))
	if err != nil {
		t.Fatalf("quote original: %v", err)
	}
	got, err := restored.Quote(XForY, big.NewInt(50))
	if err != nil {
		t.Fatalf("quote restored: %v", err)
	}
	if want.AmountOut.Cmp(got.AmountOut) != 0 || want.FeePaid.Cmp(got.FeePaid) != 0 {
		t.Fatalf("restored pool quotes differently: %+v != %+v", want, got)
	}
}
