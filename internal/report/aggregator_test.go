package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"liquidityBook/internal/model"
)

type fakeStore struct {
	pools    []model.Pool
	receipts []model.Receipt
	metrics  []model.PoolWindowMetrics
}

func (s *fakeStore) UpsertPools(_ context.Context, pools []model.Pool) error {
	s.pools = append(s.pools, pools...)
	return nil
}

func (s *fakeStore) UpsertReceipts(_ context.Context, receipts []model.Receipt) error {
	s.receipts = append(s.receipts, receipts...)
	return nil
}

func (s *fakeStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	s.metrics = append(s.metrics, metrics...)
	return nil
}

var testMeta = model.PoolMeta{
	TokenX:     "0x1000000000000000000000000000000000000001",
	TokenY:     "0x2000000000000000000000000000000000000002",
	BinStep:    25,
	FeeRatePPM: 3000,
}

func eventLine(t *testing.T, seq, ts uint64, name string, decoded interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal decoded: %v", err)
	}
	line, err := json.Marshal(model.AppliedEventRecord{
		Seq:       seq,
		Timestamp: ts,
		PoolID:    "0xpool1",
		EventName: name,
		Decoded:   raw,
		PoolMeta:  testMeta,
		AppliedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return line
}

func writeEvents(t *testing.T, lines [][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write events: %v", err)
	}
	return path
}

func TestAggregatorBucketsSwapsByWindow(t *testing.T) {
	swap := func(in, out, fee string, direction string, after uint32) model.SwapExecutedData {
		return model.SwapExecutedData{
			Direction:      direction,
			AmountIn:       in,
			AmountOut:      out,
			FeePaid:        fee,
			BinsCrossed:    1,
			ActiveBinAfter: after,
		}
	}

	path := writeEvents(t, [][]byte{
		eventLine(t, 1, 100, model.EventSwapExecuted, swap("100", "90", "10", model.DirectionXForY, 7)),
		eventLine(t, 2, 150, model.EventSwapExecuted, swap("50", "45", "5", model.DirectionYForX, 8)),
		// Next window.
		eventLine(t, 3, 400, model.EventSwapExecuted, swap("10", "9", "1", model.DirectionXForY, 9)),
		eventLine(t, 4, 410, model.EventSwapRejected, model.SwapRejectedData{Direction: model.DirectionXForY, AmountIn: "999", Reason: "insufficient pool liquidity"}),
	})

	store := &fakeStore{}
	agg := NewAggregator(Config{WindowSeconds: 300, BatchSize: 10}, store, zap.NewNop())
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(store.metrics) != 2 {
		t.Fatalf("window count mismatch: %d", len(store.metrics))
	}

	first := store.metrics[0]
	if first.SwapCount != 2 || first.VolumeX != "145" || first.VolumeY != "140" {
		t.Fatalf("first window mismatch: %+v", first)
	}
	if first.FeeX != "10" || first.FeeY != "5" {
		t.Fatalf("first window fees mismatch: %+v", first)
	}
	if first.EndActiveBin != 8 || first.BinsCrossed != 2 {
		t.Fatalf("first window bin tracking mismatch: %+v", first)
	}

	second := store.metrics[1]
	if second.SwapCount != 1 || second.RejectedCount != 1 {
		t.Fatalf("second window mismatch: %+v", second)
	}

	if len(store.pools) != 1 || store.pools[0].PoolID != "0xpool1" || store.pools[0].FirstSeenSeq != 1 {
		t.Fatalf("pool registration mismatch: %+v", store.pools)
	}
}

func TestAggregatorEmitsReceiptRows(t *testing.T) {
	path := writeEvents(t, [][]byte{
		eventLine(t, 1, 100, model.EventDepositMade, model.DepositMadeData{
			ReceiptID: "0xreceipt1",
			Owner:     "0xa00000000000000000000000000000000000000a",
			Bins:      []model.BinAmounts{{BinID: 5, AmountY: "100"}},
		}),
		eventLine(t, 2, 200, model.EventWithdrawMade, model.WithdrawMadeData{
			ReceiptID: "0xreceipt1",
			Owner:     "0xa00000000000000000000000000000000000000a",
			PayoutX:   "0",
			PayoutY:   "100",
			FeeShareX: "0",
			FeeShareY: "0",
		}),
	})

	store := &fakeStore{}
	agg := NewAggregator(Config{WindowSeconds: 300, BatchSize: 10}, store, zap.NewNop())
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(store.receipts) != 2 {
		t.Fatalf("receipt count mismatch: %d", len(store.receipts))
	}
	if store.receipts[0].Status != model.ReceiptStatusOpen || store.receipts[0].DepositedTS != 100 {
		t.Fatalf("deposit receipt mismatch: %+v", store.receipts[0])
	}
	if store.receipts[1].Status != model.ReceiptStatusRedeemed || store.receipts[1].RedeemedTS != 200 {
		t.Fatalf("withdraw receipt mismatch: %+v", store.receipts[1])
	}
}

func TestAggregatorSkipsProcessedSequences(t *testing.T) {
	path := writeEvents(t, [][]byte{
		eventLine(t, 1, 100, model.EventSwapExecuted, model.SwapExecutedData{
			Direction: model.DirectionXForY, AmountIn: "100", AmountOut: "90", FeePaid: "10",
		}),
		eventLine(t, 2, 110, model.EventSwapExecuted, model.SwapExecutedData{
			Direction: model.DirectionXForY, AmountIn: "100", AmountOut: "90", FeePaid: "10",
		}),
	})

	store := &fakeStore{}
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state.json")}
	if err := state.Save(context.Background(), 1); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	agg := NewAggregator(Config{WindowSeconds: 300, BatchSize: 10, StateStore: state}, store, zap.NewNop())
	if err := agg.Run(context.Background(), path); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(store.metrics) != 1 || store.metrics[0].SwapCount != 1 {
		t.Fatalf("expected only seq 2 aggregated: %+v", store.metrics)
	}

	last, ok, err := state.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("load state: %v ok=%v", err, ok)
	}
	if last != 2 {
		t.Fatalf("state should advance to 2, got %d", last)
	}
}

func TestWindowStart(t *testing.T) {
	if got := windowStart(419, 300); got != 300 {
		t.Fatalf("window start mismatch: %d", got)
	}
	if got := windowStart(300, 300); got != 300 {
		t.Fatalf("window start mismatch: %d", got)
	}
}
