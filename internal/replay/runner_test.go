package replay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityBook/internal/book"
	"liquidityBook/internal/model"
	"liquidityBook/internal/pricemath"
)

type memSink struct {
	events []model.AppliedEvent
}

func (s *memSink) PutEventBatch(events []model.AppliedEvent) error {
	s.events = append(s.events, events...)
	return nil
}

var (
	testTokenX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testTokenY = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testOwner  = common.HexToAddress("0xa00000000000000000000000000000000000000a")
)

func journalLine(t *testing.T, seq, ts uint64, kind string, payload interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	line, err := json.Marshal(model.InstructionRecord{Seq: seq, Timestamp: ts, Kind: kind, Payload: raw})
	if err != nil {
		t.Fatalf("marshal instruction: %v", err)
	}
	return line
}

func writeJournal(t *testing.T, dir string, lines [][]byte) string {
	t.Helper()
	path := filepath.Join(dir, "journal.jsonl")
	var data []byte
	for _, line := range lines {
		data = append(data, line...)
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write journal: %v", err)
	}
	return path
}

func testJournal(t *testing.T, dir string) (string, string) {
	poolID := book.DerivePoolID(testTokenX, testTokenY, 25).Hex()

	lines := [][]byte{
		journalLine(t, 1, 100, model.KindCreatePool, model.CreatePoolData{
			TokenX:          testTokenX.Hex(),
			TokenY:          testTokenY.Hex(),
			BinStep:         25,
			FeeRatePPM:      100_000,
			InitialPriceX96: pricemath.Q96.String(),
			ActiveBinID:     1 << 23,
		}),
		journalLine(t, 2, 110, model.KindDeposit, model.DepositData{
			PoolID: poolID,
			Owner:  testOwner.Hex(),
			Bins:   []model.BinAmounts{{BinID: 1 << 23, AmountY: "1000"}},
		}),
		journalLine(t, 3, 120, model.KindSwap, model.SwapData{
			PoolID:    poolID,
			Trader:    testOwner.Hex(),
			Direction: model.DirectionXForY,
			AmountIn:  "100",
		}),
		// Duplicate seq is skipped.
		journalLine(t, 3, 120, model.KindSwap, model.SwapData{
			PoolID:    poolID,
			Trader:    testOwner.Hex(),
			Direction: model.DirectionXForY,
			AmountIn:  "100",
		}),
		// Drains the pool: rejected, recorded as an event.
		journalLine(t, 4, 130, model.KindSwap, model.SwapData{
			PoolID:    poolID,
			Trader:    testOwner.Hex(),
			Direction: model.DirectionXForY,
			AmountIn:  "100000",
		}),
		[]byte(`{"seq": not json`),
		journalLine(t, 5, 140, model.KindSwap, model.SwapData{
			PoolID:    "0x0000000000000000000000000000000000000000000000000000000000000099",
			Trader:    testOwner.Hex(),
			Direction: model.DirectionXForY,
			AmountIn:  "10",
		}),
	}

	return writeJournal(t, dir, lines), poolID
}

func TestRunnerReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	journalPath, poolID := testJournal(t, dir)

	sink := &memSink{}
	runner := NewRunner(RunConfig{
		InputPath:         journalPath,
		BatchSize:         2,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}, sink, nil, zap.NewNop())

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	wantNames := []string{
		model.EventPoolCreated,
		model.EventDepositMade,
		model.EventSwapExecuted,
		model.EventSwapRejected,
	}
	if len(sink.events) != len(wantNames) {
		t.Fatalf("event count mismatch: got %d want %d", len(sink.events), len(wantNames))
	}
	for i, want := range wantNames {
		if sink.events[i].EventName != want {
			t.Fatalf("event %d name mismatch: got %s want %s", i, sink.events[i].EventName, want)
		}
		if sink.events[i].PoolID != poolID {
			t.Fatalf("event %d pool mismatch: %s", i, sink.events[i].PoolID)
		}
	}

	swap, ok := sink.events[2].Decoded.(model.SwapExecutedData)
	if !ok {
		t.Fatalf("swap payload type: %T", sink.events[2].Decoded)
	}
	// fee 10, net 90, out 90 at price 1.
	if swap.AmountOut != "90" || swap.FeePaid != "10" {
		t.Fatalf("swap outcome mismatch: %+v", swap)
	}

	// The pool survived the rejected swap with its state intact.
	pool, ok := runner.Pool(common.HexToHash(poolID))
	if !ok {
		t.Fatalf("pool not registered")
	}
	bin, _ := pool.Bin(1 << 23)
	if bin.ReserveY.String() != "910" {
		t.Fatalf("reserve y mismatch: %s", bin.ReserveY)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	journalPath, _ := testJournal(t, dir)
	checkpointPath := filepath.Join(dir, "checkpoint.json")

	first := &memSink{}
	runner := NewRunner(RunConfig{
		InputPath:         journalPath,
		BatchSize:         100,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}, first, nil, zap.NewNop())
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(first.events) == 0 {
		t.Fatalf("first run produced no events")
	}

	second := &memSink{}
	resumed := NewRunner(RunConfig{
		InputPath:         journalPath,
		BatchSize:         100,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
	}, second, nil, zap.NewNop())
	if err := resumed.Run(context.Background()); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if len(second.events) != 0 {
		t.Fatalf("resumed run re-applied %d events", len(second.events))
	}
}

func TestRunnerRestoresBookStateAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	poolID := book.DerivePoolID(testTokenX, testTokenY, 25).Hex()
	checkpointPath := filepath.Join(dir, "checkpoint.json")
	statePath := filepath.Join(dir, "state.json")

	firstJournal := writeJournal(t, dir, [][]byte{
		journalLine(t, 1, 100, model.KindCreatePool, model.CreatePoolData{
			TokenX:          testTokenX.Hex(),
			TokenY:          testTokenY.Hex(),
			BinStep:         25,
			FeeRatePPM:      0,
			InitialPriceX96: pricemath.Q96.String(),
			ActiveBinID:     1 << 23,
		}),
		journalLine(t, 2, 110, model.KindDeposit, model.DepositData{
			PoolID: poolID,
			Owner:  testOwner.Hex(),
			Bins:   []model.BinAmounts{{BinID: 1 << 23, AmountY: "1000"}},
		}),
	})

	cfg := RunConfig{
		InputPath:         firstJournal,
		BatchSize:         100,
		CheckpointPath:    checkpointPath,
		CheckpointEnabled: true,
		StatePath:         statePath,
	}
	if err := NewRunner(cfg, &memSink{}, nil, zap.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// A later journal extends the first; the pool must come back from the
	// state file for the swap to apply.
	extended := writeJournal(t, dir, [][]byte{
		journalLine(t, 3, 120, model.KindSwap, model.SwapData{
			PoolID:    poolID,
			Trader:    testOwner.Hex(),
			Direction: model.DirectionXForY,
			AmountIn:  "100",
		}),
	})
	cfg.InputPath = extended

	sink := &memSink{}
	if err := NewRunner(cfg, sink, nil, zap.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].EventName != model.EventSwapExecuted {
		t.Fatalf("expected one executed swap, got %+v", sink.events)
	}
}

// cancelSink cancels the run's context as soon as the first batch lands.
type cancelSink struct {
	memSink
	cancel context.CancelFunc
}

func (s *cancelSink) PutEventBatch(events []model.AppliedEvent) error {
	s.events = append(s.events, events...)
	s.cancel()
	return nil
}

func TestRunnerStopsBetweenBatchesOnCancel(t *testing.T) {
	dir := t.TempDir()
	journalPath, _ := testJournal(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &cancelSink{cancel: cancel}
	runner := NewRunner(RunConfig{
		InputPath: journalPath,
		BatchSize: 2,
	}, sink, nil, zap.NewNop())

	err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Only the batch that triggered the cancellation was written.
	if len(sink.events) != 2 {
		t.Fatalf("events written after cancellation: %d", len(sink.events))
	}
}

func TestRunnerRequiresBatchSize(t *testing.T) {
	runner := NewRunner(RunConfig{InputPath: "nope.jsonl"}, &memSink{}, nil, nil)
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
