package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityBook/internal/model"
)

// Store is the persistence surface the reporter writes to.
type Store interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertReceipts(ctx context.Context, receipts []model.Receipt) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator aggregates applied events into pool window metrics and receipt
// rows.
type Aggregator struct {
	cfg          Config
	store        Store
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolSeen     map[string]model.Pool
}

func NewAggregator(cfg Config, store Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolSeen:     make(map[string]model.Pool),
	}
}

// Run executes aggregation over an applied events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startSeq, err := a.loadStartSeq(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 64)
	receipts := make([]model.Receipt, 0, 64)
	maxSeq := startSeq
	var total, aggregated, skipped, failed int

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.AppliedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode applied event", zap.Error(err))
			continue
		}

		if record.Seq <= startSeq {
			skipped++
			continue
		}

		if pool := a.registerPool(record); pool != nil {
			pools = append(pools, *pool)
		}

		receipt, err := receiptFromEvent(record)
		if err != nil {
			failed++
			a.logger.Warn("decode receipt event", zap.Error(err), zap.Uint64("seq", record.Seq))
			continue
		}
		if receipt != nil {
			receipts = append(receipts, *receipt)
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(record.PoolID)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			if metrics := a.buildMetrics(acc); metrics != nil {
				batch = append(batch, *metrics)
				aggregated++
			}
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.PoolID), zap.String("event", record.EventName))
			continue
		}

		if record.Seq > maxSeq {
			maxSeq = record.Seq
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools, receipts); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]
			receipts = receipts[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		if metrics := a.buildMetrics(acc); metrics != nil {
			batch = append(batch, *metrics)
			aggregated++
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 || len(receipts) > 0 {
		if err := a.flushBatches(ctx, batch, pools, receipts); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxSeq
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("report complete",
		zap.Int("total", total),
		zap.Int("aggregated", aggregated),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartSeq(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	// Only sequences before every open window are safe to skip on resume.
	safeSeq := minOpenWindowSeq(a.accumulators)
	if safeSeq > 0 {
		safeSeq = safeSeq - 1
	}
	if safeSeq == 0 {
		safeSeq = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeSeq)
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool, receipts []model.Receipt) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return err
		}
	}
	if len(receipts) > 0 {
		if err := a.store.UpsertReceipts(ctx, receipts); err != nil {
			return err
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) buildMetrics(acc *Accumulator) *model.PoolWindowMetrics {
	if acc == nil {
		return nil
	}
	if acc.SwapCount == 0 && acc.RejectedCount == 0 {
		return nil
	}

	return &model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		RejectedCount:  acc.RejectedCount,
		VolumeX:        acc.VolumeX.String(),
		VolumeY:        acc.VolumeY.String(),
		FeeX:           acc.FeeX.String(),
		FeeY:           acc.FeeY.String(),
		BinsCrossed:    acc.BinsCrossed,
		EndActiveBin:   acc.EndActiveBin,
	}
}

func (a *Aggregator) registerPool(record model.AppliedEventRecord) *model.Pool {
	key := poolKey(record.PoolID)
	pool := model.Pool{
		PoolID:       record.PoolID,
		TokenX:       record.PoolMeta.TokenX,
		TokenY:       record.PoolMeta.TokenY,
		BinStep:      record.PoolMeta.BinStep,
		FeeRatePPM:   record.PoolMeta.FeeRatePPM,
		FirstSeenSeq: record.Seq,
	}

	existing, ok := a.poolSeen[key]
	if ok {
		if existing.FirstSeenSeq <= pool.FirstSeenSeq {
			return nil
		}
	}

	a.poolSeen[key] = pool
	return &pool
}

// receiptFromEvent turns deposit and withdraw events into receipt rows.
func receiptFromEvent(record model.AppliedEventRecord) (*model.Receipt, error) {
	switch record.EventName {
	case model.EventDepositMade:
		var data model.DepositMadeData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode deposit: %w", err)
		}
		return &model.Receipt{
			ReceiptID:   data.ReceiptID,
			PoolID:      record.PoolID,
			Owner:       data.Owner,
			DepositedTS: record.Timestamp,
			Status:      model.ReceiptStatusOpen,
		}, nil
	case model.EventWithdrawMade:
		var data model.WithdrawMadeData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode withdraw: %w", err)
		}
		return &model.Receipt{
			ReceiptID:  data.ReceiptID,
			PoolID:     record.PoolID,
			Owner:      data.Owner,
			Status:     model.ReceiptStatusRedeemed,
			RedeemedTS: record.Timestamp,
		}, nil
	default:
		return nil, nil
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(id string) string {
	return strings.ToLower(id)
}

func minOpenWindowSeq(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.FirstSeq < min {
			min = entry.FirstSeq
		}
	}
	return min
}
