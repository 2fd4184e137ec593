package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"liquidityBook/internal/book"
	"liquidityBook/internal/metrics"
	"liquidityBook/internal/model"
	"liquidityBook/internal/storage"
)

// RunConfig holds runtime settings for the replayer.
type RunConfig struct {
	InputPath         string
	BatchSize         int
	CheckpointPath    string
	CheckpointEnabled bool
	StatePath         string
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner replays the instruction journal through the book and writes applied
// events to storage.
type Runner struct {
	cfg        RunConfig
	storage    storage.Storage
	logger     *zap.Logger
	metrics    *metrics.Metrics
	pools      map[common.Hash]*book.Pool
	seen       map[uint64]struct{}
	checkpoint *CheckpointStore
	now        func() time.Time
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, storageSink storage.Storage, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	return &Runner{
		cfg:        cfg,
		storage:    storageSink,
		logger:     logger,
		metrics:    m,
		pools:      make(map[common.Hash]*book.Pool),
		seen:       make(map[uint64]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		now:        time.Now,
	}
}

// Pool returns a replayed pool by id, for inspection after Run.
func (r *Runner) Pool(id common.Hash) (*book.Pool, bool) {
	pool, ok := r.pools[id]
	return pool, ok
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	var fromSeq uint64
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok {
			fromSeq = cp.LastProcessedSeq
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed_seq", fromSeq))
		}
	}

	if err := r.loadState(); err != nil {
		return err
	}

	file, err := os.Open(r.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.AppliedEvent, 0, r.cfg.BatchSize)
	var total, applied, skipped, failed int
	var lastSeq uint64

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.InstructionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			r.logger.Warn("decode instruction", zap.Error(err))
			continue
		}

		if record.Seq <= fromSeq || r.isDuplicate(record.Seq) {
			skipped++
			continue
		}

		event, err := r.applyInstruction(record)
		if err != nil {
			failed++
			r.metrics.InstructionsFailed.WithLabelValues(record.Kind).Inc()
			r.logger.Warn("apply instruction", zap.Error(err), zap.Uint64("seq", record.Seq), zap.String("kind", record.Kind))
			continue
		}

		applied++
		lastSeq = record.Seq
		r.metrics.InstructionsApplied.WithLabelValues(record.Kind).Inc()
		batch = append(batch, *event)

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch, lastSeq); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}

	if len(batch) > 0 {
		if err := r.flush(ctx, batch, lastSeq); err != nil {
			return err
		}
	}

	r.logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("pools", len(r.pools)),
	)

	return nil
}

// flush stores a batch and records progress. Cancellation is honored here so
// the run stops between batches, the final partial one included.
func (r *Runner) flush(ctx context.Context, batch []model.AppliedEvent, lastSeq uint64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.storage.PutEventBatch(batch); err != nil {
			r.logger.Warn("store events failed", zap.Error(err), zap.Int("events", len(batch)))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	r.metrics.EventsWritten.Add(float64(len(batch)))

	if err := r.saveState(); err != nil {
		return err
	}
	if r.checkpoint != nil {
		if err := r.checkpoint.Save(lastSeq); err != nil {
			return err
		}
	}

	r.logger.Info("batch complete", zap.Int("events", len(batch)), zap.Uint64("last_seq", lastSeq))
	return nil
}

func (r *Runner) isDuplicate(seq uint64) bool {
	if _, ok := r.seen[seq]; ok {
		return true
	}
	r.seen[seq] = struct{}{}
	return false
}

func decodeHex32(input string) ([]byte, error) {
	data, err := hexutil.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("invalid hash: %s", input)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("invalid hash length: %s", input)
	}
	return data, nil
}
