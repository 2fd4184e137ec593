package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"liquidityBook/internal/book"
)

// saveState writes every pool's snapshot so a resumed run starts from the
// same book state the checkpoint refers to.
func (r *Runner) saveState() error {
	if r.cfg.StatePath == "" {
		return nil
	}

	snaps := make([]book.PoolSnapshot, 0, len(r.pools))
	for _, pool := range r.pools {
		snaps = append(snaps, pool.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].PoolID < snaps[j].PoolID })

	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(r.cfg.StatePath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := r.cfg.StatePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, r.cfg.StatePath); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// loadState restores pools from a previous run's state file, if present.
func (r *Runner) loadState() error {
	if r.cfg.StatePath == "" {
		return nil
	}

	data, err := os.ReadFile(r.cfg.StatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}

	var snaps []book.PoolSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return fmt.Errorf("parse state: %w", err)
	}

	for _, snap := range snaps {
		pool, err := book.RestorePool(snap)
		if err != nil {
			return fmt.Errorf("restore pool %s: %w", snap.PoolID, err)
		}
		r.pools[common.HexToHash(snap.PoolID)] = pool
	}
	return nil
}
