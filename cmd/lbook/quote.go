package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"liquidityBook/internal/book"
	"liquidityBook/internal/config"
	"liquidityBook/internal/model"
)

type quoteOutput struct {
	PoolID         string `json:"pool_id"`
	Direction      string `json:"direction"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	FeePaid        string `json:"fee_paid"`
	BinsCrossed    uint32 `json:"bins_crossed"`
	ActiveBinAfter uint32 `json:"active_bin_after"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	if cfg.PoolID == "" {
		return fmt.Errorf("pool id is required")
	}
	if cfg.AmountIn == "" {
		return fmt.Errorf("amount-in is required")
	}

	var direction book.Direction
	switch cfg.Direction {
	case model.DirectionXForY:
		direction = book.XForY
	case model.DirectionYForX:
		direction = book.YForX
	default:
		return fmt.Errorf("unknown direction %q", cfg.Direction)
	}

	amountIn, ok := new(big.Int).SetString(cfg.AmountIn, 10)
	if !ok {
		return fmt.Errorf("invalid amount-in %q", cfg.AmountIn)
	}

	data, err := os.ReadFile(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}

	var snaps []book.PoolSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return fmt.Errorf("parse state: %w", err)
	}

	want := common.HexToHash(cfg.PoolID)

	var pool *book.Pool
	for _, snap := range snaps {
		if common.HexToHash(snap.PoolID) != want {
			continue
		}
		pool, err = book.RestorePool(snap)
		if err != nil {
			return fmt.Errorf("restore pool %s: %w", snap.PoolID, err)
		}
		break
	}
	if pool == nil {
		return fmt.Errorf("pool %s not found in state", cfg.PoolID)
	}

	result, err := pool.Quote(direction, amountIn)
	if err != nil {
		return err
	}

	out := quoteOutput{
		PoolID:         want.Hex(),
		Direction:      direction.String(),
		AmountIn:       result.AmountIn.String(),
		AmountOut:      result.AmountOut.String(),
		FeePaid:        result.FeePaid.String(),
		BinsCrossed:    result.BinsCrossed,
		ActiveBinAfter: result.ActiveBinAfter,
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
