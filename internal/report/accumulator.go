package report

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityBook/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID        string
	PoolMeta      model.PoolMeta
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	RejectedCount uint64
	VolumeX       *big.Int
	VolumeY       *big.Int
	FeeX          *big.Int
	FeeY          *big.Int
	BinsCrossed   uint64
	EndActiveBin  uint32
	FirstSeq      uint64
	LastSeq       uint64
}

func NewAccumulator(record model.AppliedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      record.PoolID,
		PoolMeta:    record.PoolMeta,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
		FirstSeq:    record.Seq,
		LastSeq:     record.Seq,
	}
}

func (a *Accumulator) AddEvent(record model.AppliedEventRecord) error {
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
	}
	if a.FirstSeq == 0 || record.Seq < a.FirstSeq {
		a.FirstSeq = record.Seq
	}

	switch record.EventName {
	case model.EventSwapExecuted:
		var swap model.SwapExecutedData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case model.EventSwapRejected:
		a.RejectedCount++
		return nil
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapExecutedData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(swap.AmountOut)
	if err != nil {
		return err
	}
	feePaid, err := parseBigInt(swap.FeePaid)
	if err != nil {
		return err
	}

	// Volume and fee are attributed to the token actually paid in.
	switch swap.Direction {
	case model.DirectionXForY:
		a.VolumeX.Add(a.VolumeX, amountIn)
		a.VolumeY.Add(a.VolumeY, amountOut)
		a.FeeX.Add(a.FeeX, feePaid)
	case model.DirectionYForX:
		a.VolumeY.Add(a.VolumeY, amountIn)
		a.VolumeX.Add(a.VolumeX, amountOut)
		a.FeeY.Add(a.FeeY, feePaid)
	default:
		return fmt.Errorf("unknown direction: %s", swap.Direction)
	}

	a.SwapCount++
	a.BinsCrossed += uint64(swap.BinsCrossed)
	a.EndActiveBin = swap.ActiveBinAfter
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
