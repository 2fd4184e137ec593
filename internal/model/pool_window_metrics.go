package model

import "time"

// PoolWindowMetrics stores aggregated swap metrics for a pool window.
type PoolWindowMetrics struct {
	PoolID         string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	RejectedCount  uint64
	VolumeX        string
	VolumeY        string
	FeeX           string
	FeeY           string
	BinsCrossed    uint64
	EndActiveBin   uint32
}
