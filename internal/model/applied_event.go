package model

import "encoding/json"

// AppliedEvent is an instruction outcome enriched with pool metadata,
// as written to the applied-events journal.
type AppliedEvent struct {
	Seq       uint64      `json:"seq"`
	Timestamp uint64      `json:"timestamp"`
	PoolID    string      `json:"pool_id"`
	EventName string      `json:"event_name"`
	Decoded   interface{} `json:"decoded"`
	PoolMeta  PoolMeta    `json:"pool_meta"`
	AppliedAt string      `json:"applied_at"`
}

// AppliedEventRecord is the JSON representation used by the reporter, with
// the payload left raw until the event name is known.
type AppliedEventRecord struct {
	Seq       uint64          `json:"seq"`
	Timestamp uint64          `json:"timestamp"`
	PoolID    string          `json:"pool_id"`
	EventName string          `json:"event_name"`
	Decoded   json.RawMessage `json:"decoded"`
	PoolMeta  PoolMeta        `json:"pool_meta"`
	AppliedAt string          `json:"applied_at"`
}

// PoolMeta carries the static pool parameters alongside every event.
type PoolMeta struct {
	TokenX     string `json:"token_x"`
	TokenY     string `json:"token_y"`
	BinStep    uint16 `json:"bin_step"`
	FeeRatePPM uint32 `json:"fee_rate_ppm"`
}
