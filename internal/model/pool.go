package model

// Pool represents a pool metadata record for storage.
type Pool struct {
	PoolID       string `json:"pool_id"`
	TokenX       string `json:"token_x"`
	TokenY       string `json:"token_y"`
	BinStep      uint16 `json:"bin_step"`
	FeeRatePPM   uint32 `json:"fee_rate_ppm"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
}
