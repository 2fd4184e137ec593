package model

// Receipt statuses tracked by the reporter.
const (
	ReceiptStatusOpen     = "open"
	ReceiptStatusRedeemed = "redeemed"
)

// Receipt represents a liquidity receipt record for storage.
type Receipt struct {
	ReceiptID   string `json:"receipt_id"`
	PoolID      string `json:"pool_id"`
	Owner       string `json:"owner"`
	DepositedTS uint64 `json:"deposited_ts"`
	Status      string `json:"status"`
	RedeemedTS  uint64 `json:"redeemed_ts,omitempty"`
}
