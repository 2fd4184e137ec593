package model

import (
	"encoding/json"
)

// Instruction kinds accepted by the replay pipeline.
const (
	KindCreatePool = "create_pool"
	KindDeposit    = "deposit"
	KindSwap       = "swap"
	KindWithdraw   = "withdraw"
)

// Swap directions.
const (
	DirectionXForY = "x_for_y"
	DirectionYForX = "y_for_x"
)

// InstructionRecord is one journal line: a totally ordered instruction
// against the book. Seq is unique and strictly increasing.
type InstructionRecord struct {
	Seq       uint64          `json:"seq"`
	Timestamp uint64          `json:"timestamp"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// CreatePoolData is the create_pool instruction payload. InitialPriceX96 is
// the Q96 price of the active bin, as a decimal string.
type CreatePoolData struct {
	TokenX          string `json:"token_x"`
	TokenY          string `json:"token_y"`
	BinStep         uint16 `json:"bin_step"`
	FeeRatePPM      uint32 `json:"fee_rate_ppm"`
	InitialPriceX96 string `json:"initial_price_x96"`
	ActiveBinID     uint32 `json:"active_bin_id"`
}

// BinAmounts carries per-bin token amounts as decimal strings.
type BinAmounts struct {
	BinID   uint32 `json:"bin_id"`
	AmountX string `json:"amount_x"`
	AmountY string `json:"amount_y"`
}

// DepositData is the deposit instruction payload.
type DepositData struct {
	PoolID string       `json:"pool_id"`
	Owner  string       `json:"owner"`
	Bins   []BinAmounts `json:"bins"`
}

// SwapData is the swap instruction payload.
type SwapData struct {
	PoolID    string `json:"pool_id"`
	Trader    string `json:"trader"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
}

// WithdrawData is the withdraw instruction payload.
type WithdrawData struct {
	PoolID    string `json:"pool_id"`
	ReceiptID string `json:"receipt_id"`
	Owner     string `json:"owner"`
}
