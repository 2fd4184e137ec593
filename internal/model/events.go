package model

// Event names emitted by the replay pipeline.
const (
	EventPoolCreated  = "PoolCreated"
	EventDepositMade  = "DepositMade"
	EventSwapExecuted = "SwapExecuted"
	EventSwapRejected = "SwapRejected"
	EventWithdrawMade = "WithdrawMade"
)

// PoolCreatedData is the decoded PoolCreated event payload.
type PoolCreatedData struct {
	TokenX          string `json:"token_x"`
	TokenY          string `json:"token_y"`
	BinStep         uint16 `json:"bin_step"`
	FeeRatePPM      uint32 `json:"fee_rate_ppm"`
	InitialPriceX96 string `json:"initial_price_x96"`
	ActiveBinID     uint32 `json:"active_bin_id"`
}

// DepositMadeData is the decoded DepositMade event payload.
type DepositMadeData struct {
	ReceiptID string       `json:"receipt_id"`
	Owner     string       `json:"owner"`
	Bins      []BinAmounts `json:"bins"`
}

// SwapExecutedData is the decoded SwapExecuted event payload. Amounts are
// decimal strings.
type SwapExecutedData struct {
	Trader          string `json:"trader"`
	Direction       string `json:"direction"`
	AmountIn        string `json:"amount_in"`
	AmountOut       string `json:"amount_out"`
	FeePaid         string `json:"fee_paid"`
	BinsCrossed     uint32 `json:"bins_crossed"`
	ActiveBinBefore uint32 `json:"active_bin_before"`
	ActiveBinAfter  uint32 `json:"active_bin_after"`
}

// SwapRejectedData is the decoded SwapRejected event payload.
type SwapRejectedData struct {
	Trader    string `json:"trader"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
	Reason    string `json:"reason"`
}

// WithdrawMadeData is the decoded WithdrawMade event payload. FeeShare
// amounts are the portion of the payout attributable to fee events.
type WithdrawMadeData struct {
	ReceiptID string `json:"receipt_id"`
	Owner     string `json:"owner"`
	PayoutX   string `json:"payout_x"`
	PayoutY   string `json:"payout_y"`
	FeeShareX string `json:"fee_share_x"`
	FeeShareY string `json:"fee_share_y"`
}
