package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"liquidityBook/internal/book"
	"liquidityBook/internal/model"
)

// applyInstruction dispatches one journal instruction to the book and builds
// the resulting event. A rejected swap is an event, not an error; malformed
// instructions return an error and apply nothing.
func (r *Runner) applyInstruction(record model.InstructionRecord) (*model.AppliedEvent, error) {
	switch record.Kind {
	case model.KindCreatePool:
		return r.applyCreatePool(record)
	case model.KindDeposit:
		return r.applyDeposit(record)
	case model.KindSwap:
		return r.applySwap(record)
	case model.KindWithdraw:
		return r.applyWithdraw(record)
	default:
		return nil, fmt.Errorf("unsupported instruction kind: %s", record.Kind)
	}
}

func (r *Runner) applyCreatePool(record model.InstructionRecord) (*model.AppliedEvent, error) {
	var data model.CreatePoolData
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, fmt.Errorf("decode create_pool: %w", err)
	}

	tokenX, err := parseAddress(data.TokenX)
	if err != nil {
		return nil, fmt.Errorf("token x: %w", err)
	}
	tokenY, err := parseAddress(data.TokenY)
	if err != nil {
		return nil, fmt.Errorf("token y: %w", err)
	}
	price, err := parseAmount(data.InitialPriceX96)
	if err != nil {
		return nil, fmt.Errorf("initial price: %w", err)
	}

	pool, err := book.NewPool(tokenX, tokenY, data.BinStep, data.FeeRatePPM, price, data.ActiveBinID)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if _, exists := r.pools[pool.ID]; exists {
		return nil, fmt.Errorf("%w: %s", book.ErrPoolExists, pool.ID.Hex())
	}
	r.pools[pool.ID] = pool

	return r.newEvent(record, pool, model.EventPoolCreated, model.PoolCreatedData{
		TokenX:          tokenX.Hex(),
		TokenY:          tokenY.Hex(),
		BinStep:         data.BinStep,
		FeeRatePPM:      data.FeeRatePPM,
		InitialPriceX96: price.String(),
		ActiveBinID:     data.ActiveBinID,
	}), nil
}

func (r *Runner) applyDeposit(record model.InstructionRecord) (*model.AppliedEvent, error) {
	var data model.DepositData
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, fmt.Errorf("decode deposit: %w", err)
	}

	pool, err := r.lookupPool(data.PoolID)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress(data.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}

	deposits := make([]book.BinDeposit, 0, len(data.Bins))
	for _, entry := range data.Bins {
		amountX, err := parseAmount(entry.AmountX)
		if err != nil {
			return nil, fmt.Errorf("bin %d amount x: %w", entry.BinID, err)
		}
		amountY, err := parseAmount(entry.AmountY)
		if err != nil {
			return nil, fmt.Errorf("bin %d amount y: %w", entry.BinID, err)
		}
		deposits = append(deposits, book.BinDeposit{BinID: entry.BinID, AmountX: amountX, AmountY: amountY})
	}

	receipt, err := pool.Deposit(owner, deposits, record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	return r.newEvent(record, pool, model.EventDepositMade, model.DepositMadeData{
		ReceiptID: receipt.ID.Hex(),
		Owner:     owner.Hex(),
		Bins:      data.Bins,
	}), nil
}

func (r *Runner) applySwap(record model.InstructionRecord) (*model.AppliedEvent, error) {
	var data model.SwapData
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, fmt.Errorf("decode swap: %w", err)
	}

	pool, err := r.lookupPool(data.PoolID)
	if err != nil {
		return nil, err
	}
	direction, err := parseDirection(data.Direction)
	if err != nil {
		return nil, err
	}
	amountIn, err := parseAmount(data.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("amount in: %w", err)
	}

	result, err := pool.SwapExactIn(direction, amountIn, record.Timestamp)
	if err != nil {
		if errors.Is(err, book.ErrInsufficientLiquidity) {
			r.metrics.SwapsRejected.Inc()
			return r.newEvent(record, pool, model.EventSwapRejected, model.SwapRejectedData{
				Trader:    data.Trader,
				Direction: direction.String(),
				AmountIn:  amountIn.String(),
				Reason:    err.Error(),
			}), nil
		}
		return nil, fmt.Errorf("swap: %w", err)
	}

	r.metrics.BinsCrossed.Add(float64(result.BinsCrossed))
	return r.newEvent(record, pool, model.EventSwapExecuted, model.SwapExecutedData{
		Trader:          data.Trader,
		Direction:       direction.String(),
		AmountIn:        result.AmountIn.String(),
		AmountOut:       result.AmountOut.String(),
		FeePaid:         result.FeePaid.String(),
		BinsCrossed:     result.BinsCrossed,
		ActiveBinBefore: result.ActiveBinBefore,
		ActiveBinAfter:  result.ActiveBinAfter,
	}), nil
}

func (r *Runner) applyWithdraw(record model.InstructionRecord) (*model.AppliedEvent, error) {
	var data model.WithdrawData
	if err := json.Unmarshal(record.Payload, &data); err != nil {
		return nil, fmt.Errorf("decode withdraw: %w", err)
	}

	pool, err := r.lookupPool(data.PoolID)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress(data.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	receiptID, err := parseHash(data.ReceiptID)
	if err != nil {
		return nil, fmt.Errorf("receipt id: %w", err)
	}

	payout, err := pool.Withdraw(receiptID, owner, record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	return r.newEvent(record, pool, model.EventWithdrawMade, model.WithdrawMadeData{
		ReceiptID: receiptID.Hex(),
		Owner:     owner.Hex(),
		PayoutX:   payout.AmountX.String(),
		PayoutY:   payout.AmountY.String(),
		FeeShareX: payout.FeeShareX.String(),
		FeeShareY: payout.FeeShareY.String(),
	}), nil
}

func (r *Runner) lookupPool(id string) (*book.Pool, error) {
	hash, err := parseHash(id)
	if err != nil {
		return nil, fmt.Errorf("pool id: %w", err)
	}
	pool, ok := r.pools[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", book.ErrPoolNotFound, id)
	}
	return pool, nil
}

func (r *Runner) newEvent(record model.InstructionRecord, pool *book.Pool, name string, decoded interface{}) *model.AppliedEvent {
	return &model.AppliedEvent{
		Seq:       record.Seq,
		Timestamp: record.Timestamp,
		PoolID:    pool.ID.Hex(),
		EventName: name,
		Decoded:   decoded,
		PoolMeta: model.PoolMeta{
			TokenX:     pool.TokenX.Hex(),
			TokenY:     pool.TokenY.Hex(),
			BinStep:    pool.BinStep,
			FeeRatePPM: pool.FeeRatePPM,
		},
		AppliedAt: r.now().UTC().Format(time.RFC3339Nano),
	}
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func parseHash(input string) (common.Hash, error) {
	data, err := decodeHex32(input)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

func parseAmount(input string) (*big.Int, error) {
	if input == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(input, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", input)
	}
	return parsed, nil
}

func parseDirection(input string) (book.Direction, error) {
	switch input {
	case model.DirectionXForY:
		return book.XForY, nil
	case model.DirectionYForX:
		return book.YForX, nil
	default:
		return 0, fmt.Errorf("%w: %s", book.ErrBadDirection, input)
	}
}
