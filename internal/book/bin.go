package book

import (
	"math/big"

	"liquidityBook/internal/pricemath"
)

// TokenSide identifies which of the pair a value is denominated in.
type TokenSide uint8

const (
	TokenX TokenSide = iota
	TokenY
)

func (s TokenSide) String() string {
	if s == TokenX {
		return "x"
	}
	return "y"
}

// Bin is one discrete price level. The price is fixed at creation; only the
// reserves and the fee log change.
type Bin struct {
	ID       uint32
	PriceX96 *big.Int
	ReserveX *big.Int
	ReserveY *big.Int
	Fees     []*FeeEvent
}

// FeeEvent records a fee accrued to a bin by a swap. TotalBinValue is the
// bin's value in the fee token just before the swap touched it; Remaining
// and RemainingBase are drawn down as providers claim their share.
type FeeEvent struct {
	Token         TokenSide
	Amount        *big.Int
	Timestamp     uint64
	TotalBinValue *big.Int
	Remaining     *big.Int
	RemainingBase *big.Int
}

func newBin(id uint32, priceX96 *big.Int) *Bin {
	return &Bin{
		ID:       id,
		PriceX96: new(big.Int).Set(priceX96),
		ReserveX: big.NewInt(0),
		ReserveY: big.NewInt(0),
	}
}

// valueIn returns the bin's combined reserve value denominated in the given
// token at the bin price.
func (b *Bin) valueIn(side TokenSide) (*big.Int, error) {
	if side == TokenX {
		converted, err := pricemath.YToX(b.ReserveY, b.PriceX96)
		if err != nil {
			return nil, err
		}
		return converted.Add(converted, b.ReserveX), nil
	}
	converted, err := pricemath.XToY(b.ReserveX, b.PriceX96)
	if err != nil {
		return nil, err
	}
	return converted.Add(converted, b.ReserveY), nil
}

// accrueFee appends a fee event, snapshotting the pre-swap bin value.
func (b *Bin) accrueFee(side TokenSide, amount, totalBinValue *big.Int, timestamp uint64) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.Fees = append(b.Fees, &FeeEvent{
		Token:         side,
		Amount:        new(big.Int).Set(amount),
		Timestamp:     timestamp,
		TotalBinValue: new(big.Int).Set(totalBinValue),
		Remaining:     new(big.Int).Set(amount),
		RemainingBase: new(big.Int).Set(totalBinValue),
	})
}
