package book

import (
	"math/big"

	"liquidityBook/internal/pricemath"
)

// Direction selects which token a swap pays in.
type Direction uint8

const (
	// XForY pays token X and receives token Y, walking down the price ladder.
	XForY Direction = iota
	// YForX pays token Y and receives token X, walking up the price ladder.
	YForX
)

func (d Direction) String() string {
	if d == XForY {
		return "x_for_y"
	}
	return "y_for_x"
}

// SwapResult reports the outcome of an executed or quoted swap.
type SwapResult struct {
	AmountIn        *big.Int
	AmountOut       *big.Int
	FeePaid         *big.Int
	BinsCrossed     uint32
	ActiveBinBefore uint32
	ActiveBinAfter  uint32
}

// swapStep is one planned bin interaction. grossIn is credited to the input
// reserve (fee included), out debited from the output reserve.
type swapStep struct {
	binID   uint32
	grossIn *big.Int
	out     *big.Int
	fee     *big.Int
	feeBase *big.Int
	drained bool
}

type swapPlan struct {
	steps     []swapStep
	result    SwapResult
	newActive uint32
}

// Quote computes a swap outcome without mutating the pool.
func (p *Pool) Quote(direction Direction, amountIn *big.Int) (SwapResult, error) {
	plan, err := p.planSwap(direction, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	return plan.result, nil
}

// SwapExactIn executes a swap, consuming amountIn of the input token. On
// ErrInsufficientLiquidity the pool is left untouched.
func (p *Pool) SwapExactIn(direction Direction, amountIn *big.Int, timestamp uint64) (SwapResult, error) {
	plan, err := p.planSwap(direction, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	p.commitSwap(direction, plan, timestamp)
	return plan.result, nil
}

// planSwap walks bins from the active one, building the step list. The pool
// is only read here; commitSwap applies the steps.
func (p *Pool) planSwap(direction Direction, amountIn *big.Int) (*swapPlan, error) {
	if direction != XForY && direction != YForX {
		return nil, ErrBadDirection
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	feeToken := TokenX
	walkUp := false
	if direction == YForX {
		feeToken = TokenY
		walkUp = true
	}

	plan := &swapPlan{
		result: SwapResult{
			AmountIn:        new(big.Int).Set(amountIn),
			AmountOut:       big.NewInt(0),
			FeePaid:         big.NewInt(0),
			ActiveBinBefore: p.activeBin,
		},
		newActive: p.activeBin,
	}

	remaining := new(big.Int).Set(amountIn)
	current := p.activeBin

	for remaining.Sign() > 0 {
		bin := p.bins[current]

		outReserve := bin.ReserveY
		if direction == YForX {
			outReserve = bin.ReserveX
		}

		feeBase, err := bin.valueIn(feeToken)
		if err != nil {
			return nil, err
		}

		fee := feeOnInput(remaining, p.FeeRatePPM)
		netIn := new(big.Int).Sub(remaining, fee)

		out, err := convertIn(direction, netIn, bin.PriceX96)
		if err != nil {
			return nil, err
		}

		if out.Cmp(outReserve) <= 0 {
			plan.steps = append(plan.steps, swapStep{
				binID:   bin.ID,
				grossIn: new(big.Int).Set(remaining),
				out:     out,
				fee:     fee,
				feeBase: feeBase,
			})
			plan.result.AmountOut.Add(plan.result.AmountOut, out)
			plan.result.FeePaid.Add(plan.result.FeePaid, fee)
			remaining.SetInt64(0)
			break
		}

		// Drain the bin exactly: charge the input for the full output
		// reserve, with the fee added on top of that requirement.
		outPart := new(big.Int).Set(outReserve)
		grossNeeded, err := convertOut(direction, outPart, bin.PriceX96)
		if err != nil {
			return nil, err
		}
		feePart := feeOnTop(grossNeeded, p.FeeRatePPM)
		charged := new(big.Int).Add(grossNeeded, feePart)
		if charged.Cmp(remaining) > 0 {
			charged.Set(remaining)
			feePart = new(big.Int).Sub(charged, grossNeeded)
			if feePart.Sign() < 0 {
				feePart.SetInt64(0)
			}
		}

		plan.steps = append(plan.steps, swapStep{
			binID:   bin.ID,
			grossIn: charged,
			out:     outPart,
			fee:     feePart,
			feeBase: feeBase,
			drained: true,
		})
		plan.result.AmountOut.Add(plan.result.AmountOut, outPart)
		plan.result.FeePaid.Add(plan.result.FeePaid, feePart)
		remaining.Sub(remaining, charged)

		next, ok := p.nextPopulated(current, walkUp)
		if !ok {
			if remaining.Sign() > 0 {
				return nil, ErrInsufficientLiquidity
			}
			break
		}
		current = next
		plan.newActive = next
		plan.result.BinsCrossed++
	}

	plan.result.ActiveBinAfter = plan.newActive
	return plan, nil
}

func (p *Pool) commitSwap(direction Direction, plan *swapPlan, timestamp uint64) {
	feeToken := TokenX
	if direction == YForX {
		feeToken = TokenY
	}

	for _, step := range plan.steps {
		bin := p.bins[step.binID]
		if direction == XForY {
			bin.ReserveX.Add(bin.ReserveX, step.grossIn)
			bin.ReserveY.Sub(bin.ReserveY, step.out)
		} else {
			bin.ReserveY.Add(bin.ReserveY, step.grossIn)
			bin.ReserveX.Sub(bin.ReserveX, step.out)
		}
		bin.accrueFee(feeToken, step.fee, step.feeBase, timestamp)
	}
	p.activeBin = plan.newActive
}

// convertIn converts a net input amount into output at the bin price,
// rounding down.
func convertIn(direction Direction, amountIn, priceX96 *big.Int) (*big.Int, error) {
	if direction == XForY {
		return pricemath.XToY(amountIn, priceX96)
	}
	return pricemath.YToX(amountIn, priceX96)
}

// convertOut returns the input required for an exact output at the bin
// price, rounding up.
func convertOut(direction Direction, amountOut, priceX96 *big.Int) (*big.Int, error) {
	if direction == XForY {
		return pricemath.XForExactY(amountOut, priceX96)
	}
	return pricemath.YForExactX(amountOut, priceX96)
}

// feeOnInput deducts the fee from a gross input: floor(in * rate / 1e6).
func feeOnInput(amountIn *big.Int, feeRatePPM uint32) *big.Int {
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeRatePPM)))
	return fee.Quo(fee, big.NewInt(feeDenominator))
}

// feeOnTop charges the fee on top of a net input requirement:
// ceil(net * rate / (1e6 - rate)), so gross * (1 - rate/1e6) == net.
func feeOnTop(netIn *big.Int, feeRatePPM uint32) *big.Int {
	if feeRatePPM == 0 || netIn.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(netIn, big.NewInt(int64(feeRatePPM)))
	denominator := big.NewInt(int64(feeDenominator - feeRatePPM))
	quotient, remainder := numerator.QuoRem(numerator, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
