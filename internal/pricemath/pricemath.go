package pricemath

import (
	"fmt"
	"math/big"
)

// Q96 is the fixed-point scale: prices are stored as value * 2^96.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// stepDenominator is the denominator for bin step calculations (basis points).
var stepDenominator = big.NewInt(10_000)

// MulDiv computes floor(a * b / denominator).
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, fmt.Errorf("mulDiv: zero denominator")
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator), nil
}

// MulDivRoundingUp computes ceil(a * b / denominator).
func MulDivRoundingUp(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, fmt.Errorf("mulDiv: zero denominator")
	}
	product := new(big.Int).Mul(a, b)
	quotient, remainder := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient, nil
}

// XToY converts an X amount into Y at the given Q96 price, rounding down.
func XToY(amountX, priceX96 *big.Int) (*big.Int, error) {
	return MulDiv(amountX, priceX96, Q96)
}

// YToX converts a Y amount into X at the given Q96 price, rounding down.
func YToX(amountY, priceX96 *big.Int) (*big.Int, error) {
	return MulDiv(amountY, Q96, priceX96)
}

// XForExactY returns the X input required to receive exactly amountY,
// rounding up so the payer covers the full output.
func XForExactY(amountY, priceX96 *big.Int) (*big.Int, error) {
	if priceX96 == nil || priceX96.Sign() == 0 {
		return nil, fmt.Errorf("zero price")
	}
	return MulDivRoundingUp(amountY, Q96, priceX96)
}

// YForExactX returns the Y input required to receive exactly amountX,
// rounding up.
func YForExactX(amountX, priceX96 *big.Int) (*big.Int, error) {
	if priceX96 == nil || priceX96.Sign() == 0 {
		return nil, fmt.Errorf("zero price")
	}
	return MulDivRoundingUp(amountX, priceX96, Q96)
}

// NextPriceX96 returns the price one bin step away from priceX96.
// up scales by (10000+step)/10000, down by (10000-step)/10000.
func NextPriceX96(priceX96 *big.Int, binStep uint16, up bool) (*big.Int, error) {
	if binStep == 0 || uint64(binStep) >= 10_000 {
		return nil, fmt.Errorf("bin step out of range: %d", binStep)
	}
	numerator := new(big.Int).SetUint64(10_000 + uint64(binStep))
	if !up {
		numerator.SetUint64(10_000 - uint64(binStep))
	}
	return MulDiv(priceX96, numerator, stepDenominator)
}

// PriceAt walks the bin ladder from (baseID, basePriceX96) to id, applying
// one bin step per identifier delta.
func PriceAt(basePriceX96 *big.Int, baseID, id uint32, binStep uint16) (*big.Int, error) {
	if basePriceX96 == nil || basePriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("base price must be positive")
	}

	price := new(big.Int).Set(basePriceX96)
	current := baseID
	for current != id {
		up := id > current
		next, err := NextPriceX96(price, binStep, up)
		if err != nil {
			return nil, err
		}
		if next.Sign() == 0 {
			return nil, fmt.Errorf("price underflow at bin %d", current)
		}
		price = next
		if up {
			current++
		} else {
			current--
		}
	}
	return price, nil
}
