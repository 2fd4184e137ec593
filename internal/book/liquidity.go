package book

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"liquidityBook/internal/pricemath"
)

// BinShare records how much a receipt contributed to one bin.
type BinShare struct {
	AmountX *big.Int
	AmountY *big.Int
}

// Receipt is a liquidity provider's proof of deposit. It is redeemable
// exactly once; fee events dated at or before Timestamp earn nothing.
type Receipt struct {
	ID        common.Hash
	Owner     common.Address
	PoolID    common.Hash
	Timestamp uint64
	Bins      map[uint32]*BinShare
}

// BinDeposit is one requested bin contribution.
type BinDeposit struct {
	BinID   uint32
	AmountX *big.Int
	AmountY *big.Int
}

// Payout is the result of redeeming a receipt. FeeShare amounts are the
// portion of the payout earned from fee events.
type Payout struct {
	AmountX   *big.Int
	AmountY   *big.Int
	FeeShareX *big.Int
	FeeShareY *big.Int
}

// Deposit credits liquidity into the requested bins and issues a receipt.
// Bins above the active one accept only token X, bins below only token Y;
// the active bin accepts both.
func (p *Pool) Deposit(owner common.Address, deposits []BinDeposit, timestamp uint64) (*Receipt, error) {
	if len(deposits) == 0 {
		return nil, ErrZeroAmount
	}

	// Validate every entry and resolve ladder prices for missing bins before
	// touching any reserve, so a bad entry leaves the pool untouched.
	total := big.NewInt(0)
	prices := make(map[uint32]*big.Int)
	for _, d := range deposits {
		amountX, amountY := normalize(d.AmountX), normalize(d.AmountY)
		if amountX.Sign() < 0 || amountY.Sign() < 0 {
			return nil, fmt.Errorf("negative deposit for bin %d", d.BinID)
		}
		if d.BinID > p.activeBin && amountY.Sign() > 0 {
			return nil, fmt.Errorf("%w: bin %d is above active, token Y not accepted", ErrBadDepositSide, d.BinID)
		}
		if d.BinID < p.activeBin && amountX.Sign() > 0 {
			return nil, fmt.Errorf("%w: bin %d is below active, token X not accepted", ErrBadDepositSide, d.BinID)
		}
		if _, ok := p.bins[d.BinID]; !ok {
			if _, seen := prices[d.BinID]; !seen {
				price, err := p.PriceAt(d.BinID)
				if err != nil {
					return nil, fmt.Errorf("bin %d: %w", d.BinID, err)
				}
				prices[d.BinID] = price
			}
		}
		total.Add(total, amountX)
		total.Add(total, amountY)
	}
	if total.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	receipt := &Receipt{
		ID:        deriveReceiptID(p.ID, owner, p.receiptNonce),
		Owner:     owner,
		PoolID:    p.ID,
		Timestamp: timestamp,
		Bins:      make(map[uint32]*BinShare),
	}
	p.receiptNonce++

	for _, d := range deposits {
		amountX, amountY := normalize(d.AmountX), normalize(d.AmountY)
		if amountX.Sign() == 0 && amountY.Sign() == 0 {
			continue
		}
		bin, ok := p.bins[d.BinID]
		if !ok {
			bin = p.addBin(newBin(d.BinID, prices[d.BinID]))
		}
		bin.ReserveX.Add(bin.ReserveX, amountX)
		bin.ReserveY.Add(bin.ReserveY, amountY)

		share, ok := receipt.Bins[d.BinID]
		if !ok {
			share = &BinShare{AmountX: big.NewInt(0), AmountY: big.NewInt(0)}
			receipt.Bins[d.BinID] = share
		}
		share.AmountX.Add(share.AmountX, amountX)
		share.AmountY.Add(share.AmountY, amountY)
	}

	p.receipts[receipt.ID] = receipt
	return receipt, nil
}

// Receipt returns an outstanding receipt by id.
func (p *Pool) Receipt(id common.Hash) (*Receipt, bool) {
	r, ok := p.receipts[id]
	return r, ok
}

// Withdraw redeems a receipt: principal per bin plus a pro-rata share of
// every fee event logged after the deposit. A shortfall in one token is paid
// in the other at the bin price. The receipt is deleted, so a second
// withdrawal fails with ErrReceiptNotFound.
func (p *Pool) Withdraw(receiptID common.Hash, owner common.Address, timestamp uint64) (Payout, error) {
	receipt, ok := p.receipts[receiptID]
	if !ok {
		return Payout{}, ErrReceiptNotFound
	}
	if receipt.Owner != owner {
		return Payout{}, ErrNotReceiptOwner
	}

	payout := Payout{
		AmountX:   big.NewInt(0),
		AmountY:   big.NewInt(0),
		FeeShareX: big.NewInt(0),
		FeeShareY: big.NewInt(0),
	}

	binIDs := make([]uint32, 0, len(receipt.Bins))
	for id := range receipt.Bins {
		binIDs = append(binIDs, id)
	}
	sort.Slice(binIDs, func(i, j int) bool { return binIDs[i] < binIDs[j] })

	for _, id := range binIDs {
		share := receipt.Bins[id]
		bin := p.bins[id]

		feeX, feeY, err := p.claimFees(bin, share, receipt.Timestamp)
		if err != nil {
			return Payout{}, err
		}
		payout.FeeShareX.Add(payout.FeeShareX, feeX)
		payout.FeeShareY.Add(payout.FeeShareY, feeY)

		oweX := new(big.Int).Add(share.AmountX, feeX)
		oweY := new(big.Int).Add(share.AmountY, feeY)

		paidX, paidY, err := settleFromBin(bin, oweX, oweY)
		if err != nil {
			return Payout{}, err
		}
		payout.AmountX.Add(payout.AmountX, paidX)
		payout.AmountY.Add(payout.AmountY, paidY)
	}

	delete(p.receipts, receiptID)
	return payout, nil
}

// claimFees draws the receipt's share out of each eligible fee event,
// shrinking the event's remaining amount and claimable base.
func (p *Pool) claimFees(bin *Bin, share *BinShare, depositTS uint64) (*big.Int, *big.Int, error) {
	feeX := big.NewInt(0)
	feeY := big.NewInt(0)

	for _, event := range bin.Fees {
		if event.Timestamp <= depositTS || event.Remaining.Sign() == 0 {
			continue
		}

		base, err := shareValueIn(share, event.Token, bin.PriceX96)
		if err != nil {
			return nil, nil, err
		}
		if base.Sign() == 0 {
			continue
		}

		var claim *big.Int
		if base.Cmp(event.RemainingBase) >= 0 {
			claim = new(big.Int).Set(event.Remaining)
			event.Remaining.SetInt64(0)
			event.RemainingBase.SetInt64(0)
		} else {
			claim, err = pricemath.MulDiv(event.Remaining, base, event.RemainingBase)
			if err != nil {
				return nil, nil, err
			}
			event.Remaining.Sub(event.Remaining, claim)
			event.RemainingBase.Sub(event.RemainingBase, base)
		}

		if event.Token == TokenX {
			feeX.Add(feeX, claim)
		} else {
			feeY.Add(feeY, claim)
		}
	}

	return feeX, feeY, nil
}

// settleFromBin pays what the bin owes, converting any shortfall into the
// other token at the bin price.
func settleFromBin(bin *Bin, oweX, oweY *big.Int) (*big.Int, *big.Int, error) {
	paidX := minBig(oweX, bin.ReserveX)
	bin.ReserveX.Sub(bin.ReserveX, paidX)

	shortX := new(big.Int).Sub(oweX, paidX)
	if shortX.Sign() > 0 {
		extraY, err := pricemath.XToY(shortX, bin.PriceX96)
		if err != nil {
			return nil, nil, err
		}
		oweY = new(big.Int).Add(oweY, extraY)
	}

	paidY := minBig(oweY, bin.ReserveY)
	bin.ReserveY.Sub(bin.ReserveY, paidY)

	shortY := new(big.Int).Sub(oweY, paidY)
	if shortY.Sign() > 0 {
		extraX, err := pricemath.YToX(shortY, bin.PriceX96)
		if err != nil {
			return nil, nil, err
		}
		more := minBig(extraX, bin.ReserveX)
		bin.ReserveX.Sub(bin.ReserveX, more)
		paidX = new(big.Int).Add(paidX, more)
	}

	return paidX, paidY, nil
}

// shareValueIn values a receipt's bin contribution in the given token at the
// bin price.
func shareValueIn(share *BinShare, side TokenSide, priceX96 *big.Int) (*big.Int, error) {
	if side == TokenX {
		converted, err := pricemath.YToX(share.AmountY, priceX96)
		if err != nil {
			return nil, err
		}
		return converted.Add(converted, share.AmountX), nil
	}
	converted, err := pricemath.XToY(share.AmountX, priceX96)
	if err != nil {
		return nil, err
	}
	return converted.Add(converted, share.AmountY), nil
}

func normalize(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
