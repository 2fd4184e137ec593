package book

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// PoolSnapshot is a JSON-serializable image of a pool, used by the quote
// command and for test fixtures. Big integers are decimal strings.
type PoolSnapshot struct {
	PoolID       string            `json:"pool_id"`
	TokenX       string            `json:"token_x"`
	TokenY       string            `json:"token_y"`
	BinStep      uint16            `json:"bin_step"`
	FeeRatePPM   uint32            `json:"fee_rate_ppm"`
	BaseBinID    uint32            `json:"base_bin_id"`
	BasePriceX96 string            `json:"base_price_x96"`
	ActiveBin    uint32            `json:"active_bin"`
	ReceiptNonce uint64            `json:"receipt_nonce"`
	Bins         []BinSnapshot     `json:"bins"`
	Receipts     []ReceiptSnapshot `json:"receipts,omitempty"`
}

// BinSnapshot is one bin's serialized state.
type BinSnapshot struct {
	ID       uint32             `json:"id"`
	PriceX96 string             `json:"price_x96"`
	ReserveX string             `json:"reserve_x"`
	ReserveY string             `json:"reserve_y"`
	Fees     []FeeEventSnapshot `json:"fees,omitempty"`
}

// FeeEventSnapshot is one fee log entry's serialized state.
type FeeEventSnapshot struct {
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	Timestamp     uint64 `json:"timestamp"`
	TotalBinValue string `json:"total_bin_value"`
	Remaining     string `json:"remaining"`
	RemainingBase string `json:"remaining_base"`
}

// ReceiptSnapshot is one outstanding receipt's serialized state.
type ReceiptSnapshot struct {
	ID        string           `json:"id"`
	Owner     string           `json:"owner"`
	Timestamp uint64           `json:"timestamp"`
	Bins      []BinShareRecord `json:"bins"`
}

// BinShareRecord is one receipt bin contribution's serialized state.
type BinShareRecord struct {
	BinID   uint32 `json:"bin_id"`
	AmountX string `json:"amount_x"`
	AmountY string `json:"amount_y"`
}

// Snapshot serializes the pool state.
func (p *Pool) Snapshot() PoolSnapshot {
	snap := PoolSnapshot{
		PoolID:       p.ID.Hex(),
		TokenX:       p.TokenX.Hex(),
		TokenY:       p.TokenY.Hex(),
		BinStep:      p.BinStep,
		FeeRatePPM:   p.FeeRatePPM,
		BaseBinID:    p.baseBinID,
		BasePriceX96: p.basePriceX96.String(),
		ActiveBin:    p.activeBin,
		ReceiptNonce: p.receiptNonce,
	}

	for _, id := range p.binIDs {
		bin := p.bins[id]
		bs := BinSnapshot{
			ID:       id,
			PriceX96: bin.PriceX96.String(),
			ReserveX: bin.ReserveX.String(),
			ReserveY: bin.ReserveY.String(),
		}
		for _, event := range bin.Fees {
			bs.Fees = append(bs.Fees, FeeEventSnapshot{
				Token:         event.Token.String(),
				Amount:        event.Amount.String(),
				Timestamp:     event.Timestamp,
				TotalBinValue: event.TotalBinValue.String(),
				Remaining:     event.Remaining.String(),
				RemainingBase: event.RemainingBase.String(),
			})
		}
		snap.Bins = append(snap.Bins, bs)
	}

	receiptIDs := make([]common.Hash, 0, len(p.receipts))
	for id := range p.receipts {
		receiptIDs = append(receiptIDs, id)
	}
	sort.Slice(receiptIDs, func(i, j int) bool {
		return receiptIDs[i].Hex() < receiptIDs[j].Hex()
	})
	for _, id := range receiptIDs {
		receipt := p.receipts[id]
		rs := ReceiptSnapshot{
			ID:        receipt.ID.Hex(),
			Owner:     receipt.Owner.Hex(),
			Timestamp: receipt.Timestamp,
		}
		binIDs := make([]uint32, 0, len(receipt.Bins))
		for binID := range receipt.Bins {
			binIDs = append(binIDs, binID)
		}
		sort.Slice(binIDs, func(i, j int) bool { return binIDs[i] < binIDs[j] })
		for _, binID := range binIDs {
			share := receipt.Bins[binID]
			rs.Bins = append(rs.Bins, BinShareRecord{
				BinID:   binID,
				AmountX: share.AmountX.String(),
				AmountY: share.AmountY.String(),
			})
		}
		snap.Receipts = append(snap.Receipts, rs)
	}

	return snap
}

// RestorePool rebuilds a pool from a snapshot.
func RestorePool(snap PoolSnapshot) (*Pool, error) {
	if !common.IsHexAddress(snap.TokenX) || !common.IsHexAddress(snap.TokenY) {
		return nil, fmt.Errorf("invalid token address in snapshot")
	}
	basePrice, err := parseBig(snap.BasePriceX96)
	if err != nil {
		return nil, fmt.Errorf("base price: %w", err)
	}

	p := &Pool{
		ID:           common.HexToHash(snap.PoolID),
		TokenX:       common.HexToAddress(snap.TokenX),
		TokenY:       common.HexToAddress(snap.TokenY),
		BinStep:      snap.BinStep,
		FeeRatePPM:   snap.FeeRatePPM,
		baseBinID:    snap.BaseBinID,
		basePriceX96: basePrice,
		activeBin:    snap.ActiveBin,
		bins:         make(map[uint32]*Bin),
		receipts:     make(map[common.Hash]*Receipt),
		receiptNonce: snap.ReceiptNonce,
	}

	for _, bs := range snap.Bins {
		price, err := parseBig(bs.PriceX96)
		if err != nil {
			return nil, fmt.Errorf("bin %d price: %w", bs.ID, err)
		}
		bin := newBin(bs.ID, price)
		if bin.ReserveX, err = parseBig(bs.ReserveX); err != nil {
			return nil, fmt.Errorf("bin %d reserve x: %w", bs.ID, err)
		}
		if bin.ReserveY, err = parseBig(bs.ReserveY); err != nil {
			return nil, fmt.Errorf("bin %d reserve y: %w", bs.ID, err)
		}
		for _, fs := range bs.Fees {
			event := &FeeEvent{Timestamp: fs.Timestamp, Token: TokenX}
			if fs.Token == TokenY.String() {
				event.Token = TokenY
			}
			if event.Amount, err = parseBig(fs.Amount); err != nil {
				return nil, fmt.Errorf("bin %d fee amount: %w", bs.ID, err)
			}
			if event.TotalBinValue, err = parseBig(fs.TotalBinValue); err != nil {
				return nil, fmt.Errorf("bin %d fee base: %w", bs.ID, err)
			}
			if event.Remaining, err = parseBig(fs.Remaining); err != nil {
				return nil, fmt.Errorf("bin %d fee remaining: %w", bs.ID, err)
			}
			if event.RemainingBase, err = parseBig(fs.RemainingBase); err != nil {
				return nil, fmt.Errorf("bin %d fee remaining base: %w", bs.ID, err)
			}
			bin.Fees = append(bin.Fees, event)
		}
		p.bins[bs.ID] = bin
		p.binIDs = append(p.binIDs, bs.ID)
	}
	sort.Slice(p.binIDs, func(i, j int) bool { return p.binIDs[i] < p.binIDs[j] })

	if _, ok := p.bins[p.activeBin]; !ok {
		return nil, fmt.Errorf("active bin %d not present in snapshot", p.activeBin)
	}

	for _, rs := range snap.Receipts {
		if !common.IsHexAddress(rs.Owner) {
			return nil, fmt.Errorf("invalid receipt owner: %s", rs.Owner)
		}
		receipt := &Receipt{
			ID:        common.HexToHash(rs.ID),
			Owner:     common.HexToAddress(rs.Owner),
			PoolID:    p.ID,
			Timestamp: rs.Timestamp,
			Bins:      make(map[uint32]*BinShare),
		}
		for _, bsr := range rs.Bins {
			share := &BinShare{}
			if share.AmountX, err = parseBig(bsr.AmountX); err != nil {
				return nil, fmt.Errorf("receipt %s bin %d: %w", rs.ID, bsr.BinID, err)
			}
			if share.AmountY, err = parseBig(bsr.AmountY); err != nil {
				return nil, fmt.Errorf("receipt %s bin %d: %w", rs.ID, bsr.BinID, err)
			}
			receipt.Bins[bsr.BinID] = share
		}
		p.receipts[receipt.ID] = receipt
	}

	return p, nil
}

func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
