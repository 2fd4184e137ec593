package book

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"liquidityBook/internal/pricemath"
)

const feeDenominator = 1_000_000

// Pool owns an ordered collection of price bins and tracks the active one.
// Pools are not safe for concurrent use; the replay loop applies one
// instruction at a time.
type Pool struct {
	ID         common.Hash
	TokenX     common.Address
	TokenY     common.Address
	BinStep    uint16
	FeeRatePPM uint32

	baseBinID    uint32
	basePriceX96 *big.Int

	activeBin    uint32
	bins         map[uint32]*Bin
	binIDs       []uint32 // sorted ascending
	receipts     map[common.Hash]*Receipt
	receiptNonce uint64
}

// NewPool creates a pool with a single active bin at the given price.
func NewPool(tokenX, tokenY common.Address, binStep uint16, feeRatePPM uint32, initialPriceX96 *big.Int, activeBinID uint32) (*Pool, error) {
	if tokenX == tokenY {
		return nil, fmt.Errorf("identical tokens in pair")
	}
	if binStep == 0 || uint64(binStep) >= 10_000 {
		return nil, fmt.Errorf("bin step out of range: %d", binStep)
	}
	if feeRatePPM >= feeDenominator {
		return nil, fmt.Errorf("fee rate out of range: %d", feeRatePPM)
	}
	if initialPriceX96 == nil || initialPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("initial price must be positive")
	}

	p := &Pool{
		ID:           DerivePoolID(tokenX, tokenY, binStep),
		TokenX:       tokenX,
		TokenY:       tokenY,
		BinStep:      binStep,
		FeeRatePPM:   feeRatePPM,
		baseBinID:    activeBinID,
		basePriceX96: new(big.Int).Set(initialPriceX96),
		activeBin:    activeBinID,
		bins:         make(map[uint32]*Bin),
		receipts:     make(map[common.Hash]*Receipt),
	}
	if _, err := p.ensureBin(activeBinID); err != nil {
		return nil, err
	}
	return p, nil
}

// ActiveBinID returns the identifier of the currently active bin.
func (p *Pool) ActiveBinID() uint32 {
	return p.activeBin
}

// Bin returns the bin with the given id, if populated.
func (p *Pool) Bin(id uint32) (*Bin, bool) {
	bin, ok := p.bins[id]
	return bin, ok
}

// BinIDs returns the populated bin identifiers in ascending price order.
func (p *Pool) BinIDs() []uint32 {
	out := make([]uint32, len(p.binIDs))
	copy(out, p.binIDs)
	return out
}

// PriceAt returns the ladder price for a bin id, whether or not the bin is
// populated.
func (p *Pool) PriceAt(id uint32) (*big.Int, error) {
	return pricemath.PriceAt(p.basePriceX96, p.baseBinID, id, p.BinStep)
}

// ensureBin returns the bin with the given id, creating it at its ladder
// price if needed.
func (p *Pool) ensureBin(id uint32) (*Bin, error) {
	if bin, ok := p.bins[id]; ok {
		return bin, nil
	}
	price, err := p.PriceAt(id)
	if err != nil {
		return nil, err
	}
	return p.addBin(newBin(id, price)), nil
}

// addBin registers a bin, keeping binIDs sorted.
func (p *Pool) addBin(bin *Bin) *Bin {
	p.bins[bin.ID] = bin

	idx := sort.Search(len(p.binIDs), func(i int) bool { return p.binIDs[i] >= bin.ID })
	p.binIDs = append(p.binIDs, 0)
	copy(p.binIDs[idx+1:], p.binIDs[idx:])
	p.binIDs[idx] = bin.ID
	return bin
}

// nextPopulated returns the closest populated bin id strictly beyond from,
// in the given direction.
func (p *Pool) nextPopulated(from uint32, up bool) (uint32, bool) {
	if up {
		idx := sort.Search(len(p.binIDs), func(i int) bool { return p.binIDs[i] > from })
		if idx == len(p.binIDs) {
			return 0, false
		}
		return p.binIDs[idx], true
	}
	idx := sort.Search(len(p.binIDs), func(i int) bool { return p.binIDs[i] >= from })
	if idx == 0 {
		return 0, false
	}
	return p.binIDs[idx-1], true
}
