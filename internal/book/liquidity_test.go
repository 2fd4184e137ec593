package book

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityBook/internal/pricemath"
)

func onePrice() *big.Int {
	return new(big.Int).Set(pricemath.Q96)
}

func TestDepositIssuesReceiptAndCreditsBins(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 3_000, onePrice(), 1<<23)
	require.NoError(t, err)

	active := pool.ActiveBinID()
	receipt, err := pool.Deposit(alice, []BinDeposit{
		{BinID: active, AmountX: big.NewInt(500), AmountY: big.NewInt(700)},
		{BinID: active + 1, AmountX: big.NewInt(200)},
		{BinID: active - 1, AmountY: big.NewInt(300)},
	}, 100)
	require.NoError(t, err)

	assert.Equal(t, alice, receipt.Owner)
	assert.Equal(t, pool.ID, receipt.PoolID)
	assert.Equal(t, uint64(100), receipt.Timestamp)
	assert.Len(t, receipt.Bins, 3)

	bin, ok := pool.Bin(active + 1)
	require.True(t, ok)
	assert.Equal(t, int64(200), bin.ReserveX.Int64())
	assert.Equal(t, int64(0), bin.ReserveY.Int64())

	// Ladder prices are monotone around the active bin.
	lower, _ := pool.Bin(active - 1)
	upper, _ := pool.Bin(active + 1)
	activeBin, _ := pool.Bin(active)
	assert.True(t, lower.PriceX96.Cmp(activeBin.PriceX96) < 0)
	assert.True(t, upper.PriceX96.Cmp(activeBin.PriceX96) > 0)
}

func TestDepositRejectsWrongSide(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 3_000, onePrice(), 1<<23)
	require.NoError(t, err)
	active := pool.ActiveBinID()

	_, err = pool.Deposit(alice, []BinDeposit{{BinID: active + 1, AmountY: big.NewInt(10)}}, 100)
	assert.ErrorIs(t, err, ErrBadDepositSide)

	_, err = pool.Deposit(alice, []BinDeposit{{BinID: active - 1, AmountX: big.NewInt(10)}}, 100)
	assert.ErrorIs(t, err, ErrBadDepositSide)

	_, err = pool.Deposit(alice, nil, 100)
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = pool.Deposit(alice, []BinDeposit{{BinID: active}}, 100)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestDepositFailureLeavesPoolUntouched(t *testing.T) {
	// A huge bin step underflows the down-ladder price long before 50 bins,
	// so the second entry fails after the first was already validated.
	pool, err := NewPool(tokenA, tokenB, 9_999, 3_000, onePrice(), 1<<23)
	require.NoError(t, err)
	active := pool.ActiveBinID()
	before := pool.Snapshot()

	_, err = pool.Deposit(alice, []BinDeposit{
		{BinID: active, AmountY: big.NewInt(100)},
		{BinID: active - 50, AmountY: big.NewInt(1)},
	}, 100)
	require.Error(t, err)

	after := pool.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("failed deposit mutated the pool: %+v != %+v", before, after)
	}

	// The failed deposit must not burn a nonce: the next receipt keeps the
	// id a clean replay would derive.
	receipt, err := pool.Deposit(alice, []BinDeposit{{BinID: active, AmountY: big.NewInt(10)}}, 110)
	require.NoError(t, err)
	assert.Equal(t, deriveReceiptID(pool.ID, alice, 0), receipt.ID)
}

func TestReceiptIDsAreDeterministicAndDistinct(t *testing.T) {
	build := func() (*Pool, *Receipt, *Receipt) {
		pool, err := NewPool(tokenA, tokenB, 25, 3_000, onePrice(), 1<<23)
		require.NoError(t, err)
		first, err := pool.Deposit(alice, []BinDeposit{{BinID: pool.ActiveBinID(), AmountY: big.NewInt(10)}}, 100)
		require.NoError(t, err)
		second, err := pool.Deposit(alice, []BinDeposit{{BinID: pool.ActiveBinID(), AmountY: big.NewInt(10)}}, 100)
		require.NoError(t, err)
		return pool, first, second
	}

	_, firstA, secondA := build()
	_, firstB, secondB := build()

	assert.NotEqual(t, firstA.ID, secondA.ID)
	assert.Equal(t, firstA.ID, firstB.ID, "replaying the same deposits must yield the same ids")
	assert.Equal(t, secondA.ID, secondB.ID)
}

func TestWithdrawPaysPrincipalPlusFeesWithShortfallConversion(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 100_000, onePrice(), 1<<23)
	require.NoError(t, err)
	active := pool.ActiveBinID()

	receipt, err := pool.Deposit(alice, []BinDeposit{{BinID: active, AmountY: big.NewInt(1000)}}, 10)
	require.NoError(t, err)

	// Swap at t=20: fee 10, net 90, out 90 at price 1.
	_, err = pool.SwapExactIn(XForY, big.NewInt(100), 20)
	require.NoError(t, err)

	payout, err := pool.Withdraw(receipt.ID, alice, 30)
	require.NoError(t, err)

	// Principal 1000 Y of which 910 remain; the 90 Y shortfall converts to
	// 90 X at price 1. Fee share: sole provider claims the full 10 X event.
	assert.Equal(t, int64(100), payout.AmountX.Int64())
	assert.Equal(t, int64(910), payout.AmountY.Int64())
	assert.Equal(t, int64(10), payout.FeeShareX.Int64())
	assert.Equal(t, int64(0), payout.FeeShareY.Int64())

	bin, _ := pool.Bin(active)
	assert.Equal(t, int64(0), bin.ReserveX.Int64())
	assert.Equal(t, int64(0), bin.ReserveY.Int64())

	// Redeem-once.
	_, err = pool.Withdraw(receipt.ID, alice, 40)
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestWithdrawRequiresOwner(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 3_000, onePrice(), 1<<23)
	require.NoError(t, err)

	receipt, err := pool.Deposit(alice, []BinDeposit{{BinID: pool.ActiveBinID(), AmountY: big.NewInt(100)}}, 10)
	require.NoError(t, err)

	_, err = pool.Withdraw(receipt.ID, bob, 20)
	assert.ErrorIs(t, err, ErrNotReceiptOwner)
}

func TestFeeEventsBeforeDepositEarnNothing(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 100_000, onePrice(), 1<<23)
	require.NoError(t, err)
	active := pool.ActiveBinID()

	_, err = pool.Deposit(alice, []BinDeposit{{BinID: active, AmountY: big.NewInt(1000)}}, 10)
	require.NoError(t, err)

	// Fee event at t=20.
	_, err = pool.SwapExactIn(XForY, big.NewInt(100), 20)
	require.NoError(t, err)

	// Bob deposits after the event; it must not pay him.
	late, err := pool.Deposit(bob, []BinDeposit{{BinID: active, AmountY: big.NewInt(500)}}, 25)
	require.NoError(t, err)

	payout, err := pool.Withdraw(late.ID, bob, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(0), payout.FeeShareX.Int64())
	assert.Equal(t, int64(0), payout.FeeShareY.Int64())
	assert.Equal(t, int64(500), payout.AmountY.Int64())
}

func TestFeeSharingIsProRataAndExhaustsEvent(t *testing.T) {
	pool, err := NewPool(tokenA, tokenB, 25, 100_000, onePrice(), 1<<23)
	require.NoError(t, err)
	active := pool.ActiveBinID()

	small, err := pool.Deposit(alice, []BinDeposit{{BinID: active, AmountY: big.NewInt(1000)}}, 10)
	require.NoError(t, err)
	large, err := pool.Deposit(bob, []BinDeposit{{BinID: active, AmountY: big.NewInt(3000)}}, 10)
	require.NoError(t, err)

	// Fee 40 X on a bin worth 4000 in X terms at price 1.
	_, err = pool.SwapExactIn(XForY, big.NewInt(400), 20)
	require.NoError(t, err)

	payoutSmall, err := pool.Withdraw(small.ID, alice, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(10), payoutSmall.FeeShareX.Int64())

	payoutLarge, err := pool.Withdraw(large.ID, bob, 31)
	require.NoError(t, err)
	assert.Equal(t, int64(30), payoutLarge.FeeShareX.Int64())

	bin, _ := pool.Bin(active)
	require.Len(t, bin.Fees, 1)
	assert.Equal(t, int64(0), bin.Fees[0].Remaining.Int64())
}
