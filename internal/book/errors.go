package book

import "errors"

var (
	// ErrInsufficientLiquidity aborts a swap that exhausts every populated
	// bin before consuming its input.
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")

	// ErrPoolExists is returned when creating a pool whose id is taken.
	ErrPoolExists = errors.New("pool already exists")

	// ErrPoolNotFound is returned for operations against an unknown pool.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrReceiptNotFound is returned when redeeming an unknown or already
	// redeemed receipt.
	ErrReceiptNotFound = errors.New("liquidity receipt not found")

	// ErrNotReceiptOwner is returned when the withdrawer does not own the
	// receipt.
	ErrNotReceiptOwner = errors.New("caller does not own receipt")

	// ErrBadDepositSide is returned when a deposit places a token on the
	// wrong side of the active bin.
	ErrBadDepositSide = errors.New("token on wrong side of active bin")

	// ErrZeroAmount is returned for swaps or deposits with no value.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrBadDirection is returned for an unknown swap direction.
	ErrBadDirection = errors.New("unknown swap direction")
)
