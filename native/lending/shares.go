package lending

import (
	"errors"
	"math/big"
)

var (
	// ErrWithdrawExceedsSupply indicates a burn larger than the outstanding
	// share supply.
	ErrWithdrawExceedsSupply = errors.New("lending: shares to burn exceed total supply")
	// ErrPoolDrained rejects a withdrawal that would leave the pool with zero
	// share supply. An initialised pool must always retain share supply so
	// that pending orders keep a valid conversion ratio.
	ErrPoolDrained = errors.New("lending: pool cannot be drained to zero shares")
	// ErrInvalidAmount rejects nil or non-positive order amounts.
	ErrInvalidAmount = errors.New("lending: amount must be positive")
)

// SharesForDeposit converts a deposit amount into the LP shares it mints and
// the proposed pool state after the deposit. The input state is not mutated;
// the caller applies the returned state only once the surrounding transaction
// commits.
//
// The first deposit into a pool with zero share supply bootstraps 1:1. Later
// deposits mint floor(amount * totalShares / (balance + lentOut)); flooring
// means repeated deposit/withdraw cycles shed rounding dust into the pool,
// which the validator relies on, so the direction must not be changed.
func SharesForDeposit(state PoolState, depositAmount *big.Int) (*big.Int, PoolState, error) {
	if depositAmount == nil || depositAmount.Sign() <= 0 {
		return nil, PoolState{}, ErrInvalidAmount
	}

	next := state.Clone()
	next.EnsureDefaults()

	var minted *big.Int
	if next.TotalShares.Sign() == 0 {
		minted = new(big.Int).Set(depositAmount)
	} else {
		var err error
		minted, err = MulDivFloor(depositAmount, next.TotalShares, next.TotalValue())
		if err != nil {
			return nil, PoolState{}, err
		}
	}

	next.Balance = new(big.Int).Add(next.Balance, depositAmount)
	next.TotalShares = new(big.Int).Add(next.TotalShares, minted)
	return minted, next, nil
}

// AmountForSharesBurn converts a share burn into the underlying amount it
// releases and the proposed pool state after the withdrawal. Like
// SharesForDeposit it never mutates its input.
func AmountForSharesBurn(state PoolState, sharesToBurn *big.Int) (*big.Int, PoolState, error) {
	if sharesToBurn == nil || sharesToBurn.Sign() <= 0 {
		return nil, PoolState{}, ErrInvalidAmount
	}

	next := state.Clone()
	next.EnsureDefaults()

	if sharesToBurn.Cmp(next.TotalShares) > 0 {
		return nil, PoolState{}, ErrWithdrawExceedsSupply
	}
	if sharesToBurn.Cmp(next.TotalShares) == 0 {
		return nil, PoolState{}, ErrPoolDrained
	}

	amount, err := MulDivFloor(sharesToBurn, next.TotalValue(), next.TotalShares)
	if err != nil {
		return nil, PoolState{}, err
	}

	next.Balance = new(big.Int).Sub(next.Balance, amount)
	next.TotalShares = new(big.Int).Sub(next.TotalShares, sharesToBurn)
	return amount, next, nil
}
