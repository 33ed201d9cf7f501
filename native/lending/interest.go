package lending

import (
	"errors"
	"math/big"
)

var (
	// ErrEmptyPool indicates a borrow rate was requested against a pool with
	// no value. Callers must not price loans against an uninitialised pool;
	// this is a precondition violation, not a recoverable state.
	ErrEmptyPool = errors.New("lending: cannot price borrow against empty pool")
	// ErrInvalidTimeRange indicates an accrual window that ends before it
	// starts.
	ErrInvalidTimeRange = errors.New("lending: accrual end precedes loan start")
)

// BorrowRate derives the ppm per-annum interest rate for a new loan of
// loanAmount against the pre-transition pool totals. The curve is piecewise
// linear in pool utilisation with a kink at OptimalUtilization.
//
// The floor-division order reproduces the validator arithmetic: the base rate
// is carried at ppm scale through the sum and the whole charge is
// floor-divided by 1e6 once at the end.
func BorrowRate(params InterestParams, loanAmount, lentOut, balance *big.Int) (*big.Int, error) {
	totalValue := new(big.Int).Add(bigOrZero(balance), bigOrZero(lentOut))
	if totalValue.Sign() == 0 {
		return nil, ErrEmptyPool
	}

	demand := new(big.Int).Add(bigOrZero(lentOut), bigOrZero(loanAmount))
	utilization, err := MulDivFloor(demand, oneMillion, totalValue)
	if err != nil {
		return nil, err
	}

	scaledBase := new(big.Int).Mul(bigOrZero(params.BaseInterestRate), oneMillion)
	optimal := bigOrZero(params.OptimalUtilization)

	if utilization.Cmp(optimal) <= 0 {
		charge := new(big.Int).Mul(utilization, bigOrZero(params.RSlope1))
		charge.Add(charge, scaledBase)
		return charge.Div(charge, oneMillion), nil
	}

	lowCharge := new(big.Int).Mul(optimal, bigOrZero(params.RSlope1))
	excess := new(big.Int).Sub(utilization, optimal)
	highCharge := excess.Mul(excess, bigOrZero(params.RSlope2))

	rate := new(big.Int).Add(scaledBase, lowCharge)
	rate.Add(rate, highCharge)
	return rate.Div(rate, oneMillion), nil
}

// AccruedInterest computes the interest owed on principal between the loan's
// start and the reference time, both POSIX milliseconds, at the ppm per-annum
// rate fixed at origination:
//
//	ceil(principal * rate * (now-start) / (msPerYear * 1e6))
//
// A non-positive result is clamped to 1 so that rounding on very short
// durations can never produce a zero-interest loan.
func AccruedInterest(rate, principal *big.Int, startMs, nowMs int64) (*big.Int, error) {
	if nowMs < startMs {
		return nil, ErrInvalidTimeRange
	}
	duration := big.NewInt(nowMs - startMs)
	scaled := new(big.Int).Mul(bigOrZero(principal), bigOrZero(rate))
	denominator := new(big.Int).Mul(msPerYear, oneMillion)
	interest, err := MulDivCeil(scaled, duration, denominator)
	if err != nil {
		return nil, err
	}
	if interest.Sign() <= 0 {
		return big.NewInt(1), nil
	}
	return interest, nil
}
