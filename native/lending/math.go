package lending

import (
	"errors"
	"math/big"
)

var (
	oneMillion = big.NewInt(1_000_000)
	one        = big.NewInt(1)

	// msPerYear is the accrual year expressed in milliseconds, matching the
	// on-chain validator constant. Timestamps throughout the engine are POSIX
	// milliseconds.
	msPerYear = big.NewInt(31_536_000_000)
)

// ErrDivisionByZero is returned when a ratio computation is attempted with a
// zero divisor.
var ErrDivisionByZero = errors.New("lending: division by zero")

// MulDivFloor computes floor(a*b/c) with an unbounded intermediate product.
// The rounding mode is part of the validator contract; callers must not
// substitute MulDivCeil.
func MulDivFloor(a, b, c *big.Int) (*big.Int, error) {
	if c == nil || c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	return product.Div(product, c), nil
}

// MulDivCeil computes ceil(a*b/c) with an unbounded intermediate product.
func MulDivCeil(a, b, c *big.Int) (*big.Int, error) {
	if c == nil || c.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).DivMod(product, c, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, one)
	}
	return quo, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
