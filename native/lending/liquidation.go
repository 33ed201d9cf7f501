package lending

import (
	"errors"
	"fmt"
	"math/big"

	"lendpool/native/oracle"
)

// ErrLiquidationAborted wraps any feed or valuation failure encountered while
// evaluating a liquidation. A liquidation is never partially applied: the
// first failure aborts the whole attempt.
var ErrLiquidationAborted = errors.New("lending: liquidation aborted")

// LiquidationResult is the full outcome of a liquidation evaluation. When
// IsLiquidatable is false only the valuation fields are meaningful and the
// proposed pool state equals the input state.
type LiquidationResult struct {
	// DebtValue is principal plus accrued interest in reference-asset units,
	// priced on the buy leg.
	DebtValue *big.Int
	// CollateralValue is the pledged collateral in reference-asset units,
	// priced on the sell leg.
	CollateralValue *big.Int
	// HealthFactor is collateralValue*1e6/debtValue/liquidationThreshold with
	// both divisions floored in that order. A floored factor of zero means
	// the true ratio is below 1 and the loan is liquidatable.
	HealthFactor    *big.Int
	IsLiquidatable  bool
	AccruedInterest *big.Int
	// LiquidatorFee is the margin-based fee, floored at the config minimum.
	LiquidatorFee *big.Int
	// BorrowerLeftover is the residual collateral value routed back to the
	// borrower, in collateral-asset units. Zero when the margin net of fees
	// is not positive.
	BorrowerLeftover *big.Int
	// PlatformFee is the tier fee due on the accrued interest.
	PlatformFee *big.Int
	NewState    PoolState
}

// EvaluateLiquidation runs the liquidation state machine for one loan. The
// caller must supply unexpired feeds for any non-reference loan or collateral
// asset; nowMs picks the accrual reference time (the validity window's upper
// bound when building a transaction).
//
// The two terminal outcomes are healthy (no action) and liquidated (loan
// closed, pool credited with principal plus interest, fee and leftover
// finalised).
func EvaluateLiquidation(
	loan Loan,
	state PoolState,
	loanFeed, collateralFeed *oracle.Feed,
	nowMs int64,
) (*LiquidationResult, error) {
	interest, err := AccruedInterest(loan.InterestRate, loan.Amount, loan.DepositTime, nowMs)
	if err != nil {
		return nil, err
	}

	base := state.Clone()
	base.EnsureDefaults()

	debtRaw := new(big.Int).Add(bigOrZero(loan.Amount), interest)
	debtValue, err := referenceValue(loan.LoanAsset, loanFeed, debtRaw, valueBought)
	if err != nil {
		return nil, fmt.Errorf("%w: debt valuation: %w", ErrLiquidationAborted, err)
	}
	collateralValue, err := referenceValue(loan.CollateralAsset, collateralFeed, bigOrZero(loan.CollateralAmount), valueSold)
	if err != nil {
		return nil, fmt.Errorf("%w: collateral valuation: %w", ErrLiquidationAborted, err)
	}

	healthFactor, err := healthFactor(collateralValue, debtValue, loan.Config.LiquidationThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLiquidationAborted, err)
	}

	result := &LiquidationResult{
		DebtValue:        debtValue,
		CollateralValue:  collateralValue,
		HealthFactor:     healthFactor,
		AccruedInterest:  interest,
		LiquidatorFee:    big.NewInt(0),
		BorrowerLeftover: big.NewInt(0),
		PlatformFee:      big.NewInt(0),
		NewState:         base,
	}

	if healthFactor.Cmp(one) >= 0 {
		return result, nil
	}
	result.IsLiquidatable = true

	margin := new(big.Int).Sub(collateralValue, debtValue)
	fee, err := MulDivFloor(margin, bigOrZero(loan.Config.Fees.LiquidationFee), oneMillion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLiquidationAborted, err)
	}
	if minFee := bigOrZero(loan.Config.Fees.MinLiquidationFee); fee.Cmp(minFee) < 0 {
		fee = new(big.Int).Set(minFee)
	}
	result.LiquidatorFee = fee

	remaining := new(big.Int).Sub(margin, fee)
	if remaining.Sign() > 0 {
		leftover := remaining
		if !loan.CollateralAsset.IsReference() {
			if collateralFeed == nil {
				return nil, fmt.Errorf("%w: %w", ErrLiquidationAborted, oracle.ErrAssetNotInFeed)
			}
			leftover, err = collateralFeed.AssetGainFromSale(loan.CollateralAsset, remaining)
			if err != nil {
				return nil, fmt.Errorf("%w: leftover conversion: %w", ErrLiquidationAborted, err)
			}
		}
		result.BorrowerLeftover = leftover
	}

	platformFee, err := InterestPlatformFee(interest, loan.Amount, base.Balance, base.LentOut, loan.Config.Fees)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLiquidationAborted, err)
	}
	result.PlatformFee = platformFee

	next := base.Clone()
	next.Balance = new(big.Int).Add(next.Balance, debtRaw)
	next.LentOut = new(big.Int).Sub(next.LentOut, bigOrZero(loan.Amount))
	result.NewState = next

	return result, nil
}

type valueLeg uint8

const (
	valueSold valueLeg = iota
	valueBought
)

// referenceValue prices amount of asset in reference units on the requested
// leg, passing reference amounts through untouched.
func referenceValue(asset oracle.Asset, feed *oracle.Feed, amount *big.Int, leg valueLeg) (*big.Int, error) {
	if asset.IsReference() {
		return new(big.Int).Set(amount), nil
	}
	if feed == nil {
		return nil, oracle.ErrAssetNotInFeed
	}
	if leg == valueBought {
		return feed.ValueIfBought(asset, amount)
	}
	return feed.ValueIfSold(asset, amount)
}

// healthFactor computes collateralValue*1e6/debtValue/threshold with two
// floor divisions in that order. The order matches the validator; changing it
// changes rounding and therefore which boundary loans are liquidatable.
func healthFactor(collateralValue, debtValue, threshold *big.Int) (*big.Int, error) {
	scaled, err := MulDivFloor(collateralValue, oneMillion, debtValue)
	if err != nil {
		return nil, err
	}
	if threshold == nil || threshold.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	return scaled.Div(scaled, threshold), nil
}
