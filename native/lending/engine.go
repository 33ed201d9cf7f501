package lending

import (
	"errors"
	"math/big"
	"time"

	"lendpool/native/oracle"
)

var (
	// ErrInsufficientLiquidity indicates the pool cannot fund the requested
	// principal.
	ErrInsufficientLiquidity = errors.New("lending: insufficient pool liquidity")
	// ErrRateAboveLimit indicates the quoted borrow rate exceeds the
	// borrower's stated maximum.
	ErrRateAboveLimit = errors.New("lending: interest rate above borrower limit")
	// ErrUndercollateralized indicates the offered collateral does not meet
	// the initial collateral ratio for the requested principal.
	ErrUndercollateralized = errors.New("lending: collateral below initial ratio")
)

// ValidityRange is the time window a proposed transaction will be valid in.
// Interest accrual for repay and liquidation is evaluated at the upper bound,
// the latest instant the transaction could land.
type ValidityRange struct {
	ValidFrom int64
	ValidTo   int64
}

// NewValidityRange derives the standard window around now: one minute of
// backdating to absorb clock skew, five minutes of time to live.
func NewValidityRange(now time.Time) ValidityRange {
	from := now.Add(-time.Minute).UnixMilli()
	return ValidityRange{ValidFrom: from, ValidTo: from + (5 * time.Minute).Milliseconds()}
}

// DepositResult is the proposed outcome of a deposit order.
type DepositResult struct {
	// SharesToMint includes the contract-mandated DepositSharePad on top of
	// the ratio-derived amount.
	SharesToMint *big.Int
	NewState     PoolState
}

// WithdrawResult is the proposed outcome of a withdraw order.
type WithdrawResult struct {
	AmountToReturn *big.Int
	NewState       PoolState
}

// BorrowResult is the proposed outcome of a borrow order: the loan record to
// be created and the pool state after funds leave the pool.
type BorrowResult struct {
	Loan     Loan
	NewState PoolState
}

// RepayResult is the proposed outcome of closing a loan by repayment.
type RepayResult struct {
	AccruedInterest *big.Int
	// RepayAmount is principal plus accrued interest, the total returning to
	// the pool.
	RepayAmount *big.Int
	// PlatformFee is the tier fee due on the accrued interest.
	PlatformFee *big.Int
	NewState    PoolState
}

// All engine operations are pure: they read the supplied state, never mutate
// it, and return a proposed transition. Whether concurrent evaluations
// against the same base state are allowed is the caller's affair; exactly one
// proposal can be committed externally.

// ApplyDeposit evaluates a deposit order against the pool.
func ApplyDeposit(cfg PoolConfig, state PoolState, depositAmount *big.Int) (*DepositResult, error) {
	minted, next, err := SharesForDeposit(state, depositAmount)
	if err != nil {
		return nil, err
	}
	pad := bigOrZero(cfg.DepositSharePad)
	if pad.Sign() > 0 {
		minted = new(big.Int).Add(minted, pad)
		next.TotalShares = new(big.Int).Add(next.TotalShares, pad)
	}
	return &DepositResult{SharesToMint: minted, NewState: next}, nil
}

// ApplyWithdraw evaluates a withdraw order against the pool.
func ApplyWithdraw(cfg PoolConfig, state PoolState, sharesToBurn *big.Int) (*WithdrawResult, error) {
	amount, next, err := AmountForSharesBurn(state, sharesToBurn)
	if err != nil {
		return nil, err
	}
	return &WithdrawResult{AmountToReturn: amount, NewState: next}, nil
}

// ApplyBorrow evaluates a borrow order. The interest rate is quoted from the
// pre-transition pool totals and fixed into the loan; if it exceeds
// maxInterestRate the order is rejected. The returned loan embeds a snapshot
// of cfg so later valuations survive governance config changes.
func ApplyBorrow(
	cfg PoolConfig,
	state PoolState,
	loanAsset, collateralAsset oracle.Asset,
	loanAmount, collateralAmount, maxInterestRate *big.Int,
	ref OutputRef,
	window ValidityRange,
) (*BorrowResult, error) {
	if loanAmount == nil || loanAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	base := state.Clone()
	base.EnsureDefaults()
	if loanAmount.Cmp(base.Balance) >= 0 {
		return nil, ErrInsufficientLiquidity
	}

	rate, err := BorrowRate(cfg.Interest, loanAmount, base.LentOut, base.Balance)
	if err != nil {
		return nil, err
	}
	if maxInterestRate != nil && rate.Cmp(maxInterestRate) > 0 {
		return nil, ErrRateAboveLimit
	}

	if err := checkInitialCollateral(cfg, loanAmount, collateralAmount, loanAsset, collateralAsset); err != nil {
		return nil, err
	}

	next := base.Clone()
	next.Balance = new(big.Int).Sub(next.Balance, loanAmount)
	next.LentOut = new(big.Int).Add(next.LentOut, loanAmount)

	loan := Loan{
		Amount:           new(big.Int).Set(loanAmount),
		InterestRate:     rate,
		DepositTime:      window.ValidFrom,
		CollateralAmount: cloneBig(collateralAmount),
		LoanAsset:        loanAsset,
		CollateralAsset:  collateralAsset,
		BorrowerToken:    BorrowerTokenName(ref),
		Config:           cfg.Clone(),
	}
	return &BorrowResult{Loan: loan, NewState: next}, nil
}

// checkInitialCollateral enforces the origination ratio for same-asset pairs,
// where no feed is needed. Cross-asset ratios are enforced by the validator
// against the oracle feeds attached to the transaction.
func checkInitialCollateral(cfg PoolConfig, loanAmount, collateralAmount *big.Int, loanAsset, collateralAsset oracle.Asset) error {
	if !loanAsset.Equal(collateralAsset) {
		return nil
	}
	if collateralAmount == nil {
		return ErrUndercollateralized
	}
	required, err := MulDivCeil(loanAmount, bigOrZero(cfg.InitialCollateralRatio), oneMillion)
	if err != nil {
		return err
	}
	if collateralAmount.Cmp(required) < 0 {
		return ErrUndercollateralized
	}
	return nil
}

// ApplyRepay evaluates closing a loan by full repayment. Interest accrues to
// the upper bound of the validity window; the principal and interest return
// to the pool balance and the principal leaves lentOut.
func ApplyRepay(loan Loan, state PoolState, window ValidityRange) (*RepayResult, error) {
	interest, err := AccruedInterest(loan.InterestRate, loan.Amount, loan.DepositTime, window.ValidTo)
	if err != nil {
		return nil, err
	}

	base := state.Clone()
	base.EnsureDefaults()

	repay := new(big.Int).Add(bigOrZero(loan.Amount), interest)

	fee, err := InterestPlatformFee(interest, loan.Amount, base.Balance, base.LentOut, loan.Config.Fees)
	if err != nil {
		return nil, err
	}

	next := base.Clone()
	next.Balance = new(big.Int).Add(next.Balance, repay)
	next.LentOut = new(big.Int).Sub(next.LentOut, bigOrZero(loan.Amount))

	return &RepayResult{
		AccruedInterest: interest,
		RepayAmount:     repay,
		PlatformFee:     fee,
		NewState:        next,
	}, nil
}

// ApplyMerge folds a delayed merge record back into the pool: the repay
// amount banked in the merge plus the merge action fee rejoin the balance,
// and the merged loan's principal leaves lentOut.
func ApplyMerge(cfg PoolConfig, state PoolState, loanAmount, repayAmount *big.Int) (PoolState, error) {
	if loanAmount == nil || repayAmount == nil {
		return PoolState{}, ErrInvalidAmount
	}

	next := state.Clone()
	next.EnsureDefaults()
	next.Balance = new(big.Int).Add(next.Balance, repayAmount)
	next.Balance.Add(next.Balance, bigOrZero(cfg.MergeActionFee))
	next.LentOut = new(big.Int).Sub(next.LentOut, loanAmount)
	return next, nil
}
