package lending

import (
	"math/big"

	"lendpool/native/oracle"
)

// PoolState captures the economic accounting state of a single lending pool.
// Amount values are denominated in the pool's loan asset and expressed as big
// integers to match on-chain precision.
type PoolState struct {
	// Balance is the liquidity currently available for borrowing.
	Balance *big.Int
	// LentOut tracks the outstanding principal across all open loans.
	LentOut *big.Int
	// TotalShares is the outstanding LP share supply backed by the pool.
	TotalShares *big.Int
}

// Clone returns a deep copy of the pool state.
func (s PoolState) Clone() PoolState {
	return PoolState{
		Balance:     cloneBig(s.Balance),
		LentOut:     cloneBig(s.LentOut),
		TotalShares: cloneBig(s.TotalShares),
	}
}

// TotalValue returns balance + lentOut, the quantity LP shares are a claim on.
func (s PoolState) TotalValue() *big.Int {
	return new(big.Int).Add(bigOrZero(s.Balance), bigOrZero(s.LentOut))
}

// EnsureDefaults populates nil amount fields so persisted snapshots decode
// safely.
func (s *PoolState) EnsureDefaults() {
	if s.Balance == nil {
		s.Balance = big.NewInt(0)
	}
	if s.LentOut == nil {
		s.LentOut = big.NewInt(0)
	}
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
}

// InterestParams are the fixed parameters of the utilisation-keyed borrow
// rate curve. All rates are parts-per-million integers.
type InterestParams struct {
	OptimalUtilization *big.Int `toml:"OptimalUtilization"`
	BaseInterestRate   *big.Int `toml:"BaseInterestRate"`
	RSlope1            *big.Int `toml:"RSlope1"`
	RSlope2            *big.Int `toml:"RSlope2"`
}

// Clone returns a deep copy of the curve parameters.
func (p InterestParams) Clone() InterestParams {
	return InterestParams{
		OptimalUtilization: cloneBig(p.OptimalUtilization),
		BaseInterestRate:   cloneBig(p.BaseInterestRate),
		RSlope1:            cloneBig(p.RSlope1),
		RSlope2:            cloneBig(p.RSlope2),
	}
}

// FeeTiers is the utilisation-indexed platform fee schedule applied to
// accrued interest at loan closure, plus the liquidation fee parameters.
// Fees and thresholds are parts-per-million integers.
type FeeTiers struct {
	Tier1Fee       *big.Int `toml:"Tier1Fee"`
	Tier1Threshold *big.Int `toml:"Tier1Threshold"`
	Tier2Fee       *big.Int `toml:"Tier2Fee"`
	Tier2Threshold *big.Int `toml:"Tier2Threshold"`
	Tier3Fee       *big.Int `toml:"Tier3Fee"`
	// MinLiquidationFee is the floor applied to the liquidator fee regardless
	// of the margin-based computation.
	MinLiquidationFee *big.Int `toml:"MinLiquidationFee"`
	// LiquidationFee is the ppm rate applied to the collateral margin during
	// liquidation.
	LiquidationFee *big.Int `toml:"LiquidationFee"`
}

// Clone returns a deep copy of the fee schedule.
func (f FeeTiers) Clone() FeeTiers {
	return FeeTiers{
		Tier1Fee:          cloneBig(f.Tier1Fee),
		Tier1Threshold:    cloneBig(f.Tier1Threshold),
		Tier2Fee:          cloneBig(f.Tier2Fee),
		Tier2Threshold:    cloneBig(f.Tier2Threshold),
		Tier3Fee:          cloneBig(f.Tier3Fee),
		MinLiquidationFee: cloneBig(f.MinLiquidationFee),
		LiquidationFee:    cloneBig(f.LiquidationFee),
	}
}

// PoolConfig groups the governance-controlled parameters of a pool. Configs
// are immutable per epoch: governance replaces them wholesale, so every loan
// carries the snapshot active at origination rather than a live reference.
type PoolConfig struct {
	// LiquidationThreshold is the ppm ratio below which a position becomes
	// eligible for liquidation.
	LiquidationThreshold *big.Int `toml:"LiquidationThreshold"`
	// InitialCollateralRatio is the ppm over-collateralisation required when a
	// loan opens.
	InitialCollateralRatio *big.Int `toml:"InitialCollateralRatio"`
	Interest               InterestParams `toml:"interest"`
	Fees                   FeeTiers       `toml:"fees"`
	// MergeActionFee is added to the pool balance when a delayed merge is
	// folded back into the pool.
	MergeActionFee *big.Int `toml:"MergeActionFee"`
	// DepositSharePad is minted on top of the computed LP amount on every
	// deposit. The deployed pool contract demands the extra units; later
	// contract versions removed the requirement.
	DepositSharePad *big.Int `toml:"DepositSharePad"`
	// FeeCollector identifies the platform fee recipient.
	FeeCollector string `toml:"FeeCollector"`
}

// Clone returns a deep copy of the pool config.
func (c PoolConfig) Clone() PoolConfig {
	return PoolConfig{
		LiquidationThreshold:   cloneBig(c.LiquidationThreshold),
		InitialCollateralRatio: cloneBig(c.InitialCollateralRatio),
		Interest:               c.Interest.Clone(),
		Fees:                   c.Fees.Clone(),
		MergeActionFee:         cloneBig(c.MergeActionFee),
		DepositSharePad:        cloneBig(c.DepositSharePad),
		FeeCollector:           c.FeeCollector,
	}
}

// Loan is a single collateralised position. It is created on borrow and
// consumed whole on repay, merge or liquidation; it is never partially
// updated.
type Loan struct {
	// Amount is the borrowed principal.
	Amount *big.Int
	// InterestRate is the ppm per-annum rate fixed at origination.
	InterestRate *big.Int
	// DepositTime is the origination timestamp in POSIX milliseconds.
	DepositTime int64
	// CollateralAmount is the pledged collateral quantity.
	CollateralAmount *big.Int
	LoanAsset        oracle.Asset
	CollateralAsset  oracle.Asset
	// BorrowerToken names the collateral record; it doubles as the burn
	// authority when the loan closes.
	BorrowerToken string
	// Config is the pool config snapshot active at origination. Fee and
	// threshold parameters may have changed since, so valuations must use
	// this copy.
	Config PoolConfig
}

// Clone returns a deep copy of the loan record.
func (l Loan) Clone() Loan {
	clone := l
	clone.Amount = cloneBig(l.Amount)
	clone.InterestRate = cloneBig(l.InterestRate)
	clone.CollateralAmount = cloneBig(l.CollateralAmount)
	clone.Config = l.Config.Clone()
	return clone
}

// DefaultPoolConfig mirrors the parameters applied when a pool is created.
// Governance can replace every value later.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		LiquidationThreshold:   big.NewInt(1_800_000),
		InitialCollateralRatio: big.NewInt(1_900_000),
		Interest: InterestParams{
			OptimalUtilization: big.NewInt(450_000),
			BaseInterestRate:   big.NewInt(30_000),
			RSlope1:            big.NewInt(75_000),
			RSlope2:            big.NewInt(300_000),
		},
		Fees: FeeTiers{
			Tier1Fee:          big.NewInt(0),
			Tier1Threshold:    big.NewInt(100_000),
			Tier2Fee:          big.NewInt(0),
			Tier2Threshold:    big.NewInt(450_000),
			Tier3Fee:          big.NewInt(0),
			MinLiquidationFee: big.NewInt(0),
			LiquidationFee:    big.NewInt(25_000),
		},
		MergeActionFee:  big.NewInt(0),
		DepositSharePad: big.NewInt(200),
	}
}
