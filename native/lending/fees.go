package lending

import "math/big"

// PlatformFee looks up the ppm platform fee rate for a loan of loanAmount
// against the pool totals. Utilisation here is the loan's own share of pool
// value, floor(loanAmount * 1e6 / (lentOut + balance)); the bracket bounds
// are exclusive on the upper edge.
//
// The lookup is pure; the only failure mode is a zero-value pool, surfaced as
// ErrDivisionByZero.
func PlatformFee(loanAmount, balance, lentOut *big.Int, tiers FeeTiers) (*big.Int, error) {
	totalValue := new(big.Int).Add(bigOrZero(lentOut), bigOrZero(balance))
	utilization, err := MulDivFloor(bigOrZero(loanAmount), oneMillion, totalValue)
	if err != nil {
		return nil, err
	}

	switch {
	case utilization.Cmp(bigOrZero(tiers.Tier1Threshold)) < 0:
		return cloneBig(bigOrZero(tiers.Tier1Fee)), nil
	case utilization.Cmp(bigOrZero(tiers.Tier2Threshold)) < 0:
		return cloneBig(bigOrZero(tiers.Tier2Fee)), nil
	default:
		return cloneBig(bigOrZero(tiers.Tier3Fee)), nil
	}
}

// InterestPlatformFee applies the tier rate selected by PlatformFee to the
// interest accrued at loan closure, floor-rounded at ppm scale.
func InterestPlatformFee(accruedInterest, loanAmount, balance, lentOut *big.Int, tiers FeeTiers) (*big.Int, error) {
	rate, err := PlatformFee(loanAmount, balance, lentOut, tiers)
	if err != nil {
		return nil, err
	}
	return MulDivFloor(bigOrZero(accruedInterest), rate, oneMillion)
}
