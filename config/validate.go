package config

import (
	"fmt"
	"math/big"
	"strings"
)

var ppmCeiling = big.NewInt(1_000_000)

// Validate checks the configuration for values the engine cannot operate
// with. It is called once at startup; a failing config aborts the daemon.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: RateLimitPerMinute must be positive")
	}

	if err := requirePositive("pool.LiquidationThreshold", c.Pool.LiquidationThreshold); err != nil {
		return err
	}
	if err := requirePositive("pool.InitialCollateralRatio", c.Pool.InitialCollateralRatio); err != nil {
		return err
	}
	if err := requirePositive("pool.interest.OptimalUtilization", c.Pool.Interest.OptimalUtilization); err != nil {
		return err
	}
	if c.Pool.Interest.OptimalUtilization.Cmp(ppmCeiling) > 0 {
		return fmt.Errorf("config: pool.interest.OptimalUtilization exceeds 1e6 ppm")
	}
	for name, v := range map[string]*big.Int{
		"pool.interest.BaseInterestRate": c.Pool.Interest.BaseInterestRate,
		"pool.interest.RSlope1":          c.Pool.Interest.RSlope1,
		"pool.interest.RSlope2":          c.Pool.Interest.RSlope2,
		"pool.fees.Tier1Fee":             c.Pool.Fees.Tier1Fee,
		"pool.fees.Tier2Fee":             c.Pool.Fees.Tier2Fee,
		"pool.fees.Tier3Fee":             c.Pool.Fees.Tier3Fee,
		"pool.fees.LiquidationFee":       c.Pool.Fees.LiquidationFee,
	} {
		if v == nil || v.Sign() < 0 {
			return fmt.Errorf("config: %s must be set and non-negative", name)
		}
	}

	t1, t2 := c.Pool.Fees.Tier1Threshold, c.Pool.Fees.Tier2Threshold
	if t1 == nil || t2 == nil || t1.Cmp(t2) >= 0 {
		return fmt.Errorf("config: pool.fees tier thresholds must be set and ascending")
	}
	return nil
}

func requirePositive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("config: %s must be set and positive", name)
	}
	return nil
}
