package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"lendpool/native/lending"
)

// Config is the on-disk configuration of the lendpool daemon.
type Config struct {
	// RPCAddress is the listen address of the HTTP quote API.
	RPCAddress string `toml:"RPCAddress"`
	// DataDir holds the LevelDB snapshot store.
	DataDir     string `toml:"DataDir"`
	Environment string `toml:"Environment"`
	// LogFile enables a rotating file sink next to stdout when non-empty.
	LogFile      string `toml:"LogFile"`
	LogMaxSizeMB int    `toml:"LogMaxSizeMB"`

	// RateLimitPerMinute bounds quote requests per client IP; RateBurst is
	// the short-term allowance on top.
	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	RateBurst          int     `toml:"RateBurst"`

	// Pool carries the governance parameters applied to new quotes. Loans
	// keep the snapshot they were opened under regardless of later edits
	// here.
	Pool lending.PoolConfig `toml:"pool"`
}

// Load reads the configuration at path, creating a default file on first
// run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./lendpool-data"
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = 100
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 600
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	defaults := lending.DefaultPoolConfig()
	if c.Pool.LiquidationThreshold == nil {
		c.Pool.LiquidationThreshold = defaults.LiquidationThreshold
	}
	if c.Pool.InitialCollateralRatio == nil {
		c.Pool.InitialCollateralRatio = defaults.InitialCollateralRatio
	}
	if c.Pool.Interest.OptimalUtilization == nil {
		c.Pool.Interest = defaults.Interest
	}
	if c.Pool.Fees.LiquidationFee == nil {
		c.Pool.Fees = defaults.Fees
	}
	if c.Pool.MergeActionFee == nil {
		c.Pool.MergeActionFee = defaults.MergeActionFee
	}
	if c.Pool.DepositSharePad == nil {
		c.Pool.DepositSharePad = defaults.DepositSharePad
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		DataDir:            "./lendpool-data",
		Environment:        "dev",
		LogMaxSizeMB:       100,
		RateLimitPerMinute: 600,
		RateBurst:          20,
		Pool:               lending.DefaultPoolConfig(),
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
