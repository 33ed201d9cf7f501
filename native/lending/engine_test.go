package lending

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"lendpool/native/oracle"
)

func testPoolConfig() PoolConfig {
	cfg := DefaultPoolConfig()
	cfg.Fees.Tier2Fee = big.NewInt(20_000)
	return cfg
}

func TestNewValidityRange(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	window := NewValidityRange(now)
	if window.ValidFrom != 1_700_000_000_000-60_000 {
		t.Fatalf("unexpected ValidFrom: %d", window.ValidFrom)
	}
	if window.ValidTo != window.ValidFrom+300_000 {
		t.Fatalf("unexpected ValidTo: %d", window.ValidTo)
	}
}

func TestApplyDepositAddsSharePad(t *testing.T) {
	cfg := testPoolConfig()
	res, err := ApplyDeposit(cfg, PoolState{}, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Bootstrap mints 1:1, plus the 200-unit pad the pool contract demands.
	if res.SharesToMint.Cmp(big.NewInt(1_200)) != 0 {
		t.Fatalf("unexpected mint: got %s want 1200", res.SharesToMint)
	}
	if res.NewState.TotalShares.Cmp(big.NewInt(1_200)) != 0 {
		t.Fatalf("unexpected share supply: got %s want 1200", res.NewState.TotalShares)
	}
	if res.NewState.Balance.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected balance: got %s want 1000", res.NewState.Balance)
	}
}

func TestApplyWithdraw(t *testing.T) {
	state := PoolState{
		Balance:     big.NewInt(1_000_000),
		LentOut:     big.NewInt(500_000),
		TotalShares: big.NewInt(1_500_000),
	}
	res, err := ApplyWithdraw(testPoolConfig(), state, big.NewInt(300_000))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.AmountToReturn.Cmp(big.NewInt(300_000)) != 0 {
		t.Fatalf("unexpected amount: got %s want 300000", res.AmountToReturn)
	}
	if res.NewState.Balance.Cmp(big.NewInt(700_000)) != 0 || res.NewState.TotalShares.Cmp(big.NewInt(1_200_000)) != 0 {
		t.Fatalf("unexpected state: balance %s shares %s", res.NewState.Balance, res.NewState.TotalShares)
	}
}

func TestApplyBorrow(t *testing.T) {
	cfg := testPoolConfig()
	state := PoolState{
		Balance:     big.NewInt(1_000_000),
		LentOut:     big.NewInt(0),
		TotalShares: big.NewInt(1_000_000),
	}
	asset := oracle.Asset{}
	window := ValidityRange{ValidFrom: 1_700_000_000_000, ValidTo: 1_700_000_300_000}
	ref := OutputRef{TxHash: "00ff", Index: 3}

	res, err := ApplyBorrow(cfg, state, asset, asset, big.NewInt(100_000), big.NewInt(190_000), big.NewInt(100_000), ref, window)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if res.Loan.InterestRate.Cmp(big.NewInt(37_500)) != 0 {
		t.Fatalf("unexpected rate: got %s want 37500", res.Loan.InterestRate)
	}
	if res.Loan.DepositTime != window.ValidFrom {
		t.Fatalf("unexpected deposit time: %d", res.Loan.DepositTime)
	}
	if res.Loan.BorrowerToken == "" {
		t.Fatalf("loan missing borrower token")
	}
	if res.NewState.Balance.Cmp(big.NewInt(900_000)) != 0 || res.NewState.LentOut.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("unexpected state: balance %s lentOut %s", res.NewState.Balance, res.NewState.LentOut)
	}

	// The loan keeps a config snapshot, not a live reference.
	cfg.LiquidationThreshold.SetInt64(1)
	if res.Loan.Config.LiquidationThreshold.Cmp(big.NewInt(1_800_000)) != 0 {
		t.Fatalf("loan config aliases caller config")
	}
}

func TestApplyBorrowRejectsThinCollateral(t *testing.T) {
	cfg := testPoolConfig()
	state := PoolState{Balance: big.NewInt(1_000_000)}
	asset := oracle.Asset{}
	// ceil(100_000 * 1_900_000 / 1e6) = 190_000; one unit short must fail.
	_, err := ApplyBorrow(cfg, state, asset, asset, big.NewInt(100_000), big.NewInt(189_999), nil, OutputRef{}, ValidityRange{})
	if !errors.Is(err, ErrUndercollateralized) {
		t.Fatalf("expected ErrUndercollateralized, got %v", err)
	}
}

func TestApplyBorrowCrossAssetSkipsRatioCheck(t *testing.T) {
	cfg := testPoolConfig()
	state := PoolState{Balance: big.NewInt(1_000_000)}
	collateral := oracle.Asset{PolicyID: "a1", Name: "TOK"}
	if _, err := ApplyBorrow(cfg, state, oracle.Asset{}, collateral, big.NewInt(100_000), big.NewInt(1), nil, OutputRef{}, ValidityRange{}); err != nil {
		t.Fatalf("cross-asset borrow: %v", err)
	}
}

func TestApplyBorrowRejectsRateAboveLimit(t *testing.T) {
	cfg := testPoolConfig()
	state := PoolState{Balance: big.NewInt(1_000_000)}
	asset := oracle.Asset{}
	_, err := ApplyBorrow(cfg, state, asset, asset, big.NewInt(100_000), big.NewInt(190_000), big.NewInt(37_499), OutputRef{}, ValidityRange{})
	if !errors.Is(err, ErrRateAboveLimit) {
		t.Fatalf("expected ErrRateAboveLimit, got %v", err)
	}
}

func TestApplyBorrowRejectsWholeBalance(t *testing.T) {
	cfg := testPoolConfig()
	state := PoolState{Balance: big.NewInt(100_000)}
	asset := oracle.Asset{}
	_, err := ApplyBorrow(cfg, state, asset, asset, big.NewInt(100_000), big.NewInt(190_000), nil, OutputRef{}, ValidityRange{})
	if !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
}

func TestApplyRepay(t *testing.T) {
	loan := Loan{
		Amount:       big.NewInt(100_000),
		InterestRate: big.NewInt(50_000),
		DepositTime:  0,
		Config:       testPoolConfig(),
	}
	state := PoolState{
		Balance:     big.NewInt(400_000),
		LentOut:     big.NewInt(100_000),
		TotalShares: big.NewInt(500_000),
	}
	res, err := ApplyRepay(loan, state, ValidityRange{ValidFrom: 0, ValidTo: yearMs})
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if res.AccruedInterest.Cmp(big.NewInt(5_000)) != 0 {
		t.Fatalf("unexpected interest: got %s want 5000", res.AccruedInterest)
	}
	if res.RepayAmount.Cmp(big.NewInt(105_000)) != 0 {
		t.Fatalf("unexpected repay amount: got %s want 105000", res.RepayAmount)
	}
	// Loan is 20% of pool value, second tier at 2%: fee 100.
	if res.PlatformFee.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected platform fee: got %s want 100", res.PlatformFee)
	}
	if res.NewState.Balance.Cmp(big.NewInt(505_000)) != 0 || res.NewState.LentOut.Sign() != 0 {
		t.Fatalf("unexpected state: balance %s lentOut %s", res.NewState.Balance, res.NewState.LentOut)
	}
}

func TestApplyMerge(t *testing.T) {
	cfg := testPoolConfig()
	cfg.MergeActionFee = big.NewInt(5)
	state := PoolState{
		Balance:     big.NewInt(1_000),
		LentOut:     big.NewInt(500),
		TotalShares: big.NewInt(1_500),
	}
	next, err := ApplyMerge(cfg, state, big.NewInt(500), big.NewInt(520))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if next.Balance.Cmp(big.NewInt(1_525)) != 0 {
		t.Fatalf("unexpected balance: got %s want 1525", next.Balance)
	}
	if next.LentOut.Sign() != 0 {
		t.Fatalf("unexpected lentOut: got %s want 0", next.LentOut)
	}
	if next.TotalShares.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("merge must not change share supply: got %s", next.TotalShares)
	}
}
