package lending

import (
	"errors"
	"math/big"
	"testing"
)

func TestSharesForDepositBootstraps(t *testing.T) {
	minted, next, err := SharesForDeposit(PoolState{}, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("bootstrap mint: got %s want 1000", minted)
	}
	if next.Balance.Cmp(big.NewInt(1_000)) != 0 || next.TotalShares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected state: balance %s shares %s", next.Balance, next.TotalShares)
	}
}

func TestSharesForDepositProportional(t *testing.T) {
	state := PoolState{
		Balance:     big.NewInt(1_000_000),
		LentOut:     big.NewInt(0),
		TotalShares: big.NewInt(1_000_000),
	}
	minted, next, err := SharesForDeposit(state, big.NewInt(500_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("mint: got %s want 500000", minted)
	}
	if next.Balance.Cmp(big.NewInt(1_500_000)) != 0 || next.TotalShares.Cmp(big.NewInt(1_500_000)) != 0 {
		t.Fatalf("unexpected state: balance %s shares %s", next.Balance, next.TotalShares)
	}
	// Input state must not be touched.
	if state.Balance.Cmp(big.NewInt(1_000_000)) != 0 || state.TotalShares.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("input state mutated: balance %s shares %s", state.Balance, state.TotalShares)
	}
}

func TestSharesForDepositCountsLentOut(t *testing.T) {
	// Half the pool value is out on loan; the conversion must price shares
	// against balance + lentOut, not balance alone.
	state := PoolState{
		Balance:     big.NewInt(500_000),
		LentOut:     big.NewInt(500_000),
		TotalShares: big.NewInt(1_000_000),
	}
	minted, _, err := SharesForDeposit(state, big.NewInt(500_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if minted.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("mint: got %s want 500000", minted)
	}
}

func TestDepositWithdrawRoundTripNeverGains(t *testing.T) {
	state := PoolState{
		Balance:     big.NewInt(1_000_000),
		LentOut:     big.NewInt(500_000),
		TotalShares: big.NewInt(700_000),
	}
	deposit := big.NewInt(123_457)
	minted, afterDeposit, err := SharesForDeposit(state, deposit)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	returned, _, err := AmountForSharesBurn(afterDeposit, minted)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if returned.Cmp(deposit) > 0 {
		t.Fatalf("round trip gained value: deposited %s got back %s", deposit, returned)
	}
}

func TestSharesForDepositRejectsNonPositive(t *testing.T) {
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		if _, _, err := SharesForDeposit(PoolState{}, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestAmountForSharesBurnRejectsOverSupply(t *testing.T) {
	state := PoolState{
		Balance:     big.NewInt(1_000),
		TotalShares: big.NewInt(1_000),
	}
	if _, _, err := AmountForSharesBurn(state, big.NewInt(1_001)); !errors.Is(err, ErrWithdrawExceedsSupply) {
		t.Fatalf("expected ErrWithdrawExceedsSupply, got %v", err)
	}
}

func TestAmountForSharesBurnRejectsFullDrain(t *testing.T) {
	state := PoolState{
		Balance:     big.NewInt(1_000),
		TotalShares: big.NewInt(1_000),
	}
	if _, _, err := AmountForSharesBurn(state, big.NewInt(1_000)); !errors.Is(err, ErrPoolDrained) {
		t.Fatalf("expected ErrPoolDrained, got %v", err)
	}
}
