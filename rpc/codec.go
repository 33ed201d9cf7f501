package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"lendpool/native/lending"
	"lendpool/native/oracle"
)

// Amounts cross the wire as base-10 strings. JSON numbers silently lose
// precision above 2^53 in common clients, which this API cannot afford.

type poolStateDTO struct {
	Balance     string `json:"balance"`
	LentOut     string `json:"lentOut"`
	TotalShares string `json:"totalShares"`
}

func poolStateToDTO(state lending.PoolState) poolStateDTO {
	return poolStateDTO{
		Balance:     bigString(state.Balance),
		LentOut:     bigString(state.LentOut),
		TotalShares: bigString(state.TotalShares),
	}
}

func (d poolStateDTO) toState() (lending.PoolState, error) {
	balance, err := parseAmount("balance", d.Balance)
	if err != nil {
		return lending.PoolState{}, err
	}
	lentOut, err := parseAmount("lentOut", d.LentOut)
	if err != nil {
		return lending.PoolState{}, err
	}
	shares, err := parseAmount("totalShares", d.TotalShares)
	if err != nil {
		return lending.PoolState{}, err
	}
	return lending.PoolState{Balance: balance, LentOut: lentOut, TotalShares: shares}, nil
}

type loanDTO struct {
	Amount           string       `json:"amount"`
	InterestRate     string       `json:"interestRate"`
	DepositTime      int64        `json:"depositTime"`
	CollateralAmount string       `json:"collateralAmount"`
	LoanAsset        oracle.Asset `json:"loanAsset"`
	CollateralAsset  oracle.Asset `json:"collateralAsset"`
	BorrowerToken    string       `json:"borrowerToken"`
}

func loanToDTO(loan lending.Loan) loanDTO {
	return loanDTO{
		Amount:           bigString(loan.Amount),
		InterestRate:     bigString(loan.InterestRate),
		DepositTime:      loan.DepositTime,
		CollateralAmount: bigString(loan.CollateralAmount),
		LoanAsset:        loan.LoanAsset,
		CollateralAsset:  loan.CollateralAsset,
		BorrowerToken:    loan.BorrowerToken,
	}
}

func (d loanDTO) toLoan(cfg lending.PoolConfig) (lending.Loan, error) {
	amount, err := parseAmount("amount", d.Amount)
	if err != nil {
		return lending.Loan{}, err
	}
	rate, err := parseAmount("interestRate", d.InterestRate)
	if err != nil {
		return lending.Loan{}, err
	}
	collateral, err := parseAmount("collateralAmount", d.CollateralAmount)
	if err != nil {
		return lending.Loan{}, err
	}
	return lending.Loan{
		Amount:           amount,
		InterestRate:     rate,
		DepositTime:      d.DepositTime,
		CollateralAmount: collateral,
		LoanAsset:        d.LoanAsset,
		CollateralAsset:  d.CollateralAsset,
		BorrowerToken:    d.BorrowerToken,
		Config:           cfg.Clone(),
	}, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s: missing amount", field)
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return value, nil
}

// parseOptionalAmount treats the empty string as absent.
func parseOptionalAmount(field, raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	return parseAmount(field, raw)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeBody(w http.ResponseWriter, req *http.Request, into any) error {
	req.Body = http.MaxBytesReader(w, req.Body, requestBodyLimit)
	return json.NewDecoder(req.Body).Decode(into)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
