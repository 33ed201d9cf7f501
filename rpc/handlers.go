package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendpool/native/lending"
	"lendpool/native/oracle"
	"lendpool/storage"
)

var errFeedExpired = errors.New("rpc: price feed expired")

func (s *Server) getPool(w http.ResponseWriter, req *http.Request) {
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, poolStateToDTO(state))
}

func (s *Server) putPool(w http.ResponseWriter, req *http.Request) {
	var dto poolStateDTO
	if err := decodeBody(w, req, &dto); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := dto.toState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.PutPoolState(state); err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	s.metrics.SetPoolSnapshot(state.Balance, state.LentOut, state.TotalShares)
	s.requestLogger(req).Info("pool snapshot replaced",
		"balance", bigString(state.Balance),
		"lent_out", bigString(state.LentOut),
		"total_shares", bigString(state.TotalShares))
	w.WriteHeader(http.StatusNoContent)
}

type depositQuoteRequest struct {
	Amount string `json:"amount"`
}

type depositQuoteResponse struct {
	SharesToMint string       `json:"sharesToMint"`
	NewState     poolStateDTO `json:"newState"`
}

func (s *Server) quoteDeposit(w http.ResponseWriter, req *http.Request) {
	started := s.now()
	var body depositQuoteRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount("amount", body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}

	result, err := lending.ApplyDeposit(s.pool, state, amount)
	s.metrics.ObserveQuote("deposit", s.now().Sub(started), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, depositQuoteResponse{
		SharesToMint: bigString(result.SharesToMint),
		NewState:     poolStateToDTO(result.NewState),
	})
}

type withdrawQuoteRequest struct {
	Shares string `json:"shares"`
}

type withdrawQuoteResponse struct {
	AmountToReturn string       `json:"amountToReturn"`
	NewState       poolStateDTO `json:"newState"`
}

func (s *Server) quoteWithdraw(w http.ResponseWriter, req *http.Request) {
	started := s.now()
	var body withdrawQuoteRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shares, err := parseAmount("shares", body.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}

	result, err := lending.ApplyWithdraw(s.pool, state, shares)
	s.metrics.ObserveQuote("withdraw", s.now().Sub(started), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawQuoteResponse{
		AmountToReturn: bigString(result.AmountToReturn),
		NewState:       poolStateToDTO(result.NewState),
	})
}

type borrowQuoteRequest struct {
	LoanAsset        oracle.Asset      `json:"loanAsset"`
	CollateralAsset  oracle.Asset      `json:"collateralAsset"`
	LoanAmount       string            `json:"loanAmount"`
	CollateralAmount string            `json:"collateralAmount"`
	MaxInterestRate  string            `json:"maxInterestRate"`
	OutputRef        lending.OutputRef `json:"outputRef"`
}

type validityDTO struct {
	ValidFrom int64 `json:"validFrom"`
	ValidTo   int64 `json:"validTo"`
}

type borrowQuoteResponse struct {
	Loan     loanDTO      `json:"loan"`
	NewState poolStateDTO `json:"newState"`
	Validity validityDTO  `json:"validity"`
}

func (s *Server) quoteBorrow(w http.ResponseWriter, req *http.Request) {
	started := s.now()
	var body borrowQuoteRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loanAmount, err := parseAmount("loanAmount", body.LoanAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	collateralAmount, err := parseAmount("collateralAmount", body.CollateralAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	maxRate, err := parseOptionalAmount("maxInterestRate", body.MaxInterestRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}

	window := lending.NewValidityRange(started)
	result, err := lending.ApplyBorrow(s.pool, state, body.LoanAsset, body.CollateralAsset,
		loanAmount, collateralAmount, maxRate, body.OutputRef, window)
	s.metrics.ObserveQuote("borrow", s.now().Sub(started), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, borrowQuoteResponse{
		Loan:     loanToDTO(result.Loan),
		NewState: poolStateToDTO(result.NewState),
		Validity: validityDTO{ValidFrom: window.ValidFrom, ValidTo: window.ValidTo},
	})
}

type repayQuoteRequest struct {
	BorrowerToken string `json:"borrowerToken"`
}

type repayQuoteResponse struct {
	AccruedInterest string       `json:"accruedInterest"`
	RepayAmount     string       `json:"repayAmount"`
	PlatformFee     string       `json:"platformFee"`
	NewState        poolStateDTO `json:"newState"`
	Validity        validityDTO  `json:"validity"`
}

func (s *Server) quoteRepay(w http.ResponseWriter, req *http.Request) {
	started := s.now()
	var body repayQuoteRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := s.store.Loan(body.BorrowerToken)
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}

	window := lending.NewValidityRange(started)
	result, err := lending.ApplyRepay(loan, state, window)
	s.metrics.ObserveQuote("repay", s.now().Sub(started), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, repayQuoteResponse{
		AccruedInterest: bigString(result.AccruedInterest),
		RepayAmount:     bigString(result.RepayAmount),
		PlatformFee:     bigString(result.PlatformFee),
		NewState:        poolStateToDTO(result.NewState),
		Validity:        validityDTO{ValidFrom: window.ValidFrom, ValidTo: window.ValidTo},
	})
}

func (s *Server) putLoan(w http.ResponseWriter, req *http.Request) {
	var dto loanDTO
	if err := decodeBody(w, req, &dto); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := dto.toLoan(s.pool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if loan.BorrowerToken == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("borrowerToken: must not be empty"))
		return
	}
	if err := s.store.PutLoan(loan); err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	s.requestLogger(req).Info("loan recorded",
		"borrower_token", loan.BorrowerToken,
		"amount", bigString(loan.Amount))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) getLoan(w http.ResponseWriter, req *http.Request) {
	loan, err := s.store.Loan(chi.URLParam(req, "token"))
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, loanToDTO(loan))
}

func (s *Server) deleteLoan(w http.ResponseWriter, req *http.Request) {
	token := chi.URLParam(req, "token")
	if err := s.store.DeleteLoan(token); err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	s.requestLogger(req).Info("loan removed", "borrower_token", token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putFeed(w http.ResponseWriter, req *http.Request) {
	var feed oracle.Feed
	if err := decodeBody(w, req, &feed); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if feed.Token().IsReference() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("feed token must not be the reference asset"))
		return
	}
	if err := s.store.PutFeed(feed); err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	s.requestLogger(req).Info("feed recorded", "token", feed.Token().Unit(), "valid_to", feed.ValidTo())
	w.WriteHeader(http.StatusCreated)
}

type liquidationRequest struct {
	BorrowerToken string `json:"borrowerToken"`
}

type liquidationResponse struct {
	DebtValue        string       `json:"debtValue"`
	CollateralValue  string       `json:"collateralValue"`
	HealthFactor     string       `json:"healthFactor"`
	IsLiquidatable   bool         `json:"isLiquidatable"`
	AccruedInterest  string       `json:"accruedInterest"`
	LiquidatorFee    string       `json:"liquidatorFee"`
	BorrowerLeftover string       `json:"borrowerLeftover"`
	PlatformFee      string       `json:"platformFee"`
	NewState         poolStateDTO `json:"newState"`
	Validity         validityDTO  `json:"validity"`
}

func (s *Server) evaluateLiquidation(w http.ResponseWriter, req *http.Request) {
	started := s.now()
	var body liquidationRequest
	if err := decodeBody(w, req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loan, err := s.store.Loan(body.BorrowerToken)
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}
	state, err := s.store.PoolState()
	if err != nil {
		s.respondStoreError(w, req, err)
		return
	}

	window := lending.NewValidityRange(started)
	loanFeed, err := s.feedFor(loan.LoanAsset, window.ValidTo)
	if err != nil {
		s.respondFeedError(w, req, err)
		return
	}
	collateralFeed, err := s.feedFor(loan.CollateralAsset, window.ValidTo)
	if err != nil {
		s.respondFeedError(w, req, err)
		return
	}

	result, err := lending.EvaluateLiquidation(loan, state, loanFeed, collateralFeed, window.ValidTo)
	s.metrics.ObserveQuote("liquidation", s.now().Sub(started), err)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.metrics.ObserveLiquidation(result.IsLiquidatable)
	writeJSON(w, http.StatusOK, liquidationResponse{
		DebtValue:        bigString(result.DebtValue),
		CollateralValue:  bigString(result.CollateralValue),
		HealthFactor:     bigString(result.HealthFactor),
		IsLiquidatable:   result.IsLiquidatable,
		AccruedInterest:  bigString(result.AccruedInterest),
		LiquidatorFee:    bigString(result.LiquidatorFee),
		BorrowerLeftover: bigString(result.BorrowerLeftover),
		PlatformFee:      bigString(result.PlatformFee),
		NewState:         poolStateToDTO(result.NewState),
		Validity:         validityDTO{ValidFrom: window.ValidFrom, ValidTo: window.ValidTo},
	})
}

// feedFor loads the stored observation for asset and rejects stale ones.
// Reference assets never need a feed.
func (s *Server) feedFor(asset oracle.Asset, nowMs int64) (*oracle.Feed, error) {
	if asset.IsReference() {
		return nil, nil
	}
	feed, err := s.store.Feed(asset)
	if err != nil {
		return nil, err
	}
	if feed.Expired(nowMs) {
		return nil, fmt.Errorf("%w: %s", errFeedExpired, asset.Unit())
	}
	return &feed, nil
}

func (s *Server) respondStoreError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.requestLogger(req).Error("store failure", "err", err)
	writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) respondFeedError(w http.ResponseWriter, req *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errFeedExpired):
		writeError(w, http.StatusConflict, err)
	default:
		s.requestLogger(req).Error("feed lookup failure", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}
