package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lendpool/config"
	"lendpool/native/lending"
	"lendpool/native/oracle"
	"lendpool/storage"
)

const yearMs = 31_536_000_000

var testNow = time.UnixMilli(1_700_000_000_000)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	store := storage.NewStore(storage.NewMemDB())
	cfg := &config.Config{
		RPCAddress:         ":0",
		RateLimitPerMinute: 600_000,
		RateBurst:          10_000,
		Pool:               lending.DefaultPoolConfig(),
	}
	srv := NewServer(cfg, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv.now = func() time.Time { return testNow }
	return srv, store
}

func seedPool(t *testing.T, store *storage.Store, balance, lentOut, shares int64) {
	t.Helper()
	require.NoError(t, store.PutPoolState(lending.PoolState{
		Balance:     big.NewInt(balance),
		LentOut:     big.NewInt(lentOut),
		TotalShares: big.NewInt(shares),
	}))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:4242"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestDepositQuote(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000_000, 0, 1_000_000)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/deposit", depositQuoteRequest{Amount: "500000"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp depositQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Ratio mint plus the 200-unit pad.
	require.Equal(t, "500200", resp.SharesToMint)
	require.Equal(t, "1500000", resp.NewState.Balance)
	require.Equal(t, "1500200", resp.NewState.TotalShares)
}

func TestDepositQuoteRejectsBadAmount(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000, 0, 1_000)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/deposit", depositQuoteRequest{Amount: "12x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/deposit", depositQuoteRequest{Amount: "-5"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDepositQuoteWithoutPoolState(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/deposit", depositQuoteRequest{Amount: "1000"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawQuote(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000_000, 500_000, 1_500_000)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/withdraw", withdrawQuoteRequest{Shares: "300000"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp withdrawQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "300000", resp.AmountToReturn)
	require.Equal(t, "700000", resp.NewState.Balance)
}

func TestBorrowQuote(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000_000, 0, 1_000_000)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/borrow", borrowQuoteRequest{
		LoanAmount:       "100000",
		CollateralAmount: "190000",
		OutputRef:        lending.OutputRef{TxHash: "00ff", Index: 1},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp borrowQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "37500", resp.Loan.InterestRate)
	require.NotEmpty(t, resp.Loan.BorrowerToken)
	require.Equal(t, "900000", resp.NewState.Balance)
	require.Equal(t, "100000", resp.NewState.LentOut)
	require.Equal(t, testNow.UnixMilli()-60_000, resp.Validity.ValidFrom)
	require.Equal(t, resp.Validity.ValidFrom+300_000, resp.Validity.ValidTo)
	require.Equal(t, resp.Validity.ValidFrom, resp.Loan.DepositTime)
}

func TestBorrowQuoteRejectsThinCollateral(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000_000, 0, 1_000_000)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/borrow", borrowQuoteRequest{
		LoanAmount:       "100000",
		CollateralAmount: "189999",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRepayQuote(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 400_000, 100_000, 500_000)

	cfg := lending.DefaultPoolConfig()
	cfg.Fees.Tier2Fee = big.NewInt(20_000)
	window := lending.NewValidityRange(testNow)
	require.NoError(t, store.PutLoan(lending.Loan{
		Amount:        big.NewInt(100_000),
		InterestRate:  big.NewInt(50_000),
		DepositTime:   window.ValidTo - yearMs,
		BorrowerToken: "loan-1",
		Config:        cfg,
	}))

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/repay", repayQuoteRequest{BorrowerToken: "loan-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp repayQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "5000", resp.AccruedInterest)
	require.Equal(t, "105000", resp.RepayAmount)
	require.Equal(t, "100", resp.PlatformFee)
	require.Equal(t, "505000", resp.NewState.Balance)
	require.Equal(t, "0", resp.NewState.LentOut)
}

func TestRepayQuoteUnknownLoan(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000, 0, 1_000)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/quotes/repay", repayQuoteRequest{BorrowerToken: "missing"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoanLifecycleEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/loans", loanDTO{
		Amount:           "100000",
		InterestRate:     "37500",
		DepositTime:      testNow.UnixMilli(),
		CollateralAmount: "190000",
		BorrowerToken:    "loan-9",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/loans/loan-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loaded loanDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	require.Equal(t, "100000", loaded.Amount)

	rec = doJSON(t, router, http.MethodDelete, "/v1/loans/loan-9", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/loans/loan-9", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLiquidationEvaluate(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 400_000, 100_000, 500_000)

	cfg := lending.DefaultPoolConfig()
	cfg.LiquidationThreshold = big.NewInt(1_900_000)
	window := lending.NewValidityRange(testNow)
	require.NoError(t, store.PutLoan(lending.Loan{
		Amount:           big.NewInt(100_000),
		InterestRate:     big.NewInt(50_000),
		DepositTime:      window.ValidTo - yearMs,
		CollateralAmount: big.NewInt(150_000),
		BorrowerToken:    "loan-2",
		Config:           cfg,
	}))

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/liquidations/evaluate", liquidationRequest{BorrowerToken: "loan-2"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp liquidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.IsLiquidatable)
	require.Equal(t, "105000", resp.DebtValue)
	require.Equal(t, "1125", resp.LiquidatorFee)
	require.Equal(t, "43875", resp.BorrowerLeftover)
	require.Equal(t, "505000", resp.NewState.Balance)
}

func TestLiquidationEvaluateExpiredFeed(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 400_000, 100_000, 500_000)

	token := oracle.Asset{PolicyID: "a1", Name: "TOK"}
	window := lending.NewValidityRange(testNow)
	require.NoError(t, store.PutFeed(oracle.NewPooled(token, big.NewInt(1_000_000), big.NewInt(2_000_000), window.ValidTo-1)))
	require.NoError(t, store.PutLoan(lending.Loan{
		Amount:           big.NewInt(100_000),
		InterestRate:     big.NewInt(50_000),
		DepositTime:      window.ValidTo - yearMs,
		CollateralAmount: big.NewInt(150_000),
		CollateralAsset:  token,
		BorrowerToken:    "loan-3",
		Config:           lending.DefaultPoolConfig(),
	}))

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/liquidations/evaluate", liquidationRequest{BorrowerToken: "loan-3"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestFeedEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	token := oracle.Asset{PolicyID: "a1", Name: "TOK"}

	feed := oracle.NewAggregated(token, big.NewInt(2), big.NewInt(1), testNow.UnixMilli()+60_000)
	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/feeds", feed)
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := store.Feed(token)
	require.NoError(t, err)
	require.Equal(t, feed.ValidTo(), stored.ValidTo())
}

func TestPoolEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/pool", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/v1/pool", poolStateDTO{
		Balance:     "1000000",
		LentOut:     "250000",
		TotalShares: "1200000",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state poolStateDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, "1000000", state.Balance)
	require.Equal(t, "250000", state.LentOut)
}

func TestRateLimitRejectsBursts(t *testing.T) {
	srv, store := newTestServer(t)
	seedPool(t, store, 1_000, 0, 1_000)
	srv.limiter = NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 1})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/pool", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
