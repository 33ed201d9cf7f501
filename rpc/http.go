package rpc

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendpool/config"
	"lendpool/native/lending"
	"lendpool/observability"
	"lendpool/storage"
)

const requestBodyLimit = 1 << 20 // 1 MiB

// Server exposes the quote engine over HTTP. Quote handlers are pure reads:
// they evaluate a proposed transition against the persisted snapshot and
// return the breakdown without committing anything. Commits arrive through
// the operator endpoints once the corresponding transaction confirms.
type Server struct {
	pool    lending.PoolConfig
	store   *storage.Store
	log     *slog.Logger
	metrics *observability.EngineMetrics
	limiter *RateLimiter
	now     func() time.Time
}

func NewServer(cfg *config.Config, store *storage.Store, log *slog.Logger) *Server {
	return &Server{
		pool:    cfg.Pool.Clone(),
		store:   store,
		log:     log,
		metrics: observability.Engine(),
		limiter: NewRateLimiter(RateLimit{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Burst:             cfg.RateBurst,
		}),
		now: time.Now,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/pool", s.getPool)
		v1.Put("/pool", s.putPool)

		v1.Post("/quotes/deposit", s.quoteDeposit)
		v1.Post("/quotes/withdraw", s.quoteWithdraw)
		v1.Post("/quotes/borrow", s.quoteBorrow)
		v1.Post("/quotes/repay", s.quoteRepay)

		v1.Post("/loans", s.putLoan)
		v1.Get("/loans/{token}", s.getLoan)
		v1.Delete("/loans/{token}", s.deleteLoan)

		v1.Post("/feeds", s.putFeed)

		v1.Post("/liquidations/evaluate", s.evaluateLiquidation)
	})
	return r
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey, id)))
	})
}

func (s *Server) requestLogger(req *http.Request) *slog.Logger {
	log := s.log
	if log == nil {
		log = slog.Default()
	}
	if id, ok := req.Context().Value(requestIDKey).(string); ok {
		log = log.With("request_id", id)
	}
	return log
}
