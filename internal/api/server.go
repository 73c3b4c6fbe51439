// Package api is the HTTP surface of the e-wallet service. It resolves the
// caller's identity through the auth service, invokes wallet operations with
// the resolved account id passed explicitly, and maps wallet errors to HTTP
// status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/commercepay/e-wallet-service/internal/auth"
	"github.com/commercepay/e-wallet-service/internal/wallet"
)

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (int64, error)
}

// SessionCreator creates a payment-gateway checkout session for a top-up.
type SessionCreator interface {
	CreateSession(ctx context.Context, amountCents int64) (string, error)
}

type Server struct {
	wallet   *wallet.Service
	verifier TokenVerifier
	checkout SessionCreator
	logger   *zap.Logger

	// requestTimeout bounds each wallet operation, so a lock wait inside the
	// store surfaces as a retryable failure instead of blocking the request.
	requestTimeout time.Duration
}

func NewServer(walletSvc *wallet.Service, verifier TokenVerifier, checkout SessionCreator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		wallet:         walletSvc,
		verifier:       verifier,
		checkout:       checkout,
		logger:         logger,
		requestTimeout: 10 * time.Second,
	}
}

// Routes builds the service mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/e-wallet", instrument("wallet", s.withAccount(s.handleWallet)))
	mux.Handle("/e-wallet/transfer", instrument("transfer", s.withAccount(s.handleTransfer)))
	mux.Handle("/e-wallet/transactions", instrument("transactions", s.withAccount(s.handleTransactions)))

	return s.logRequests(mux)
}

// withAccount authenticates the request and hands the resolved account id to
// the handler as an explicit argument rather than stashing it in the request
// context.
func (s *Server) withAccount(h func(w http.ResponseWriter, r *http.Request, accountID int64)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Invalid or missing Authorization header")
			return
		}

		accountID, err := s.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "Auth service unavailable")
				return
			}
			writeError(w, http.StatusUnauthorized, "Token validation failed")
			return
		}
		h(w, r, accountID)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps wallet errors to HTTP status codes. Busy is retryable and
// distinct from the caller errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
