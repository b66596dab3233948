// Package handler exposes the development faucet. It is mounted only when
// DEV_FAUCET is enabled.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"knomee/internal/custody"
	"knomee/internal/platform/metrics"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

// MaxFaucetAmount caps a single faucet credit.
const MaxFaucetAmount = 1_000_000

type Handler struct {
	faucet        custody.Faucet
	logger        *slog.Logger
	metrics       *metrics.Metrics
	requireCaller func(http.Handler) http.Handler
}

func New(faucet custody.Faucet, logger *slog.Logger, m *metrics.Metrics, requireCaller func(http.Handler) http.Handler) *Handler {
	return &Handler{
		faucet:        faucet,
		logger:        logger,
		metrics:       m,
		requireCaller: requireCaller,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.requireCaller).Post("/dev/faucet", h.HandleFund)
	r.With(h.requireCaller).Get("/dev/balance", h.HandleBalance)
}

type FundRequest struct {
	Amount uint64 `json:"amount"`
}

func (r *FundRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Amount == 0 || r.Amount > MaxFaucetAmount {
		return dErrors.New(dErrors.CodeValidation, "amount must be between 1 and 1000000")
	}
	return nil
}

type BalanceResponse struct {
	Address domain.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// HandleFund credits the caller's custody account.
func (h *Handler) HandleFund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[FundRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.faucet.Fund(ctx, caller, req.Amount); err != nil {
		h.logger.WarnContext(ctx, "faucet credit failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncrementFaucetFunded()
	}

	balance, err := h.faucet.BalanceOf(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "faucet credit",
		"request_id", requestID,
		"address", caller.String(),
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Address: caller, Balance: balance})
}

// HandleBalance reports the caller's custody balance.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	balance, err := h.faucet.BalanceOf(ctx, caller)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Address: caller, Balance: balance})
}
