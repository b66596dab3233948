package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"knomee/internal/claims/models"
	"knomee/internal/claims/service"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

// Service defines the claims engine operations exposed over HTTP.
type Service interface {
	Propose(ctx context.Context, proposer domain.Address, req service.ProposeRequest) (*models.Claim, error)
	Vouch(ctx context.Context, voter domain.Address, req service.VouchRequest) (*models.Vouch, error)
	Resolve(ctx context.Context, caller domain.Address, claimID uint64) (*models.Claim, error)
	SettleRewards(ctx context.Context, voter domain.Address, claimID uint64) (*models.Vouch, error)
	Get(ctx context.Context, id uint64) (*models.View, error)
	ListVouches(ctx context.Context, claimID uint64) ([]*models.Vouch, error)
}

// Handler wires claim lifecycle endpoints to the claims engine.
type Handler struct {
	service       Service
	logger        *slog.Logger
	requireCaller func(http.Handler) http.Handler
}

// New constructs a claims handler.
func New(service Service, logger *slog.Logger, requireCaller func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		requireCaller: requireCaller,
	}
}

// Register mounts claim endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/claims/{id}", h.HandleGet)
	r.Get("/claims/{id}/vouches", h.HandleListVouches)
	r.Group(func(r chi.Router) {
		r.Use(h.requireCaller)
		r.Post("/claims", h.HandlePropose)
		r.Post("/claims/{id}/vouches", h.HandleVouch)
		r.Post("/claims/{id}/resolve", h.HandleResolve)
		r.Post("/claims/{id}/settle", h.HandleSettle)
	})
}

// HandlePropose handles POST /claims.
func (h *Handler) HandlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ProposeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	claim, err := h.service.Propose(ctx, caller, req.ToService())
	if err != nil {
		h.fail(ctx, w, "propose claim", err)
		return
	}

	h.logger.InfoContext(ctx, "claim proposed",
		"request_id", requestID,
		"claim_id", claim.ID,
		"claim_type", claim.Type.String(),
		"proposer", caller.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

// HandleVouch handles POST /claims/{id}/vouches.
func (h *Handler) HandleVouch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	claimID, ok := claimIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[VouchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	vouch, err := h.service.Vouch(ctx, caller, service.VouchRequest{
		ClaimID:  claimID,
		Supports: *req.Supports,
		Stake:    req.Stake,
	})
	if err != nil {
		h.fail(ctx, w, "vouch", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, vouch)
}

// HandleResolve handles POST /claims/{id}/resolve. Anyone may trigger resolution.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	claimID, ok := claimIDParam(w, r)
	if !ok {
		return
	}

	claim, err := h.service.Resolve(ctx, caller, claimID)
	if err != nil {
		h.fail(ctx, w, "resolve claim", err)
		return
	}

	h.logger.InfoContext(ctx, "claim resolved",
		"request_id", requestcontext.RequestID(ctx),
		"claim_id", claim.ID,
		"status", claim.Status.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleSettle handles POST /claims/{id}/settle for the calling voter.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	claimID, ok := claimIDParam(w, r)
	if !ok {
		return
	}

	vouch, err := h.service.SettleRewards(ctx, caller, claimID)
	if err != nil {
		h.fail(ctx, w, "settle rewards", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, vouch)
}

// HandleGet handles GET /claims/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := claimIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.Get(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, "get claim", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleListVouches handles GET /claims/{id}/vouches.
func (h *Handler) HandleListVouches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, ok := claimIDParam(w, r)
	if !ok {
		return
	}

	vouches, err := h.service.ListVouches(ctx, claimID)
	if err != nil {
		h.fail(ctx, w, "list vouches", err)
		return
	}
	if vouches == nil {
		vouches = []*models.Vouch{}
	}
	httputil.WriteJSON(w, http.StatusOK, VouchesResponse{ClaimID: claimID, Vouches: vouches})
}

func claimIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "claim id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "request_id", requestcontext.RequestID(ctx), "error", err)
	} else {
		h.logger.WarnContext(ctx, op+" rejected", "request_id", requestcontext.RequestID(ctx), "error", err)
	}
	httputil.WriteError(w, err)
}
