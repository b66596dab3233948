package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"knomee/internal/governance/models"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

// Service defines the governance operations exposed over HTTP.
type Service interface {
	Initialize(ctx context.Context, caller domain.Address, params models.Params) (*models.Governance, error)
	Update(ctx context.Context, caller domain.Address, params models.Params) (*models.Governance, error)
	TimeWarp(ctx context.Context, caller domain.Address, seconds int64) (*models.Governance, error)
	RenounceGodMode(ctx context.Context, caller domain.Address) (*models.Governance, error)
	Get(ctx context.Context) (*models.Governance, error)
}

// Handler wires governance endpoints to the governance service.
type Handler struct {
	service       Service
	logger        *slog.Logger
	requireCaller func(http.Handler) http.Handler
	requireAdmin  func(http.Handler) http.Handler
}

// New constructs a governance handler. requireCaller authenticates the calling
// address; requireAdmin additionally guards initialization.
func New(service Service, logger *slog.Logger, requireCaller, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		requireCaller: requireCaller,
		requireAdmin:  requireAdmin,
	}
}

// Register mounts governance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/governance", h.HandleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.requireCaller)
		r.With(h.requireAdmin).Post("/governance", h.HandleInitialize)
		r.Put("/governance/params", h.HandleUpdate)
		r.Post("/governance/time-warp", h.HandleTimeWarp)
		r.Post("/governance/god-mode/renounce", h.HandleRenounceGodMode)
	})
}

// HandleInitialize handles POST /governance. The caller becomes the authority.
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ParamsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	gov, err := h.service.Initialize(ctx, caller, req.Params)
	if err != nil {
		h.fail(ctx, w, "initialize governance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, gov)
}

// HandleUpdate handles PUT /governance/params.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[ParamsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	gov, err := h.service.Update(ctx, caller, req.Params)
	if err != nil {
		h.fail(ctx, w, "update governance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gov)
}

// HandleTimeWarp handles POST /governance/time-warp.
func (h *Handler) HandleTimeWarp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[TimeWarpRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	gov, err := h.service.TimeWarp(ctx, caller, req.Seconds)
	if err != nil {
		h.fail(ctx, w, "time warp", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gov)
}

// HandleRenounceGodMode handles POST /governance/god-mode/renounce.
func (h *Handler) HandleRenounceGodMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	gov, err := h.service.RenounceGodMode(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "renounce god mode", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gov)
}

// HandleGet handles GET /governance.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	gov, err := h.service.Get(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "get governance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gov)
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
