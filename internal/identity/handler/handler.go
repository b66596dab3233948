package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"knomee/internal/identity/models"
	"knomee/internal/identity/service"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
	"knomee/pkg/platform/httputil"
	"knomee/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, owner domain.Address) (*models.Identity, error)
	UpgradeToOracle(ctx context.Context, caller, owner domain.Address) (*models.Identity, error)
	Link(ctx context.Context, caller domain.Address, req service.LinkRequest) (*models.LinkedIdentity, error)
	Get(ctx context.Context, owner domain.Address) (*models.Profile, error)
	ListLinks(ctx context.Context, primary domain.Address) ([]*models.LinkedIdentity, error)
}

// Handler wires identity registry endpoints to the identity service.
type Handler struct {
	service       Service
	logger        *slog.Logger
	requireCaller func(http.Handler) http.Handler
}

// New constructs an identity handler.
func New(service Service, logger *slog.Logger, requireCaller func(http.Handler) http.Handler) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		requireCaller: requireCaller,
	}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/identities/{address}", h.HandleGet)
	r.Get("/identities/{address}/links", h.HandleListLinks)
	r.Group(func(r chi.Router) {
		r.Use(h.requireCaller)
		r.Post("/identities", h.HandleRegister)
		r.Post("/identities/{address}/oracle", h.HandleUpgradeToOracle)
		r.Post("/links", h.HandleLink)
	})
}

// HandleRegister handles POST /identities. Callers register their own address.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	identity, err := h.service.Register(ctx, caller)
	if err != nil {
		h.fail(ctx, w, "register identity", err)
		return
	}

	h.logger.InfoContext(ctx, "identity registered",
		"request_id", requestcontext.RequestID(ctx),
		"owner", caller.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, identity)
}

// HandleUpgradeToOracle handles POST /identities/{address}/oracle.
func (h *Handler) HandleUpgradeToOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	owner, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	identity, err := h.service.UpgradeToOracle(ctx, caller, owner)
	if err != nil {
		h.fail(ctx, w, "upgrade to oracle", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

// HandleLink handles POST /links.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[LinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	link, err := h.service.Link(ctx, caller, req.ToService())
	if err != nil {
		h.fail(ctx, w, "link identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, link)
}

// HandleGet handles GET /identities/{address}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.service.Get(ctx, owner)
	if err != nil {
		h.fail(ctx, w, "get identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleListLinks handles GET /identities/{address}/links.
func (h *Handler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	primary, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	links, err := h.service.ListLinks(ctx, primary)
	if err != nil {
		h.fail(ctx, w, "list links", err)
		return
	}
	if links == nil {
		links = []*models.LinkedIdentity{}
	}
	httputil.WriteJSON(w, http.StatusOK, LinksResponse{Primary: primary, Links: links})
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
