// Package httpapi exposes the vault over HTTP/JSON: auth, assets,
// beneficiaries, verification events, approvals and transfers.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/louisbranch/legacyvault/internal/auth"
	"github.com/louisbranch/legacyvault/internal/platform/id"
	"github.com/louisbranch/legacyvault/internal/vault/engine"
	"github.com/louisbranch/legacyvault/internal/vault/storage"
)

// Handler serves the vault HTTP API.
type Handler struct {
	engine    *engine.Engine
	users     storage.UserStore
	assets    storage.AssetStore
	transfers storage.TransferStore
	tokens    *auth.TokenIssuer

	ready  func(context.Context) error
	now    func() time.Time
	newID  func() (string, error)
	logger *log.Logger
}

// Option adjusts a Handler during construction.
type Option func(*Handler)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithIDGenerator overrides record id generation, mainly for tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(h *Handler) { h.newID = gen }
}

// WithLogger overrides the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithReadiness sets the probe backing GET /readyz.
func WithReadiness(ready func(context.Context) error) Option {
	return func(h *Handler) { h.ready = ready }
}

// NewHandler creates the API handler over the given dependencies.
func NewHandler(eng *engine.Engine, users storage.UserStore, assets storage.AssetStore, transfers storage.TransferStore, tokens *auth.TokenIssuer, opts ...Option) *Handler {
	h := &Handler{
		engine:    eng,
		users:     users,
		assets:    assets,
		transfers: transfers,
		tokens:    tokens,
		ready:     func(context.Context) error { return nil },
		now:       time.Now,
		newID:     id.NewID,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the chi route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/users/me", h.handleMe)

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", h.handleCreateAsset)
			r.Get("/", h.handleListAssets)
			r.Get("/{assetID}", h.handleGetAsset)
			r.Patch("/{assetID}", h.handleUpdateAsset)
			r.Post("/{assetID}/beneficiaries", h.handleAddBeneficiary)
		})

		r.Route("/death-verifications", func(r chi.Router) {
			r.Post("/", h.handleCreateEvent)
			r.Get("/", h.handleListEvents)
			r.Get("/{eventID}", h.handleGetEvent)
			r.Post("/{eventID}/approvals", h.handleSubmitApproval)
			r.Post("/{eventID}/transfers/retry", h.handleRetryTransfers)
		})

		r.Get("/transfers", h.handleListTransfers)
	})

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
