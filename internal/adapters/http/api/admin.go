package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	service "github.com/okian/certify/internal/app"
	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/pkg/logger"
)

const dbNotConfigured = "DB not configured"

// AdminDependencies defines what the admin handlers need.
type AdminDependencies interface {
	AdminLogin(username, password string) (string, error)
	ListFeedback(ctx context.Context) ([]feedback.Entry, error)
	FeedbackStats(ctx context.Context) (feedback.Stats, error)
	DeleteFeedback(ctx context.Context, email string) error
}

// AdminHandler handles the admin panel endpoints. Only login checks
// credentials; the token it returns is not verified on other routes.
type AdminHandler struct {
	deps   AdminDependencies
	logger logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, l logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: l}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin handles POST /admin/login requests.
func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_login"
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), "Invalid request body")
		return
	}

	token, err := h.deps.AdminLogin(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "unauthorized", WrapKind(op, ErrUnauthorized, err), "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success", Token: token})
}

// HandleListFeedback handles GET /admin/feedback requests.
func (h *AdminHandler) HandleListFeedback(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_list_feedback"
	entries, err := h.deps.ListFeedback(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "listing feedback failed", logger.Error(err))
		writeStoreError(w, op, err, dbNotConfigured)
		return
	}
	if entries == nil {
		entries = []feedback.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleStats handles GET /admin/stats requests.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_stats"
	st, err := h.deps.FeedbackStats(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "feedback stats failed", logger.Error(err))
		writeStoreError(w, op, err, dbNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleDeleteFeedback handles DELETE /admin/feedback/{email} requests.
func (h *AdminHandler) HandleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_delete_feedback"
	email := chi.URLParam(r, "email")
	if unescaped, err := url.PathUnescape(email); err == nil {
		email = unescaped
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest), "Missing email")
		return
	}

	if err := h.deps.DeleteFeedback(r.Context(), email); err != nil {
		h.logger.Error(r.Context(), "deleting feedback failed", logger.String("email", email), logger.Error(err))
		writeStoreError(w, op, err, dbNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}
