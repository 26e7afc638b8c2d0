package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/certify/internal/adapters/repository"
	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/pkg/logger"
)

// FeedbackDependencies defines what the feedback handler needs.
type FeedbackDependencies interface {
	SubmitFeedback(ctx context.Context, sub feedback.Submission) error
}

// FeedbackHandler handles feedback submissions.
type FeedbackHandler struct {
	deps   FeedbackDependencies
	logger logger.Logger
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies, l logger.Logger) *FeedbackHandler {
	return &FeedbackHandler{deps: deps, logger: l}
}

// HandleSubmit handles POST /feedback requests.
func (h *FeedbackHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_feedback"
	var sub feedback.Submission
	if err := decodeJSON(r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), "Invalid request body")
		return
	}

	if err := h.deps.SubmitFeedback(r.Context(), sub); err != nil {
		if errors.Is(err, feedback.ErrInvalidSubmission) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), err.Error())
			return
		}
		h.logger.Error(r.Context(), "feedback submission failed", logger.Error(err))
		writeStoreError(w, op, err, "Database not configured")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

// writeStoreError maps feedback store failures to 500 responses. A
// rejected request passes the store's response body through as detail.
func writeStoreError(w http.ResponseWriter, op string, err error, notConfigured string) {
	var rej *repository.RejectedError
	switch {
	case errors.Is(err, repository.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "store_not_configured", WrapKind(op, ErrInternal, err), notConfigured)
	case errors.As(err, &rej):
		writeError(w, http.StatusInternalServerError, "store_rejected", WrapKind(op, ErrInternal, err), rej.Body)
	default:
		writeError(w, http.StatusInternalServerError, "store_error", WrapKind(op, ErrInternal, err), err.Error())
	}
}
