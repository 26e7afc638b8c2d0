package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	service "github.com/okian/certify/internal/app"
	"github.com/okian/certify/internal/domain/model"
	"github.com/okian/certify/pkg/logger"
)

// AttendeeDependencies defines what attendee-facing handlers need.
type AttendeeDependencies interface {
	VerifyEmail(ctx context.Context, raw string) (model.Verification, error)
	GenerateCertificate(ctx context.Context, raw string) (string, error)
	SendCertificate(ctx context.Context, raw string) error
}

// AttendeeHandler handles roster verification and certificate requests.
type AttendeeHandler struct {
	deps   AttendeeDependencies
	logger logger.Logger
}

// NewAttendeeHandler creates a new attendee handler.
func NewAttendeeHandler(deps AttendeeDependencies, l logger.Logger) *AttendeeHandler {
	return &AttendeeHandler{deps: deps, logger: l}
}

// HandleVerifyEmail handles POST /verify-email requests.
func (h *AttendeeHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	const op = "api.verify_email"
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), "Invalid request body")
		return
	}

	v, err := h.deps.VerifyEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrEmailNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err), "Email not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleGenerateCertificate handles POST /generate-certificate requests
// and responds with the PDF as an attachment.
func (h *AttendeeHandler) HandleGenerateCertificate(w http.ResponseWriter, r *http.Request) {
	const op = "api.generate_certificate"
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), "Invalid request body")
		return
	}

	path, err := h.deps.GenerateCertificate(r.Context(), req.Email)
	if err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err), "Name not found")
			return
		}
		h.logger.Error(r.Context(), "certificate generation failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "render_failed", WrapKind(op, ErrInternal, err), err.Error())
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err), err.Error())
		return
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err), err.Error())
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// HandleSendCertificate handles POST /send-certificate requests. The
// certificate is rendered synchronously and mailed in the background.
func (h *AttendeeHandler) HandleSendCertificate(w http.ResponseWriter, r *http.Request) {
	const op = "api.send_certificate"
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err), "Invalid request body")
		return
	}

	if err := h.deps.SendCertificate(r.Context(), req.Email); err != nil {
		switch {
		case service.IsNotFound(err):
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err), "")
		case errors.Is(err, service.ErrNotStarted):
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err), "")
		default:
			h.logger.Error(r.Context(), "certificate send failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "render_failed", WrapKind(op, ErrInternal, err), err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "sending"})
}
