package repository

import "errors"

// Sentinel kinds for feedback store errors.
var (
	ErrNotConfigured = errors.New("feedback store not configured")
	ErrRejected      = errors.New("feedback store rejected request")
	ErrUnavailable   = errors.New("feedback store unavailable")
)
