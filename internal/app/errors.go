package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrEmailNotFound      = errors.New("email not found")
	ErrNameNotFound       = errors.New("name not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotStarted         = errors.New("service not started")
)
