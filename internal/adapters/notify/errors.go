package notify

import "errors"

// Sentinel kinds for delivery errors.
var (
	ErrBuildMessage = errors.New("build message")
	ErrDeliver      = errors.New("deliver message")
)
