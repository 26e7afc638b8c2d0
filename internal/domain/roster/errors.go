package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrColumnsNotFound = errors.New("roster email/name columns not found")
	ErrEmptySource     = errors.New("roster source has no header row")
)
