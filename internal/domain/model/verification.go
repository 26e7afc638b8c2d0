package model

// Verification is the result of checking an email against the roster.
type Verification struct {
	Valid        bool   `json:"valid"`
	Name         string `json:"name"`
	HasSubmitted bool   `json:"has_submitted"`
}
