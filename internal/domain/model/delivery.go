// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Delivery is a queued request to email a rendered certificate.
type Delivery struct {
	ID        string    // job id, for log correlation only
	Recipient string    // normalized attendee email
	Artifact  string    // path of the rendered PDF
	Queued    time.Time // enqueue time
}

// NewDelivery creates a delivery job with a fresh id.
func NewDelivery(recipient, artifact string) Delivery {
	return Delivery{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Artifact:  artifact,
		Queued:    time.Now(),
	}
}
