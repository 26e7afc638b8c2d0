// Package repository provides the feedback store client.
package repository

import (
	"context"

	"github.com/okian/certify/internal/domain/feedback"
)

// Store provides read/write access to feedback records.
type Store interface {
	// Configured reports whether the store has an endpoint and credentials.
	// Every other method returns ErrNotConfigured when it does not.
	Configured() bool

	// HasSubmitted reports whether any record exists for the email.
	HasSubmitted(ctx context.Context, email string) (bool, error)

	// Insert stores one record.
	Insert(ctx context.Context, rec feedback.Record) error

	// List returns every stored record.
	List(ctx context.Context) ([]feedback.Record, error)

	// Delete removes all records for the email.
	Delete(ctx context.Context, email string) error
}
