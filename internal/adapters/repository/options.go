package repository

import (
	"net/http"
	"time"

	"github.com/okian/certify/pkg/logger"
)

// Option applies a configuration option to the RESTStore.
type Option func(*RESTStore)

// WithHTTPClient replaces the HTTP client. Tests use it to inject a mock transport.
func WithHTTPClient(c *http.Client) Option {
	return func(s *RESTStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *RESTStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *RESTStore) {
		if l != nil {
			s.logger = l
		}
	}
}
