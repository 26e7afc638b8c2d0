package service

import (
	"github.com/okian/certify/internal/adapters/mq/worker"
	"github.com/okian/certify/internal/adapters/repository"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/okian/certify/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRoster sets the attendee index.
func WithRoster(idx *roster.Index) Option {
	return func(s *Service) {
		if idx != nil {
			s.roster = idx
		}
	}
}

// WithRenderer sets the certificate renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Service) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithStore sets the feedback store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDispatcher sets the certificate mailer used by the delivery workers.
func WithDispatcher(d worker.Sender) Option {
	return func(s *Service) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithWorkerCount sets the number of delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending deliveries.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithAdminCredentials sets the admin login pair and the token it returns.
func WithAdminCredentials(username, password, token string) Option {
	return func(s *Service) {
		s.adminUser = username
		s.adminPassword = password
		if token != "" {
			s.adminToken = token
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
