// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/certify/internal/adapters/mq/queue"
	"github.com/okian/certify/internal/adapters/mq/worker"
	"github.com/okian/certify/internal/adapters/notify"
	"github.com/okian/certify/internal/adapters/repository"
	"github.com/okian/certify/internal/domain/certificate"
	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/internal/domain/model"
	"github.com/okian/certify/internal/domain/roster"
	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
)

const (
	defaultQueueSize  = 1000
	defaultAdminUser  = "admin"
	defaultAdminPass  = "admin123"
	defaultAdminToken = "fake-jwt-token"
)

// Renderer produces a certificate artifact for a display name.
type Renderer interface {
	Render(ctx context.Context, name string) (string, error)
}

// Service implements the API dependencies for certificate distribution.
type Service struct {
	mu sync.RWMutex

	// Core components
	roster     *roster.Index
	renderer   Renderer
	store      repository.Store
	dispatcher worker.Sender
	queue      *queue.InMemoryQueue
	pool       *worker.Pool

	// Configuration
	workerCount   int
	queueSize     int
	adminUser     string
	adminPassword string
	adminToken    string

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Unset collaborators default to an empty
// roster, a renderer without assets, an unconfigured store and an
// unconfigured mailer.
func New(opts ...Option) *Service {
	s := &Service{
		roster:        roster.Empty(),
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		adminUser:     defaultAdminUser,
		adminPassword: defaultAdminPass,
		adminToken:    defaultAdminToken,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		s.renderer = certificate.NewRenderer(certificate.WithLogger(s.logger))
	}
	if s.store == nil {
		s.store = repository.NewRESTStore("", "")
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.NewDispatcher(notify.Settings{}, notify.WithLogger(s.logger))
	}
	return s
}

// Start creates the delivery queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.dispatcher,
		worker.WithPoolLogger(s.logger.Named("delivery")))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "certificate service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("rosterEntries", s.roster.Len()),
		logger.Bool("storeConfigured", s.store.Configured()),
	)
	return nil
}

// Stop drains pending deliveries and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info(ctx, "stopping certificate service...",
		logger.Int("pendingDeliveries", s.queue.Len(ctx)))
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop delivery pool: %w", err)
	}
	s.logger.Info(ctx, "certificate service stopped")
	return nil
}

// VerifyEmail resolves an attendee and reports whether they already left
// feedback. A failing store check is logged and reported as no prior
// submission.
func (s *Service) VerifyEmail(ctx context.Context, raw string) (model.Verification, error) {
	email := roster.Normalize(raw)
	name, ok := s.roster.Lookup(email)
	if !ok {
		return model.Verification{}, ErrEmailNotFound
	}

	v := model.Verification{Valid: true, Name: name}
	if s.store.Configured() {
		submitted, err := s.store.HasSubmitted(ctx, email)
		if err != nil {
			s.logger.Error(ctx, "feedback store check failed", logger.String("email", email), logger.Error(err))
		} else {
			v.HasSubmitted = submitted
		}
	}
	return v, nil
}

// SubmitFeedback validates a submission and forwards it to the store.
func (s *Service) SubmitFeedback(ctx context.Context, sub feedback.Submission) error {
	if err := sub.Validate(ctx); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, sub.Record()); err != nil {
		return err
	}
	metrics.RecordFeedbackSubmission()
	return nil
}

// GenerateCertificate renders the certificate for a roster email and
// returns the artifact path.
func (s *Service) GenerateCertificate(ctx context.Context, raw string) (string, error) {
	name, err := s.displayName(raw)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(ctx, name)
}

// SendCertificate renders the certificate and queues it for email
// delivery. The outcome of the delivery is never reported back; a full
// queue drops the job with a log line.
func (s *Service) SendCertificate(ctx context.Context, raw string) error {
	email := roster.Normalize(raw)
	name, err := s.displayName(email)
	if err != nil {
		return err
	}
	path, err := s.renderer.Render(ctx, name)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}

	job := model.NewDelivery(email, path)
	if !s.queue.Enqueue(ctx, job) {
		metrics.RecordDelivery("dropped")
		s.logger.Warn(ctx, "delivery queue full, certificate not sent",
			logger.String("job_id", job.ID),
			logger.String("recipient", email))
		return nil
	}
	s.logger.Debug(ctx, "certificate delivery queued", logger.String("job_id", job.ID))
	return nil
}

func (s *Service) displayName(raw string) (string, error) {
	name, ok := s.roster.Lookup(raw)
	if !ok || name == "" {
		return "", ErrNameNotFound
	}
	return name, nil
}

// ListFeedback returns every stored record with the attendee's display
// name, or the stored email when the roster does not know it.
func (s *Service) ListFeedback(ctx context.Context) ([]feedback.Entry, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]feedback.Entry, len(recs))
	for i, rec := range recs {
		name, ok := s.roster.Lookup(rec.Email)
		if !ok {
			name = rec.Email
		}
		out[i] = feedback.Entry{Record: rec, Name: name}
	}
	return out, nil
}

// FeedbackStats aggregates all stored records.
func (s *Service) FeedbackStats(ctx context.Context) (feedback.Stats, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return feedback.Stats{}, err
	}
	return feedback.Aggregate(recs), nil
}

// DeleteFeedback removes every record stored for email, exactly as given.
func (s *Service) DeleteFeedback(ctx context.Context, email string) error {
	return s.store.Delete(ctx, email)
}

// AdminLogin checks the configured admin credentials and returns the
// static admin token.
func (s *Service) AdminLogin(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) == 1
	if !userOK || !passOK || s.adminUser == "" {
		return "", ErrInvalidCredentials
	}
	return s.adminToken, nil
}

// Ready reports whether the service accepts delivery work.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"rosterEntries":   s.roster.Len(),
		"storeConfigured": s.store.Configured(),
		"mailConfigured":  configured(s.dispatcher),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["deliveriesProcessed"] = s.pool.Processed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

func configured(v any) bool {
	c, ok := v.(interface{ Configured() bool })
	return ok && c.Configured()
}

// IsNotFound reports whether err means the attendee is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmailNotFound) || errors.Is(err, ErrNameNotFound)
}
