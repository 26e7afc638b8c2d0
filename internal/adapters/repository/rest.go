package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/certify/internal/domain/feedback"
	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
)

const (
	collectionPath = "/rest/v1/feedback"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// RESTStore talks to a PostgREST-style feedback collection.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	logger  logger.Logger
}

var _ Store = (*RESTStore)(nil)

// NewRESTStore creates a store for baseURL authenticated with apiKey.
// Either being empty leaves the store unconfigured.
func NewRESTStore(baseURL, apiKey string, opts ...Option) *RESTStore {
	s := &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  http.DefaultClient,
		timeout: defaultTimeout,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured implements Store.
func (s *RESTStore) Configured() bool {
	return s.baseURL != "" && s.apiKey != ""
}

// HasSubmitted implements Store.
func (s *RESTStore) HasSubmitted(ctx context.Context, email string) (bool, error) {
	q := url.Values{}
	q.Set("email", "eq."+email)
	q.Set("select", "email")

	var rows []map[string]any
	if err := s.do(ctx, "has_submitted", http.MethodGet, q, nil, nil, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Insert implements Store.
func (s *RESTStore) Insert(ctx context.Context, rec feedback.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Prefer", "return=minimal")
	return s.do(ctx, "insert", http.MethodPost, nil, hdr, body, nil)
}

// List implements Store.
func (s *RESTStore) List(ctx context.Context) ([]feedback.Record, error) {
	q := url.Values{}
	q.Set("select", "*")

	var recs []feedback.Record
	if err := s.do(ctx, "list", http.MethodGet, q, nil, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Delete implements Store.
func (s *RESTStore) Delete(ctx context.Context, email string) error {
	q := url.Values{}
	q.Set("email", "eq."+email)
	return s.do(ctx, "delete", http.MethodDelete, q, nil, nil, nil)
}

// do issues one request. Status >= 400 becomes ErrRejected carrying the
// response body; transport failures become ErrUnavailable. A non-nil out
// is decoded from the response body.
func (s *RESTStore) do(ctx context.Context, op, method string, q url.Values, hdr http.Header, body []byte, out any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.RecordStoreRequest(op, outcome)
	}()

	if !s.Configured() {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.baseURL + collectionPath
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Error(ctx, "feedback store error",
			logger.String("operation", op),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(msg)))
		return &RejectedError{Status: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// RejectedError is returned for store responses with status >= 400.
// Body is the raw response text.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRejected, e.Status, e.Body)
}

// Is matches ErrRejected.
func (e *RejectedError) Is(target error) bool { return target == ErrRejected }
