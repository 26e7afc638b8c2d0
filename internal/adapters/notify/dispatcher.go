// Package notify emails rendered certificates to attendees.
//
// Delivery is best effort. Send never returns an error to its caller;
// failures travel in Result so the caller can log them and move on.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
	"github.com/wneessen/go-mail"
)

// Fixed message content.
const (
	Subject        = "Your Certificate - Valli Hospital"
	Body           = "Thank you for your feedback! Here is your certificate."
	AttachmentType = "application/pdf"
)

// Result is the outcome of one delivery attempt.
type Result struct {
	Recipient string
	Skipped   bool
	Err       error
}

// Log records the outcome and drops the error.
func (r Result) Log(ctx context.Context, l logger.Logger) {
	switch {
	case r.Skipped:
		metrics.RecordDelivery("skipped")
		l.Debug(ctx, "mail relay not configured, certificate not sent", logger.String("recipient", r.Recipient))
	case r.Err != nil:
		metrics.RecordDelivery("failed")
		l.Error(ctx, "email error", logger.String("recipient", r.Recipient), logger.Error(r.Err))
	default:
		metrics.RecordDelivery("sent")
		l.Info(ctx, "certificate sent", logger.String("recipient", r.Recipient))
	}
}

// Dispatcher builds and sends certificate emails.
type Dispatcher struct {
	settings  Settings
	transport Transport
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher for s. Without WithTransport it sends
// through the SMTP relay described by s.
func NewDispatcher(s Settings, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		settings: s,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.transport == nil {
		d.transport = NewSMTPTransport(s)
	}
	return d
}

// Configured reports whether Send will attempt delivery.
func (d *Dispatcher) Configured() bool { return d.settings.Configured() }

// Send emails the artifact at path to recipient. Without relay
// credentials it returns a skipped result and touches nothing.
func (d *Dispatcher) Send(ctx context.Context, recipient, path string) Result {
	res := Result{Recipient: recipient}
	if !d.settings.Configured() {
		res.Skipped = true
		return res
	}

	start := time.Now()
	msg, err := d.Build(recipient, path)
	if err != nil {
		res.Err = err
		return res
	}
	if err := d.transport.DialAndSend(ctx, msg); err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrDeliver, err)
		return res
	}
	metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
	return res
}

// Build assembles the message without sending it.
func (d *Dispatcher) Build(recipient, path string) (*mail.Msg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read attachment: %w", ErrBuildMessage, err)
	}

	m := mail.NewMsg()
	if err := m.From(d.settings.sender()); err != nil {
		return nil, fmt.Errorf("%w: from: %w", ErrBuildMessage, err)
	}
	if err := m.To(recipient); err != nil {
		return nil, fmt.Errorf("%w: to: %w", ErrBuildMessage, err)
	}
	m.Subject(Subject)
	m.SetBodyString(mail.TypeTextPlain, Body)
	if err := m.AttachReader(filepath.Base(path), bytes.NewReader(data),
		mail.WithFileContentType(mail.ContentType(AttachmentType))); err != nil {
		return nil, fmt.Errorf("%w: attach: %w", ErrBuildMessage, err)
	}
	return m, nil
}
