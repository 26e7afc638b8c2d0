package notify

import "github.com/okian/certify/pkg/logger"

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithTransport replaces the SMTP transport.
func WithTransport(t Transport) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.transport = t
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}
