package notify

import (
	"context"

	"github.com/wneessen/go-mail"
)

// DefaultPort is the submission port used when none is configured.
const DefaultPort = 587

// Settings holds mail relay credentials.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether delivery can be attempted.
func (s Settings) Configured() bool {
	return s.Host != "" && s.Username != "" && s.Password != ""
}

func (s Settings) sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

func (s Settings) port() int {
	if s.Port > 0 {
		return s.Port
	}
	return DefaultPort
}

// Transport sends fully built messages.
type Transport interface {
	DialAndSend(ctx context.Context, msgs ...*mail.Msg) error
}

// SMTPTransport dials the relay for every send, upgrades with STARTTLS and
// authenticates with PLAIN.
type SMTPTransport struct {
	settings Settings
}

// NewSMTPTransport creates a transport for s.
func NewSMTPTransport(s Settings) *SMTPTransport {
	return &SMTPTransport{settings: s}
}

// DialAndSend implements Transport.
func (t *SMTPTransport) DialAndSend(ctx context.Context, msgs ...*mail.Msg) error {
	c, err := mail.NewClient(t.settings.Host,
		mail.WithPort(t.settings.port()),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.settings.Username),
		mail.WithPassword(t.settings.Password),
	)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msgs...)
}
