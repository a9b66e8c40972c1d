package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/go-mail"

	"news_digest/internal/domain"
)

// SMTP sends digest emails through the configured outbound server.
// The underlying client is built lazily from the active mail settings
// and rebuilt whenever the settings change or a send fails; each
// delivery performs a full dial handshake before transmitting.
type SMTP struct {
	mu       sync.Mutex
	client   *mail.Client
	settings domain.MailSettings
	logger   *slog.Logger
}

func NewSMTP(logger *slog.Logger) *SMTP {
	return &SMTP{logger: logger.With("component", "mailer")}
}

// Send delivers one message to every recipient in a single SMTP
// transaction.
func (s *SMTP) Send(ctx context.Context, settings domain.MailSettings, email domain.Email) error {
	client, err := s.clientFor(settings)
	if err != nil {
		return fmt.Errorf("init mail client: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(email.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(email.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		s.reset()
		return fmt.Errorf("send mail: %w", err)
	}

	s.logger.Debug("mail sent",
		"subject", email.Subject,
		"recipients", len(email.To),
	)

	return nil
}

func (s *SMTP) clientFor(settings domain.MailSettings) (*mail.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && sameServer(s.settings, settings) {
		return s.client, nil
	}

	opts := []mail.Option{
		mail.WithPort(settings.Port),
	}

	switch settings.Security {
	case domain.MailSecuritySSL:
		opts = append(opts, mail.WithSSL())
	case domain.MailSecurityNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(settings.Username),
			mail.WithPassword(settings.Password),
		)
	}

	client, err := mail.NewClient(settings.Host, opts...)
	if err != nil {
		return nil, err
	}

	s.client = client
	s.settings = settings
	return client, nil
}

func (s *SMTP) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
}

func sameServer(a, b domain.MailSettings) bool {
	return a.Host == b.Host &&
		a.Port == b.Port &&
		a.Username == b.Username &&
		a.Password == b.Password &&
		a.Security == b.Security
}
