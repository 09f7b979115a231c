package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
)

// EmailSender delivers messages over SMTP. It only handles the email
// channel; pair it with an SMS sender through NewRouter.
type EmailSender struct {
	cfg    config.NotifierConfig
	logger *slog.Logger

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSender creates a new EmailSender instance
func NewEmailSender(cfg config.NotifierConfig, logger *slog.Logger) *EmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailSender{
		cfg:    cfg,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// Deliver sends the message to the recipient's email address
func (s *EmailSender) Deliver(ctx context.Context, channel Channel, recipient, message string) error {
	if channel != ChannelEmail {
		return fmt.Errorf("email sender cannot deliver on channel %q", channel)
	}

	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your verification code\r\n\r\n%s\r\n",
		s.cfg.From, recipient, message)

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.cfg.From, []string{recipient}, []byte(body))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
	}

	s.logger.Debug("email delivered", slog.String("recipient", recipient))
	return nil
}
