package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
)

// SMSSender delivers messages through an HTTP SMS gateway
type SMSSender struct {
	cfg    config.NotifierConfig
	client *http.Client
	logger *slog.Logger
}

// NewSMSSender creates a new SMSSender instance
func NewSMSSender(cfg config.NotifierConfig, logger *slog.Logger) *SMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Deliver posts the message to the configured SMS gateway
func (s *SMSSender) Deliver(ctx context.Context, channel Channel, recipient, message string) error {
	if channel != ChannelSMS {
		return fmt.Errorf("sms sender cannot deliver on channel %q", channel)
	}
	if s.cfg.SMSGateway == "" {
		return fmt.Errorf("sms gateway not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"to":      recipient,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.SMSGateway, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.SMSAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.SMSAPIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	s.logger.Debug("sms delivered", slog.String("recipient", recipient))
	return nil
}

// Router dispatches deliveries to the sender registered for each channel
type Router struct {
	senders map[Channel]Notifier
}

// NewRouter creates a Router from per-channel senders
func NewRouter(email, sms Notifier) *Router {
	return &Router{
		senders: map[Channel]Notifier{
			ChannelEmail: email,
			ChannelSMS:   sms,
		},
	}
}

// Deliver forwards to the sender registered for the channel
func (r *Router) Deliver(ctx context.Context, channel Channel, recipient, message string) error {
	sender, ok := r.senders[channel]
	if !ok || sender == nil {
		return fmt.Errorf("no sender registered for channel %q", channel)
	}
	return sender.Deliver(ctx, channel, recipient, message)
}
