package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
)

func TestEmailSenderBuildsMessage(t *testing.T) {
	cfg := config.NotifierConfig{
		SMTPHost: "mail.example.com",
		SMTPPort: "587",
		From:     "no-reply@kinmel.local",
	}
	sender := NewEmailSender(cfg, nil)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := sender.Deliver(context.Background(), ChannelEmail, "alice@example.com", "Your one-time password is: 123456.")
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "no-reply@kinmel.local" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "123456") {
		t.Error("message body missing the code")
	}
	if !strings.Contains(string(gotMsg), "Subject:") {
		t.Error("message missing subject header")
	}
}

func TestEmailSenderRejectsWrongChannel(t *testing.T) {
	sender := NewEmailSender(config.NotifierConfig{}, nil)
	if err := sender.Deliver(context.Background(), ChannelSMS, "9800000001", "hi"); err == nil {
		t.Error("email sender should refuse the sms channel")
	}
}

func TestEmailSenderPropagatesFailure(t *testing.T) {
	sender := NewEmailSender(config.NotifierConfig{SMTPHost: "h", SMTPPort: "25"}, nil)
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	if err := sender.Deliver(context.Background(), ChannelEmail, "a@b.c", "hi"); err == nil {
		t.Error("delivery failure should propagate")
	}
}

func TestSMSSenderPostsToGateway(t *testing.T) {
	var gotBody string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSMSSender(config.NotifierConfig{
		SMSGateway: srv.URL,
		SMSAPIKey:  "test-key",
	}, nil)

	err := sender.Deliver(context.Background(), ChannelSMS, "9800000001", "Your password reset code is: 654321.")
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if !strings.Contains(gotBody, "9800000001") || !strings.Contains(gotBody, "654321") {
		t.Errorf("gateway payload = %q", gotBody)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestSMSSenderGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewSMSSender(config.NotifierConfig{SMSGateway: srv.URL}, nil)
	if err := sender.Deliver(context.Background(), ChannelSMS, "9800000001", "hi"); err == nil {
		t.Error("gateway error status should fail the delivery")
	}
}

func TestSMSSenderUnconfigured(t *testing.T) {
	sender := NewSMSSender(config.NotifierConfig{}, nil)
	if err := sender.Deliver(context.Background(), ChannelSMS, "9800000001", "hi"); err == nil {
		t.Error("missing gateway should fail")
	}
}

func TestRouterDispatchesByChannel(t *testing.T) {
	var emailCalls, smsCalls int
	email := notifierFunc(func(_ context.Context, ch Channel, _, _ string) error {
		emailCalls++
		if ch != ChannelEmail {
			t.Errorf("email sender got channel %q", ch)
		}
		return nil
	})
	sms := notifierFunc(func(_ context.Context, ch Channel, _, _ string) error {
		smsCalls++
		return nil
	})

	router := NewRouter(email, sms)
	if err := router.Deliver(context.Background(), ChannelEmail, "a@b.c", "hi"); err != nil {
		t.Fatalf("email dispatch failed: %v", err)
	}
	if err := router.Deliver(context.Background(), ChannelSMS, "980", "hi"); err != nil {
		t.Fatalf("sms dispatch failed: %v", err)
	}
	if emailCalls != 1 || smsCalls != 1 {
		t.Errorf("calls = %d email, %d sms", emailCalls, smsCalls)
	}

	if err := router.Deliver(context.Background(), Channel("pigeon"), "x", "hi"); err == nil {
		t.Error("unknown channel should fail")
	}
}

// notifierFunc adapts a function to the Notifier interface
type notifierFunc func(ctx context.Context, channel Channel, recipient, message string) error

func (f notifierFunc) Deliver(ctx context.Context, channel Channel, recipient, message string) error {
	return f(ctx, channel, recipient, message)
}
