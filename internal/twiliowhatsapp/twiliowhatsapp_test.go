package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error when no credentials are configured")
	}

	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error when sender number is missing")
	}

	client, err := NewClient(
		WithAccountSID("AC123"),
		WithAuthToken("tok"),
		WithFromWhats("whatsapp:+14155238886"),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("fromWhats = %q", client.fromWhats)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtok")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+14155238886")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.fromWhats != "whatsapp:+14155238886" {
		t.Errorf("fromWhats = %q", client.fromWhats)
	}
}

func TestMockClientRecordsSends(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	if err := mock.SendMessage(ctx, "919876543210", "Hello Test"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := mock.SendImage(ctx, "919876543210", "https://example.com/pass.png", "Your pass"); err != nil {
		t.Fatalf("SendImage failed: %v", err)
	}

	sent := mock.SentMessages()
	if len(sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sent))
	}
	if sent[0].Body != "Hello Test" {
		t.Errorf("first send body = %q", sent[0].Body)
	}
	if sent[1].URL != "https://example.com/pass.png" || sent[1].Caption != "Your pass" {
		t.Errorf("image send not recorded: %+v", sent[1])
	}
}
