package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

type recordingHandler struct {
	ch chan models.InboundMessage
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ch: make(chan models.InboundMessage, 10)}
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	h.ch <- msg
	return nil
}

func (h *recordingHandler) wait(t *testing.T) models.InboundMessage {
	t.Helper()
	select {
	case msg := <-h.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message was dispatched")
		return models.InboundMessage{}
	}
}

type recordingDaily struct {
	ch chan struct{}
}

func (d *recordingDaily) Run(ctx context.Context) error {
	d.ch <- struct{}{}
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingHandler, *recordingDaily) {
	t.Helper()
	handler := newRecordingHandler()
	daily := &recordingDaily{ch: make(chan struct{}, 1)}
	server, err := NewServer(handler, daily,
		WithVerifyToken("verify-me"),
		WithCronSecret("cron-secret"),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, handler, daily
}

func TestVerifyWebhook(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "12345" {
		t.Errorf("body = %q, want the challenge echoed", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong", nil)
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a bad token", rec.Code)
	}
}

func TestMetaWebhookDispatchesTextMessage(t *testing.T) {
	server, handler, _ := newTestServer(t)

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"919876543210","text":{"body":"GJ05RT1234"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	msg := handler.wait(t)
	if msg.From != "919876543210" || msg.Body != "GJ05RT1234" {
		t.Errorf("message = %+v", msg)
	}
}

func TestMetaWebhookDispatchesButtonReply(t *testing.T) {
	server, handler, _ := newTestServer(t)

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"919876543210","interactive":{"button_reply":{"id":"pay_cash","title":"Cash"}}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	msg := handler.wait(t)
	if msg.Body != "Cash" {
		t.Errorf("body = %q, want the button title", msg.Body)
	}
}

func TestMetaWebhookIgnoresStatusOnlyNotifications(t *testing.T) {
	server, handler, _ := newTestServer(t)

	payload := `{"entry":[{"changes":[{"value":{"statuses":[{"status":"delivered"}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with nothing to do", rec.Code)
	}

	select {
	case msg := <-handler.ch:
		t.Errorf("unexpected dispatch: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTwilioWebhookDispatchesMessage(t *testing.T) {
	server, handler, _ := newTestServer(t)

	form := url.Values{}
	form.Set("From", "whatsapp:+919876543210")
	form.Set("Body", "status")
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	msg := handler.wait(t)
	if msg.From != "919876543210" {
		t.Errorf("from = %q, want the canonical digits", msg.From)
	}
	if msg.Body != "status" {
		t.Errorf("body = %q", msg.Body)
	}
}

func TestRunDailyTasksRequiresSecret(t *testing.T) {
	server, _, daily := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/run-daily-tasks", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without the secret", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/run-daily-tasks", nil)
	req.Header.Set("x-cron-secret", "cron-secret")
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); !strings.Contains(string(body), "Daily tasks are running") {
		t.Errorf("body = %q", body)
	}

	select {
	case <-daily.ch:
	case <-time.After(2 * time.Second):
		t.Error("daily tasks were not started")
	}
}
