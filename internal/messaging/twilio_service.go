package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/twiliowhatsapp"
	"github.com/parkeasy/parkeasy/internal/util"
)

// TwilioService implements the Service interface using the Twilio API.
type TwilioService struct {
	client    twiliowhatsapp.TwilioWhatsAppSender
	responses chan models.InboundMessage
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a new TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient normalizes an Indian WhatsApp number to
// its 12-digit digits-only form.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, ok := util.NormalizePhoneNumber(recipient)
	if !ok {
		return "", fmt.Errorf("invalid phone number %q", recipient)
	}
	return canonical, nil
}

// Start is a no-op for Twilio; inbound traffic arrives over the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// SendMessage sends a message via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// SendInteractive renders the menu as numbered text. Twilio's session
// messages are plain text; the dispatcher resolves numeric replies.
func (s *TwilioService) SendInteractive(ctx context.Context, to string, menu models.Interactive) error {
	return s.SendMessage(ctx, to, menu.RenderText())
}

// SendImage sends an image by URL with a caption.
func (s *TwilioService) SendImage(ctx context.Context, to string, imageURL, caption string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendImage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendImage(ctx, canonicalTo, imageURL, caption)
}

// SendTemplate renders a known template to text and sends it as a session
// message.
func (s *TwilioService) SendTemplate(ctx context.Context, to string, templateName string, params []string) error {
	format, ok := templates[templateName]
	if !ok {
		return fmt.Errorf("unknown template %q", templateName)
	}
	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}
	return s.SendMessage(ctx, to, fmt.Sprintf(format, args...))
}

// Responses returns the channel for incoming messages.
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// TwilioWebhookHandler handles inbound Twilio webhook requests, emitting
// parsed messages into the Responses() channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from", from)
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonical, ok := util.NormalizePhoneNumber(from)
	if !ok {
		slog.Warn("Twilio webhook sender not a valid number", "from", from)
		w.WriteHeader(http.StatusOK)
		return
	}

	slog.Debug("Inbound WhatsApp message from Twilio", "from", canonical, "body_length", len(body))
	s.safeEmitResponse(models.InboundMessage{From: canonical, Body: body, Timestamp: time.Now()})

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitResponse pushes a message into the responses channel unless the
// service is stopped or the channel is saturated.
func (s *TwilioService) safeEmitResponse(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.From)
		return
	}

	select {
	case s.responses <- msg:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", msg.From)
	}
}
