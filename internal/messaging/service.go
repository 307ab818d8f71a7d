// Package messaging provides pluggable WhatsApp delivery backends for
// ParkEasy: a Whatsmeow-based client and a Twilio-based client, plus a
// recorder used in tests.
package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for inbound message channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient phone number into the digits-only form used everywhere in
	// the system.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendInteractive sends a menu. Backends without native interactive
	// messages render it as numbered text.
	SendInteractive(ctx context.Context, to string, menu models.Interactive) error

	// SendImage sends an image by URL with an optional caption.
	SendImage(ctx context.Context, to string, imageURL, caption string) error

	// SendTemplate sends a pre-approved notification template with its
	// positional parameters.
	SendTemplate(ctx context.Context, to string, templateName string, params []string) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.InboundMessage
}

// templates maps notification template names to their text form, used by
// backends that cannot send real WhatsApp business templates.
var templates = map[string]string{
	"pass_expiry_reminder": "🔔 Reminder: the pass for vehicle %s at %s expires on %s. Renew at the counter to keep parking without charges.",
}
