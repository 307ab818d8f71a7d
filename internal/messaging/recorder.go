package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// SentMessage is one outbound text captured by the Recorder.
type SentMessage struct {
	To   string
	Body string
}

// SentImage is one outbound image captured by the Recorder.
type SentImage struct {
	To      string
	URL     string
	Caption string
}

// SentTemplate is one outbound template captured by the Recorder.
type SentTemplate struct {
	To     string
	Name   string
	Params []string
}

// Recorder is a Service for tests that records everything sent.
type Recorder struct {
	mu        sync.Mutex
	Messages  []SentMessage
	Images    []SentImage
	Templates []SentTemplate
	// SendErr, when set, is returned by every send.
	SendErr error

	responses chan models.InboundMessage
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{responses: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

func (r *Recorder) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, ok := util.NormalizePhoneNumber(recipient)
	if !ok {
		return "", fmt.Errorf("invalid phone number %q", recipient)
	}
	return canonical, nil
}

func (r *Recorder) SendMessage(ctx context.Context, to string, body string) error {
	if r.SendErr != nil {
		return r.SendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, SentMessage{To: to, Body: body})
	return nil
}

func (r *Recorder) SendInteractive(ctx context.Context, to string, menu models.Interactive) error {
	return r.SendMessage(ctx, to, menu.RenderText())
}

func (r *Recorder) SendImage(ctx context.Context, to string, imageURL, caption string) error {
	if r.SendErr != nil {
		return r.SendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Images = append(r.Images, SentImage{To: to, URL: imageURL, Caption: caption})
	return nil
}

func (r *Recorder) SendTemplate(ctx context.Context, to string, templateName string, params []string) error {
	if r.SendErr != nil {
		return r.SendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Templates = append(r.Templates, SentTemplate{To: to, Name: templateName, Params: params})
	return nil
}

func (r *Recorder) Start(ctx context.Context) error { return nil }
func (r *Recorder) Stop() error                     { return nil }

func (r *Recorder) Responses() <-chan models.InboundMessage { return r.responses }

// Inject feeds a message into the Responses channel, simulating an inbound
// WhatsApp message.
func (r *Recorder) Inject(msg models.InboundMessage) {
	r.responses <- msg
}

// LastMessage returns the most recent sent text, or empty.
func (r *Recorder) LastMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Body
}

// MessagesTo returns every text body sent to a recipient.
func (r *Recorder) MessagesTo(to string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var bodies []string
	for _, m := range r.Messages {
		if m.To == to {
			bodies = append(bodies, m.Body)
		}
	}
	return bodies
}

// Reset clears everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = nil
	r.Images = nil
	r.Templates = nil
}
