package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// metaWebhookPayload mirrors the relevant slice of the WhatsApp Cloud API
// webhook envelope. Button and list replies carry the chosen option's title,
// which the flows treat the same as typed text.
type metaWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text *struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive *struct {
						ButtonReply *struct {
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply *struct {
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// message extracts the first inbound message, or ok=false for status-only
// notifications.
func (p metaWebhookPayload) message() (models.InboundMessage, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return models.InboundMessage{}, false
	}
	messages := p.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return models.InboundMessage{}, false
	}
	m := messages[0]
	body := ""
	switch {
	case m.Text != nil:
		body = m.Text.Body
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		body = m.Interactive.ButtonReply.Title
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		body = m.Interactive.ListReply.Title
	}
	if m.From == "" || body == "" {
		return models.InboundMessage{}, false
	}
	return models.InboundMessage{From: m.From, Body: body, Timestamp: time.Now()}, true
}

// verifyWebhook answers Meta's subscription handshake.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") == "subscribe" && query.Get("hub.verify_token") == s.verifyToken && s.verifyToken != "" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, query.Get("hub.challenge"))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}

// receiveMetaWebhook accepts an inbound message notification. It always
// answers 200 so Meta never retries a message the flows already saw; the
// actual handling runs in the background.
func (s *Server) receiveMetaWebhook(w http.ResponseWriter, r *http.Request) {
	var payload metaWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server webhook payload decode failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if msg, ok := payload.message(); ok {
		s.dispatch(msg)
	}
	w.WriteHeader(http.StatusOK)
}

// receiveTwilioWebhook accepts Twilio's form-encoded inbound message
// callback. The From field arrives as "whatsapp:+91...".
func (s *Server) receiveTwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server Twilio webhook parse failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	if canonical, ok := util.NormalizePhoneNumber(from); ok && body != "" {
		s.dispatch(models.InboundMessage{From: canonical, Body: body, Timestamp: time.Now()})
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

func (s *Server) dispatch(msg models.InboundMessage) {
	go func() {
		if err := s.handler.HandleMessage(context.Background(), msg); err != nil {
			slog.Error("Server message handling failed", "error", err, "from", msg.From)
		}
	}()
}
