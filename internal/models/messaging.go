package models

import "time"

// InboundMessage is a text message received from a WhatsApp user, after the
// transport-specific envelope has been stripped. From carries digits only
// (country code included), the same form stored for users and customers.
type InboundMessage struct {
	From      string
	Body      string
	Timestamp time.Time
}
