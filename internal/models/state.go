// Package models defines conversation state structures for ParkEasy flows.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConvState enumerates the conversation states a user can be parked in
// between messages. StateIdle means no flow is in progress.
type ConvState string

const (
	StateIdle ConvState = "IDLE"

	// Entry flow
	StateAwaitingCustomerNumber      ConvState = "AWAITING_CUSTOMER_NUMBER"
	StateAwaitingPaymentType         ConvState = "AWAITING_PAYMENT_TYPE"
	StateAwaitingParkingConfirmation ConvState = "AWAITING_PARKING_CONFIRMATION"
	StateAwaitingReceiptNumber       ConvState = "AWAITING_CUSTOMER_NUMBER_FOR_RECEIPT"

	// Exit flow
	StateAwaitingCheckoutConfirmation ConvState = "AWAITING_CHECKOUT_CONFIRMATION"
	StateAwaitingExitConfirmation     ConvState = "AWAITING_EXIT_CONFIRMATION"
	StateAwaitingListCheckout         ConvState = "AWAITING_LIST_CHECKOUT"

	// Pass-creation flow
	StateAwaitingPassTypeSelection ConvState = "AWAITING_PASS_TYPE_SELECTION"
	StateAwaitingPassCustomerNum   ConvState = "AWAITING_PASS_CUSTOMER_NUMBER"
	StateAwaitingPassPayment       ConvState = "AWAITING_PASS_PAYMENT_CONFIRM"

	// Owner staff-management flow
	StateAwaitingRemovalConfirmation ConvState = "AWAITING_REMOVAL_CONFIRMATION"
)

// Valid reports whether the state is one the dispatcher knows how to handle.
// An unknown value in the database is treated as corruption and reset.
func (s ConvState) Valid() bool {
	switch s {
	case StateIdle,
		StateAwaitingCustomerNumber, StateAwaitingPaymentType,
		StateAwaitingParkingConfirmation, StateAwaitingReceiptNumber,
		StateAwaitingCheckoutConfirmation, StateAwaitingExitConfirmation,
		StateAwaitingListCheckout,
		StateAwaitingPassTypeSelection, StateAwaitingPassCustomerNum,
		StateAwaitingPassPayment,
		StateAwaitingRemovalConfirmation:
		return true
	default:
		return false
	}
}

// EntryContext carries the entry flow between messages.
type EntryContext struct {
	VehicleNumber  string `json:"vehicle_number"`
	IsPassHolder   bool   `json:"is_pass_holder,omitempty"`
	CustomerNumber string `json:"customer_number,omitempty"`
	EntryFee       int    `json:"entry_fee,omitempty"`
}

// ExitContext carries the exit flow between messages. Fee is the amount due
// computed when the exit was initiated, frozen so confirmation charges
// exactly what was quoted.
type ExitContext struct {
	VehicleNumber string `json:"vehicle_number"`
	Fee           int    `json:"fee"`
	TransactionID int64  `json:"transaction_id"`
}

// PassContext carries the pass-creation flow between messages.
type PassContext struct {
	VehicleNumber  string `json:"vehicle_number"`
	PassName       string `json:"pass_name,omitempty"`
	Fee            int    `json:"fee,omitempty"`
	DurationDays   int    `json:"duration_days,omitempty"`
	CustomerNumber string `json:"customer_number,omitempty"`
}

// RemovalContext carries the staff-removal flow between messages.
type RemovalContext struct {
	AttendantID    int64  `json:"attendant_id"`
	Name           string `json:"name"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

// ConvContext is the conversation context persisted alongside ConvState.
// Exactly one variant is set for any non-idle state; all variants are nil
// when the state is IDLE. Using one struct per flow instead of a free-form
// map makes a missing field a construction-time error instead of a silent
// mid-flow failure.
type ConvContext struct {
	Entry   *EntryContext   `json:"entry,omitempty"`
	Exit    *ExitContext    `json:"exit,omitempty"`
	Pass    *PassContext    `json:"pass,omitempty"`
	Removal *RemovalContext `json:"removal,omitempty"`
}

// Empty reports whether no variant is set.
func (c ConvContext) Empty() bool {
	return c.Entry == nil && c.Exit == nil && c.Pass == nil && c.Removal == nil
}

// ValidateFor checks that the context carries every field the given state's
// handler will read. IDLE requires an empty context; each AWAITING state
// requires its flow's variant with the fields its successor needs.
func (c ConvContext) ValidateFor(state ConvState) error {
	switch state {
	case StateIdle:
		if !c.Empty() {
			return fmt.Errorf("%w: idle state must have empty context", ErrMissingContext)
		}
		return nil
	case StateAwaitingCustomerNumber, StateAwaitingPaymentType, StateAwaitingParkingConfirmation:
		if c.Entry == nil || c.Entry.VehicleNumber == "" {
			return fmt.Errorf("%w: entry context requires vehicle number for state %s", ErrMissingContext, state)
		}
		return nil
	case StateAwaitingReceiptNumber:
		if c.Entry == nil || c.Entry.VehicleNumber == "" {
			return fmt.Errorf("%w: receipt context requires vehicle number", ErrMissingContext)
		}
		return nil
	case StateAwaitingCheckoutConfirmation:
		if c.Entry == nil || c.Entry.VehicleNumber == "" {
			return fmt.Errorf("%w: checkout confirmation requires vehicle number", ErrMissingContext)
		}
		return nil
	case StateAwaitingExitConfirmation:
		if c.Exit == nil || c.Exit.VehicleNumber == "" || c.Exit.TransactionID == 0 {
			return fmt.Errorf("%w: exit context requires vehicle number and transaction id", ErrMissingContext)
		}
		return nil
	case StateAwaitingListCheckout:
		// The list-checkout follow-up keys off the reply alone.
		return nil
	case StateAwaitingPassTypeSelection:
		if c.Pass == nil || c.Pass.VehicleNumber == "" {
			return fmt.Errorf("%w: pass context requires vehicle number", ErrMissingContext)
		}
		return nil
	case StateAwaitingPassCustomerNum, StateAwaitingPassPayment:
		if c.Pass == nil || c.Pass.VehicleNumber == "" || c.Pass.PassName == "" || c.Pass.DurationDays <= 0 {
			return fmt.Errorf("%w: pass context requires vehicle number, pass name and duration for state %s", ErrMissingContext, state)
		}
		return nil
	case StateAwaitingRemovalConfirmation:
		if c.Removal == nil || c.Removal.AttendantID == 0 {
			return fmt.Errorf("%w: removal context requires attendant id", ErrMissingContext)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
}

// stateTransitions is the allowed predecessor set per state. Entering a
// state from anywhere else is a construction-time error caught by
// CanTransition. Any state may transition to IDLE (completion or cancel).
var stateTransitions = map[ConvState][]ConvState{
	StateAwaitingCustomerNumber:       {StateIdle, StateAwaitingListCheckout},
	StateAwaitingPaymentType:          {StateIdle, StateAwaitingCustomerNumber, StateAwaitingListCheckout},
	StateAwaitingParkingConfirmation:  {StateIdle, StateAwaitingListCheckout},
	StateAwaitingReceiptNumber:        {StateAwaitingPaymentType, StateAwaitingParkingConfirmation},
	StateAwaitingCheckoutConfirmation: {StateIdle, StateAwaitingListCheckout},
	StateAwaitingExitConfirmation:     {StateIdle, StateAwaitingCheckoutConfirmation, StateAwaitingListCheckout},
	StateAwaitingListCheckout:         {StateIdle, StateAwaitingListCheckout},
	StateAwaitingPassTypeSelection:    {StateIdle, StateAwaitingListCheckout},
	StateAwaitingPassCustomerNum:      {StateAwaitingPassTypeSelection},
	StateAwaitingPassPayment:          {StateAwaitingPassTypeSelection, StateAwaitingPassCustomerNum},
	StateAwaitingRemovalConfirmation:  {StateIdle, StateAwaitingListCheckout},
}

// CanTransition reports whether moving from one conversation state to
// another is legal. Transitions to IDLE are always allowed.
func CanTransition(from, to ConvState) bool {
	if to == StateIdle {
		return true
	}
	allowed, ok := stateTransitions[to]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == from {
			return true
		}
	}
	return false
}

// ConversationState is the persisted form of a user's conversation position.
type ConversationState struct {
	UserKey   string      `json:"user_key"` // "<role>:<user_id>"
	State     ConvState   `json:"state"`
	Context   ConvContext `json:"context"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// MarshalContext serializes the context for storage. An empty context
// serializes to an empty string so IDLE rows stay visibly empty.
func (c ConvContext) MarshalContext() (string, error) {
	if c.Empty() {
		return "", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation context: %w", err)
	}
	return string(b), nil
}

// UnmarshalContext deserializes a stored context blob. Empty input yields an
// empty context.
func UnmarshalContext(raw string) (ConvContext, error) {
	var c ConvContext
	if raw == "" || raw == "{}" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ConvContext{}, fmt.Errorf("failed to unmarshal conversation context: %w", err)
	}
	return c, nil
}
