// Package models defines the intent envelope returned by the language classifier.
package models

// Intent is the structured command extracted from free text.
type Intent string

const (
	IntentVehicleCheckIn    Intent = "vehicle_check_in"
	IntentVehicleCheckout   Intent = "vehicle_checkout"
	IntentGetStatus         Intent = "get_status"
	IntentListVehicles      Intent = "list_vehicles"
	IntentAddPass           Intent = "add_pass"
	IntentRemovePass        Intent = "remove_pass"
	IntentViewPasses        Intent = "view_passes"
	IntentAddAttendant      Intent = "add_attendant"
	IntentRemoveAttendant   Intent = "remove_attendant"
	IntentManageAttendant   Intent = "manage_attendant"
	IntentListAttendants    Intent = "list_attendants"
	IntentActivateAttendant Intent = "activate_attendant"
	IntentGetReport         Intent = "get_report"
	IntentGetHelp           Intent = "get_help"
	IntentShowMenu          Intent = "show_menu"
	IntentSetPricingModel   Intent = "set_pricing_model"
	IntentSetTieredRate     Intent = "set_tiered_rate"
	IntentSetFlatRate       Intent = "set_flat_rate"
	IntentSetPassRate       Intent = "set_pass_rate"
	IntentViewRates         Intent = "view_rates"

	IntentAdminStartSubscription Intent = "admin_start_subscription"
	IntentAdminListOwners        Intent = "admin_list_owners"
	IntentAdminDisableOwner      Intent = "admin_disable_owner"
	IntentAdminBroadcast         Intent = "admin_broadcast_message"
	IntentAdminSystemStatus      Intent = "admin_system_status"

	IntentFallback Intent = "fallback"
)

// OwnerOnly reports whether the intent may only be executed by an owner.
func (i Intent) OwnerOnly() bool {
	switch i {
	case IntentAddPass, IntentRemovePass, IntentViewPasses,
		IntentAddAttendant, IntentRemoveAttendant, IntentManageAttendant,
		IntentListAttendants, IntentActivateAttendant,
		IntentGetReport,
		IntentSetPricingModel, IntentSetTieredRate, IntentSetFlatRate,
		IntentSetPassRate, IntentViewRates:
		return true
	default:
		return false
	}
}

// AdminOnly reports whether the intent belongs to the super-admin surface.
func (i Intent) AdminOnly() bool {
	switch i {
	case IntentAdminStartSubscription, IntentAdminListOwners,
		IntentAdminDisableOwner, IntentAdminBroadcast, IntentAdminSystemStatus:
		return true
	default:
		return false
	}
}

// IntentResult is the JSON envelope produced by the classifier. Fields are
// populated per intent; every extracted parameter must still be validated by
// the handler, independently of classifier confidence.
type IntentResult struct {
	Intent   Intent `json:"intent"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text,omitempty"`

	VehicleNumber  string   `json:"vehicle_number,omitempty"`
	CustomerNumber string   `json:"customer_number,omitempty"`
	Identifiers    []string `json:"identifiers,omitempty"`
	Identifier     string   `json:"identifier,omitempty"`
	PaymentMethod  string   `json:"payment_method,omitempty"`

	Duration     int    `json:"duration,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
	Fee          int    `json:"fee,omitempty"`
	Hours        int    `json:"hours,omitempty"`
	RateType     string `json:"rate_type,omitempty"`
	ModelType    string `json:"model_type,omitempty"`
	DatePeriod   string `json:"date_period,omitempty"`
	Filter       string `json:"filter,omitempty"`

	AttendantName   string `json:"attendant_name,omitempty"`
	AttendantNumber string `json:"attendant_number,omitempty"`

	OwnerName     string `json:"owner_name,omitempty"`
	OwnerNumber   string `json:"owner_number,omitempty"`
	LotName       string `json:"lot_name,omitempty"`
	PlanName      string `json:"plan_name,omitempty"`
	TargetGroup   string `json:"target_group,omitempty"`
	LotID         int64  `json:"lot_id,omitempty"`
	BroadcastText string `json:"broadcast_text,omitempty"`
}

// FallbackIntent wraps unclassifiable text in the fallback envelope.
func FallbackIntent(text string) IntentResult {
	return IntentResult{Intent: IntentFallback, Text: text}
}
