// Package models defines the core data structures for ParkEasy.
//
// It includes types for users, parking lots, transactions, passes, and the
// conversation state carried between consecutive WhatsApp messages, which are
// shared across modules.
package models

import (
	"errors"
	"time"
)

// Role identifies the kind of registered user sending a message.
type Role string

const (
	// RoleAttendant is a staff member operating the entry/exit flows on-site.
	RoleAttendant Role = "attendant"
	// RoleOwner is a tenant administrator configuring pricing and staff.
	RoleOwner Role = "owner"
)

// PricingModel selects how a lot bills parked vehicles.
type PricingModel string

const (
	// PricingTiered charges a fixed fee per duration bracket from the rate card.
	PricingTiered PricingModel = "TIERED"
	// PricingBlock charges a fixed fee per N-hour block.
	PricingBlock PricingModel = "BLOCK"
	// PricingHourly charges linearly per hour.
	PricingHourly PricingModel = "HOURLY"
)

// TransactionStatus tags a vehicle stay with how (and whether) it was paid.
type TransactionStatus string

const (
	StatusParkedPaidCash TransactionStatus = "PARKED_PAID_CASH"
	StatusParkedPaidUPI  TransactionStatus = "PARKED_PAID_UPI"
	StatusParkedUnpaid   TransactionStatus = "PARKED_UNPAID"
	StatusParkedPass     TransactionStatus = "PARKED_PASS"

	StatusCompletedCashExit  TransactionStatus = "COMPLETED_CASH_EXIT"
	StatusCompletedUPIExit   TransactionStatus = "COMPLETED_UPI_EXIT"
	StatusCompletedPassExit  TransactionStatus = "COMPLETED_PASS_EXIT"
	StatusCompletedNoFeeExit TransactionStatus = "COMPLETED_NO_FEE_EXIT"
)

// VehicleState tracks whether the vehicle of a transaction is still inside the lot.
type VehicleState string

const (
	VehicleInside VehicleState = "INSIDE"
	VehicleExited VehicleState = "EXITED"
)

// PassStatus marks a pass as usable or revoked.
type PassStatus string

const (
	PassActive   PassStatus = "ACTIVE"
	PassInactive PassStatus = "INACTIVE"
)

// Error variables for better error handling and testability
var (
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidPricingModel = errors.New("invalid pricing model")
	ErrMissingIdentity     = errors.New("user has no identity or role")
	ErrInvalidState        = errors.New("invalid conversation state")
	ErrMissingContext      = errors.New("conversation context missing required fields")
	ErrInvalidTransition   = errors.New("invalid conversation state transition")
)

// Validate checks if the role is supported.
func (r Role) Validate() error {
	switch r {
	case RoleAttendant, RoleOwner:
		return nil
	default:
		return ErrInvalidRole
	}
}

// Validate checks if the pricing model is supported.
func (p PricingModel) Validate() error {
	switch p {
	case PricingTiered, PricingBlock, PricingHourly:
		return nil
	default:
		return ErrInvalidPricingModel
	}
}

// IsPass reports whether the stay is covered by a pass.
func (s TransactionStatus) IsPass() bool {
	return s == StatusParkedPass || s == StatusCompletedPassExit
}

// IsPaidEntry reports whether an entry fee was collected when the vehicle came in.
func (s TransactionStatus) IsPaidEntry() bool {
	return s == StatusParkedPaidCash || s == StatusParkedPaidUPI
}

// User is the identified sender of an inbound message, resolved by phone
// number, together with the conversation state loaded for them.
type User struct {
	Role            Role
	UserID          int64
	LotID           int64
	Phone           string
	State           ConvState
	Context         ConvContext
	SubscriptionEnd *time.Time
}

// SubscriptionActive reports whether the owning tenant's subscription covers
// the given instant.
func (u *User) SubscriptionActive(now time.Time) bool {
	return u.SubscriptionEnd != nil && !u.SubscriptionEnd.Before(now)
}

// ParkingLot holds a lot's identity and pricing configuration.
type ParkingLot struct {
	LotID          int64
	OwnerID        int64
	Name           string
	PricingModel   PricingModel
	BlockRateFee   int
	BlockRateHours int
	HourlyRate     int
	PassRate       int
}

// RateTier is one entry of a TIERED lot's rate card: the total cost when the
// parked duration does not exceed DurationHours.
type RateTier struct {
	DurationHours int
	Fee           int
}

// Transaction represents one vehicle's stay in a lot. TotalFee accumulates
// across entry and exit. Once VehicleState is EXITED the row is never
// mutated again.
type Transaction struct {
	TransactionID  int64
	LotID          int64
	AttendantID    *int64
	VehicleNumber  string
	StartTime      time.Time
	EndTime        *time.Time
	TotalFee       int
	Status         TransactionStatus
	VehicleState   VehicleState
	CustomerNumber string
}

// Pass is a prepaid subscription exempting a vehicle from per-visit billing
// until expiry. Unique per (lot, vehicle number).
type Pass struct {
	PassID         int64
	LotID          int64
	VehicleNumber  string
	ExpiryDate     time.Time
	Status         PassStatus
	CustomerNumber string
}

// Covers reports whether the pass exempts the vehicle at the given instant.
func (p *Pass) Covers(now time.Time) bool {
	return p.Status == PassActive && !p.ExpiryDate.Before(now)
}

// PassType is an owner-configured pass product (name, duration, price).
type PassType struct {
	PassTypeID   int64
	LotID        int64
	Name         string
	DurationDays int
	Fee          int
}

// Customer links a vehicle number to the customer's WhatsApp number for
// receipt and reminder delivery. Unique per (lot, vehicle number).
type Customer struct {
	LotID          int64
	VehicleNumber  string
	WhatsAppNumber string
	LastSeen       time.Time
}

// Owner is a tenant administrator with a subscription window.
type Owner struct {
	OwnerID           int64
	Name              string
	WhatsAppNumber    string
	SubscriptionPlan  string
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	CreatedAt         time.Time
}

// SubscriptionActive reports whether the subscription covers the given instant.
func (o *Owner) SubscriptionActive(now time.Time) bool {
	return o.SubscriptionEnd != nil && !o.SubscriptionEnd.Before(now)
}

// Attendant is a staff member operating the WhatsApp flows for one lot.
type Attendant struct {
	AttendantID    int64
	LotID          int64
	Name           string
	WhatsAppNumber string
	IsActive       bool
}

// DailyReport aggregates a lot's collections and exits over a date window.
type DailyReport struct {
	CashTotal  int
	UPITotal   int
	TotalExits int
	PassExits  int
}

// TotalCollections is the sum of cash and UPI collections.
func (r DailyReport) TotalCollections() int {
	return r.CashTotal + r.UPITotal
}

// PaidExits is the count of exits that were not covered by a pass.
func (r DailyReport) PaidExits() int {
	return r.TotalExits - r.PassExits
}
