// Package store provides storage backends for ParkEasy.
//
// It persists owners, lots, attendants, transactions, passes, customers and
// per-user conversation state, with PostgreSQL and SQLite backends plus an
// in-memory store for tests.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// such as registering an attendant number twice.
var ErrDuplicate = errors.New("duplicate record")

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string.
	DSN string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType inspects a DSN and reports which driver it belongs to:
// "postgres" for URL or key=value style connection strings, "sqlite3" for
// plain file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "user=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// Store is the persistence interface the flows depend on. Lookups that find
// nothing return (nil, nil) rather than an error.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// ResolveUser maps a WhatsApp number to a registered user. Active
	// attendants take precedence over owners, matching how messages are
	// routed on site. Returns (nil, nil) when the number is unregistered.
	ResolveUser(ctx context.Context, phone string) (*models.User, error)

	GetLot(ctx context.Context, lotID int64) (*models.ParkingLot, error)
	GetLotByOwner(ctx context.Context, ownerID int64) (*models.ParkingLot, error)
	GetRateTiers(ctx context.Context, lotID int64) ([]models.RateTier, error)
	SetPricingModel(ctx context.Context, lotID int64, model models.PricingModel) error
	UpsertRateTier(ctx context.Context, lotID int64, durationHours, fee int) error
	SetBlockRate(ctx context.Context, lotID int64, fee, hours int) error
	SetHourlyRate(ctx context.Context, lotID int64, rate int) error
	SetPassRate(ctx context.Context, lotID int64, fee int) error

	InsertTransaction(ctx context.Context, txn models.Transaction) (int64, error)
	// FindInsideByVehicle returns the most recent INSIDE transaction for a
	// vehicle, or (nil, nil).
	FindInsideByVehicle(ctx context.Context, lotID int64, vehicleNumber string) (*models.Transaction, error)
	// FindInsideByPosition returns the nth INSIDE transaction (1-based) in
	// entry-time order, matching the numbering shown by the vehicle list.
	FindInsideByPosition(ctx context.Context, lotID int64, position int) (*models.Transaction, error)
	ListInside(ctx context.Context, lotID int64) ([]models.Transaction, error)
	CountInside(ctx context.Context, lotID int64) (int, error)
	CompleteExit(ctx context.Context, transactionID int64, status models.TransactionStatus, totalFee int, endTime time.Time) error
	SetTransactionCustomer(ctx context.Context, transactionID int64, customerNumber string) error

	GetActivePass(ctx context.Context, lotID int64, vehicleNumber string, now time.Time) (*models.Pass, error)
	UpsertPass(ctx context.Context, pass models.Pass) error
	// DeactivatePass marks a vehicle's active pass INACTIVE and reports
	// whether one existed.
	DeactivatePass(ctx context.Context, lotID int64, vehicleNumber string, expiry time.Time) (bool, error)
	ListActivePasses(ctx context.Context, lotID int64, now time.Time) ([]models.Pass, error)
	ListExpiringPasses(ctx context.Context, lotID int64, from, until time.Time) ([]models.Pass, error)
	ListPassTypes(ctx context.Context, lotID int64) ([]models.PassType, error)

	UpsertCustomer(ctx context.Context, customer models.Customer) error
	GetCustomer(ctx context.Context, lotID int64, vehicleNumber string) (*models.Customer, error)
	// LatestTransactionForCustomer returns the most recent transaction whose
	// customer number matches, across all lots, or (nil, nil).
	LatestTransactionForCustomer(ctx context.Context, customerNumber string) (*models.Transaction, error)

	AddAttendant(ctx context.Context, attendant models.Attendant) (int64, error)
	ListAttendants(ctx context.Context, lotID int64, activeOnly bool) ([]models.Attendant, error)
	SetAttendantActive(ctx context.Context, attendantID int64, active bool) error
	// DeleteAttendant detaches the attendant from past transactions, then
	// deletes the row. Both happen in one database transaction so history
	// is never orphaned.
	DeleteAttendant(ctx context.Context, attendantID int64) error
	CountActiveAttendants(ctx context.Context, lotID int64) (int, error)

	GetOwnerByPhone(ctx context.Context, phone string) (*models.Owner, error)
	// CreateOwnerWithLot creates an owner and their lot atomically and
	// returns (ownerID, lotID).
	CreateOwnerWithLot(ctx context.Context, owner models.Owner, lotName string, hourlyRate int) (int64, int64, error)
	SetOwnerSubscription(ctx context.Context, ownerID int64, plan string, start, end time.Time) error
	SetOwnerSubscriptionEnd(ctx context.Context, ownerID int64, end time.Time) error
	ListOwners(ctx context.Context) ([]models.Owner, error)
	ListOwnersExpiringBetween(ctx context.Context, from, until time.Time) ([]models.Owner, error)
	ListActiveOwners(ctx context.Context, now time.Time) ([]models.Owner, error)

	GetConversationState(ctx context.Context, userKey string) (*models.ConversationState, error)
	SaveConversationState(ctx context.Context, state models.ConversationState) error
	DeleteConversationState(ctx context.Context, userKey string) error

	DailyReport(ctx context.Context, lotID int64, from, until time.Time) (models.DailyReport, error)
}

// NewStore opens the backend matching the DSN type.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
