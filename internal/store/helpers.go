package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/parkeasy/parkeasy/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err is a uniqueness-constraint failure
// from either backend.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// scanTransaction scans a Transaction from sql.Rows.
func scanTransaction(rows *sql.Rows) (models.Transaction, error) {
	var t models.Transaction
	var attendantID sql.NullInt64
	var endTime sql.NullTime
	var status, vehicleState string
	err := rows.Scan(
		&t.TransactionID, &t.LotID, &attendantID, &t.VehicleNumber, &t.StartTime, &endTime,
		&t.TotalFee, &status, &vehicleState, &t.CustomerNumber,
	)
	if err != nil {
		return t, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if attendantID.Valid {
		t.AttendantID = &attendantID.Int64
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	t.Status = models.TransactionStatus(status)
	t.VehicleState = models.VehicleState(vehicleState)
	return t, nil
}

// scanTransactionRow scans a Transaction from a single sql.Row, returning
// (nil, nil) when no row matched.
func scanTransactionRow(row *sql.Row) (*models.Transaction, error) {
	var t models.Transaction
	var attendantID sql.NullInt64
	var endTime sql.NullTime
	var status, vehicleState string
	err := row.Scan(
		&t.TransactionID, &t.LotID, &attendantID, &t.VehicleNumber, &t.StartTime, &endTime,
		&t.TotalFee, &status, &vehicleState, &t.CustomerNumber,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	if attendantID.Valid {
		t.AttendantID = &attendantID.Int64
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	t.Status = models.TransactionStatus(status)
	t.VehicleState = models.VehicleState(vehicleState)
	return &t, nil
}

// scanPassRow scans a Pass from a single sql.Row, returning (nil, nil) when
// no row matched.
func scanPassRow(row *sql.Row) (*models.Pass, error) {
	var p models.Pass
	var status string
	err := row.Scan(&p.PassID, &p.LotID, &p.VehicleNumber, &p.ExpiryDate, &status, &p.CustomerNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pass: %w", err)
	}
	p.Status = models.PassStatus(status)
	return &p, nil
}

// scanLotRow scans a ParkingLot from a single sql.Row, returning (nil, nil)
// when no row matched.
func scanLotRow(row *sql.Row, id int64) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	var pricingModel string
	err := row.Scan(&lot.LotID, &lot.OwnerID, &lot.Name, &pricingModel,
		&lot.BlockRateFee, &lot.BlockRateHours, &lot.HourlyRate, &lot.PassRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan parking lot %d: %w", id, err)
	}
	lot.PricingModel = models.PricingModel(pricingModel)
	return &lot, nil
}

// scanOwnerRow scans an Owner from a single sql.Row, returning (nil, nil)
// when no row matched.
func scanOwnerRow(row *sql.Row) (*models.Owner, error) {
	var o models.Owner
	var start, end sql.NullTime
	err := row.Scan(&o.OwnerID, &o.Name, &o.WhatsAppNumber, &o.SubscriptionPlan, &start, &end, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan owner: %w", err)
	}
	if start.Valid {
		o.SubscriptionStart = &start.Time
	}
	if end.Valid {
		o.SubscriptionEnd = &end.Time
	}
	return &o, nil
}
