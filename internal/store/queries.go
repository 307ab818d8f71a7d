package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// dbStore holds the query implementations shared by the PostgreSQL and SQLite
// backends. Queries are written with "?" placeholders and rebound to "$n" for
// PostgreSQL, so the two dialects cannot drift apart.
type dbStore struct {
	db         *sql.DB
	bindDollar bool
}

// rebind converts "?" placeholders to "$1".."$n" when the backend needs it.
func (s *dbStore) rebind(query string) string {
	if !s.bindDollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *dbStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ResolveUser checks active attendants first, then owners, so a number
// registered as both acts as an attendant.
func (s *dbStore) ResolveUser(ctx context.Context, phone string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT a.attendant_id, a.lot_id, o.subscription_end
		FROM attendants a
		JOIN parking_lots l ON l.lot_id = a.lot_id
		JOIN owners o ON o.owner_id = l.owner_id
		WHERE a.whatsapp_number = ? AND a.is_active = TRUE`), phone)

	var user models.User
	var subEnd sql.NullTime
	err := row.Scan(&user.UserID, &user.LotID, &subEnd)
	switch {
	case err == nil:
		user.Role = models.RoleAttendant
		user.Phone = phone
		if subEnd.Valid {
			user.SubscriptionEnd = &subEnd.Time
		}
		slog.Debug("Store ResolveUser found attendant", "phone", phone, "lotID", user.LotID)
		return &user, nil
	case err != sql.ErrNoRows:
		slog.Error("Store ResolveUser attendant lookup failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to resolve attendant: %w", err)
	}

	row = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT o.owner_id, COALESCE(l.lot_id, 0), o.subscription_end
		FROM owners o
		LEFT JOIN parking_lots l ON l.owner_id = o.owner_id
		WHERE o.whatsapp_number = ?`), phone)

	err = row.Scan(&user.UserID, &user.LotID, &subEnd)
	if err == sql.ErrNoRows {
		slog.Debug("Store ResolveUser no registered user", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("Store ResolveUser owner lookup failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to resolve owner: %w", err)
	}
	user.Role = models.RoleOwner
	user.Phone = phone
	if subEnd.Valid {
		user.SubscriptionEnd = &subEnd.Time
	}
	slog.Debug("Store ResolveUser found owner", "phone", phone, "lotID", user.LotID)
	return &user, nil
}

func (s *dbStore) GetLot(ctx context.Context, lotID int64) (*models.ParkingLot, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT lot_id, owner_id, name, COALESCE(pricing_model, ''),
		       COALESCE(block_rate_fee, 0), COALESCE(block_rate_hours, 0),
		       COALESCE(hourly_rate, 0), COALESCE(pass_rate, 0)
		FROM parking_lots WHERE lot_id = ?`), lotID)
	return scanLotRow(row, lotID)
}

func (s *dbStore) GetLotByOwner(ctx context.Context, ownerID int64) (*models.ParkingLot, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT lot_id, owner_id, name, COALESCE(pricing_model, ''),
		       COALESCE(block_rate_fee, 0), COALESCE(block_rate_hours, 0),
		       COALESCE(hourly_rate, 0), COALESCE(pass_rate, 0)
		FROM parking_lots WHERE owner_id = ?`), ownerID)
	return scanLotRow(row, ownerID)
}

func (s *dbStore) GetRateTiers(ctx context.Context, lotID int64) ([]models.RateTier, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT duration_hours, fee FROM rate_cards
		WHERE lot_id = ? ORDER BY duration_hours ASC`), lotID)
	if err != nil {
		slog.Error("Store GetRateTiers query failed", "error", err, "lotID", lotID)
		return nil, fmt.Errorf("failed to query rate card: %w", err)
	}
	defer rows.Close()
	var tiers []models.RateTier
	for rows.Next() {
		var t models.RateTier
		if err := rows.Scan(&t.DurationHours, &t.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan rate tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rate tiers: %w", err)
	}
	return tiers, nil
}

func (s *dbStore) SetPricingModel(ctx context.Context, lotID int64, model models.PricingModel) error {
	if err := model.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE parking_lots SET pricing_model = ? WHERE lot_id = ?`), string(model), lotID)
	if err != nil {
		slog.Error("Store SetPricingModel failed", "error", err, "lotID", lotID, "model", model)
		return fmt.Errorf("failed to set pricing model: %w", err)
	}
	slog.Debug("Store SetPricingModel succeeded", "lotID", lotID, "model", model)
	return nil
}

func (s *dbStore) UpsertRateTier(ctx context.Context, lotID int64, durationHours, fee int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO rate_cards (lot_id, duration_hours, fee)
		VALUES (?, ?, ?)
		ON CONFLICT (lot_id, duration_hours)
		DO UPDATE SET fee = EXCLUDED.fee`), lotID, durationHours, fee)
	if err != nil {
		slog.Error("Store UpsertRateTier failed", "error", err, "lotID", lotID, "hours", durationHours)
		return fmt.Errorf("failed to upsert rate tier: %w", err)
	}
	slog.Debug("Store UpsertRateTier succeeded", "lotID", lotID, "hours", durationHours, "fee", fee)
	return nil
}

func (s *dbStore) SetBlockRate(ctx context.Context, lotID int64, fee, hours int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE parking_lots SET pricing_model = ?, block_rate_fee = ?, block_rate_hours = ? WHERE lot_id = ?`),
		string(models.PricingBlock), fee, hours, lotID)
	if err != nil {
		slog.Error("Store SetBlockRate failed", "error", err, "lotID", lotID)
		return fmt.Errorf("failed to set block rate: %w", err)
	}
	return nil
}

func (s *dbStore) SetHourlyRate(ctx context.Context, lotID int64, rate int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE parking_lots SET pricing_model = ?, hourly_rate = ? WHERE lot_id = ?`),
		string(models.PricingHourly), rate, lotID)
	if err != nil {
		slog.Error("Store SetHourlyRate failed", "error", err, "lotID", lotID)
		return fmt.Errorf("failed to set hourly rate: %w", err)
	}
	return nil
}

func (s *dbStore) SetPassRate(ctx context.Context, lotID int64, fee int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE parking_lots SET pass_rate = ? WHERE lot_id = ?`), fee, lotID)
	if err != nil {
		slog.Error("Store SetPassRate failed", "error", err, "lotID", lotID)
		return fmt.Errorf("failed to set pass rate: %w", err)
	}
	return nil
}

const transactionColumns = `transaction_id, lot_id, attendant_id, vehicle_number, start_time, end_time,
	total_fee, status, vehicle_state, COALESCE(customer_whatsapp_number, '')`

func (s *dbStore) InsertTransaction(ctx context.Context, txn models.Transaction) (int64, error) {
	query := s.rebind(`
		INSERT INTO transactions (lot_id, attendant_id, vehicle_number, start_time, total_fee, status, vehicle_state, customer_whatsapp_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	args := []interface{}{txn.LotID, txn.AttendantID, txn.VehicleNumber, txn.StartTime,
		txn.TotalFee, string(txn.Status), string(txn.VehicleState), nilIfEmpty(txn.CustomerNumber)}

	var id int64
	var err error
	if s.bindDollar {
		err = s.db.QueryRowContext(ctx, query+" RETURNING transaction_id", args...).Scan(&id)
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		slog.Error("Store InsertTransaction failed", "error", err, "vehicle", txn.VehicleNumber, "lotID", txn.LotID)
		return 0, fmt.Errorf("failed to insert transaction for %s: %w", txn.VehicleNumber, err)
	}
	slog.Debug("Store InsertTransaction succeeded", "transactionID", id, "vehicle", txn.VehicleNumber, "status", txn.Status)
	return id, nil
}

func (s *dbStore) FindInsideByVehicle(ctx context.Context, lotID int64, vehicleNumber string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE lot_id = ? AND vehicle_number = ? AND vehicle_state = 'INSIDE'
		ORDER BY start_time DESC LIMIT 1`), lotID, vehicleNumber)
	return scanTransactionRow(row)
}

func (s *dbStore) FindInsideByPosition(ctx context.Context, lotID int64, position int) (*models.Transaction, error) {
	if position < 1 {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE lot_id = ? AND vehicle_state = 'INSIDE'
		ORDER BY start_time ASC LIMIT 1 OFFSET ?`), lotID, position-1)
	return scanTransactionRow(row)
}

func (s *dbStore) ListInside(ctx context.Context, lotID int64) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE lot_id = ? AND vehicle_state = 'INSIDE'
		ORDER BY start_time ASC`), lotID)
	if err != nil {
		slog.Error("Store ListInside query failed", "error", err, "lotID", lotID)
		return nil, fmt.Errorf("failed to query inside vehicles: %w", err)
	}
	defer rows.Close()
	var txns []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inside vehicles: %w", err)
	}
	return txns, nil
}

func (s *dbStore) CountInside(ctx context.Context, lotID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM transactions WHERE lot_id = ? AND vehicle_state = 'INSIDE'`), lotID).Scan(&count)
	if err != nil {
		slog.Error("Store CountInside failed", "error", err, "lotID", lotID)
		return 0, fmt.Errorf("failed to count inside vehicles: %w", err)
	}
	return count, nil
}

func (s *dbStore) CompleteExit(ctx context.Context, transactionID int64, status models.TransactionStatus, totalFee int, endTime time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE transactions SET end_time = ?, status = ?, total_fee = ?, vehicle_state = 'EXITED'
		WHERE transaction_id = ? AND vehicle_state = 'INSIDE'`),
		endTime, string(status), totalFee, transactionID)
	if err != nil {
		slog.Error("Store CompleteExit failed", "error", err, "transactionID", transactionID)
		return fmt.Errorf("failed to complete exit for transaction %d: %w", transactionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check exit rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d is not inside the lot", transactionID)
	}
	slog.Debug("Store CompleteExit succeeded", "transactionID", transactionID, "status", status, "totalFee", totalFee)
	return nil
}

func (s *dbStore) SetTransactionCustomer(ctx context.Context, transactionID int64, customerNumber string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE transactions SET customer_whatsapp_number = ? WHERE transaction_id = ?`), customerNumber, transactionID)
	if err != nil {
		slog.Error("Store SetTransactionCustomer failed", "error", err, "transactionID", transactionID)
		return fmt.Errorf("failed to set transaction customer: %w", err)
	}
	return nil
}

const passColumns = `pass_id, lot_id, vehicle_number, expiry_date, status, COALESCE(customer_whatsapp_number, '')`

func (s *dbStore) GetActivePass(ctx context.Context, lotID int64, vehicleNumber string, now time.Time) (*models.Pass, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+passColumns+` FROM passes
		WHERE lot_id = ? AND vehicle_number = ? AND status = 'ACTIVE' AND expiry_date >= ?`),
		lotID, vehicleNumber, now)
	return scanPassRow(row)
}

func (s *dbStore) UpsertPass(ctx context.Context, pass models.Pass) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO passes (lot_id, vehicle_number, expiry_date, status, customer_whatsapp_number)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (lot_id, vehicle_number)
		DO UPDATE SET
			expiry_date = EXCLUDED.expiry_date,
			status = EXCLUDED.status,
			customer_whatsapp_number = EXCLUDED.customer_whatsapp_number`),
		pass.LotID, pass.VehicleNumber, pass.ExpiryDate, string(pass.Status), nilIfEmpty(pass.CustomerNumber))
	if err != nil {
		slog.Error("Store UpsertPass failed", "error", err, "vehicle", pass.VehicleNumber, "lotID", pass.LotID)
		return fmt.Errorf("failed to upsert pass for %s: %w", pass.VehicleNumber, err)
	}
	slog.Debug("Store UpsertPass succeeded", "vehicle", pass.VehicleNumber, "expiry", pass.ExpiryDate)
	return nil
}

func (s *dbStore) DeactivatePass(ctx context.Context, lotID int64, vehicleNumber string, expiry time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE passes SET status = 'INACTIVE', expiry_date = ?
		WHERE lot_id = ? AND vehicle_number = ? AND status = 'ACTIVE'`),
		expiry, lotID, vehicleNumber)
	if err != nil {
		slog.Error("Store DeactivatePass failed", "error", err, "vehicle", vehicleNumber)
		return false, fmt.Errorf("failed to deactivate pass for %s: %w", vehicleNumber, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check pass rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *dbStore) ListActivePasses(ctx context.Context, lotID int64, now time.Time) ([]models.Pass, error) {
	return s.queryPasses(ctx, s.rebind(`
		SELECT `+passColumns+` FROM passes
		WHERE lot_id = ? AND status = 'ACTIVE' AND expiry_date >= ?
		ORDER BY expiry_date ASC`), lotID, now)
}

func (s *dbStore) ListExpiringPasses(ctx context.Context, lotID int64, from, until time.Time) ([]models.Pass, error) {
	return s.queryPasses(ctx, s.rebind(`
		SELECT `+passColumns+` FROM passes
		WHERE lot_id = ? AND status = 'ACTIVE' AND expiry_date >= ? AND expiry_date <= ?
		  AND customer_whatsapp_number IS NOT NULL
		ORDER BY expiry_date ASC`), lotID, from, until)
}

func (s *dbStore) queryPasses(ctx context.Context, query string, args ...interface{}) ([]models.Pass, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("Store pass query failed", "error", err)
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()
	var passes []models.Pass
	for rows.Next() {
		var p models.Pass
		var status string
		if err := rows.Scan(&p.PassID, &p.LotID, &p.VehicleNumber, &p.ExpiryDate, &status, &p.CustomerNumber); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		p.Status = models.PassStatus(status)
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passes: %w", err)
	}
	return passes, nil
}

func (s *dbStore) ListPassTypes(ctx context.Context, lotID int64) ([]models.PassType, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT pass_type_id, lot_id, name, duration_days, fee FROM pass_types
		WHERE lot_id = ? ORDER BY duration_days ASC`), lotID)
	if err != nil {
		slog.Error("Store ListPassTypes query failed", "error", err, "lotID", lotID)
		return nil, fmt.Errorf("failed to query pass types: %w", err)
	}
	defer rows.Close()
	var types []models.PassType
	for rows.Next() {
		var pt models.PassType
		if err := rows.Scan(&pt.PassTypeID, &pt.LotID, &pt.Name, &pt.DurationDays, &pt.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan pass type: %w", err)
		}
		types = append(types, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pass types: %w", err)
	}
	return types, nil
}

func (s *dbStore) UpsertCustomer(ctx context.Context, customer models.Customer) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO customers (lot_id, vehicle_number, whatsapp_number, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lot_id, vehicle_number)
		DO UPDATE SET
			whatsapp_number = EXCLUDED.whatsapp_number,
			last_seen = EXCLUDED.last_seen`),
		customer.LotID, customer.VehicleNumber, customer.WhatsAppNumber, customer.LastSeen)
	if err != nil {
		slog.Error("Store UpsertCustomer failed", "error", err, "vehicle", customer.VehicleNumber)
		return fmt.Errorf("failed to upsert customer for %s: %w", customer.VehicleNumber, err)
	}
	return nil
}

func (s *dbStore) GetCustomer(ctx context.Context, lotID int64, vehicleNumber string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT lot_id, vehicle_number, whatsapp_number, last_seen FROM customers
		WHERE lot_id = ? AND vehicle_number = ?`), lotID, vehicleNumber)
	var c models.Customer
	var lastSeen sql.NullTime
	err := row.Scan(&c.LotID, &c.VehicleNumber, &c.WhatsAppNumber, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("Store GetCustomer failed", "error", err, "vehicle", vehicleNumber)
		return nil, fmt.Errorf("failed to get customer for %s: %w", vehicleNumber, err)
	}
	if lastSeen.Valid {
		c.LastSeen = lastSeen.Time
	}
	return &c, nil
}

func (s *dbStore) LatestTransactionForCustomer(ctx context.Context, customerNumber string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+transactionColumns+` FROM transactions
		WHERE customer_whatsapp_number = ?
		ORDER BY start_time DESC LIMIT 1`), customerNumber)
	return scanTransactionRow(row)
}

func (s *dbStore) AddAttendant(ctx context.Context, attendant models.Attendant) (int64, error) {
	query := s.rebind(`
		INSERT INTO attendants (lot_id, name, whatsapp_number, is_active)
		VALUES (?, ?, ?, TRUE)`)
	args := []interface{}{attendant.LotID, attendant.Name, attendant.WhatsAppNumber}

	var id int64
	var err error
	if s.bindDollar {
		err = s.db.QueryRowContext(ctx, query+" RETURNING attendant_id", args...).Scan(&id)
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			slog.Debug("Store AddAttendant duplicate number", "phone", attendant.WhatsAppNumber)
			return 0, fmt.Errorf("%w: attendant %s", ErrDuplicate, attendant.WhatsAppNumber)
		}
		slog.Error("Store AddAttendant failed", "error", err, "phone", attendant.WhatsAppNumber)
		return 0, fmt.Errorf("failed to add attendant %s: %w", attendant.Name, err)
	}
	slog.Debug("Store AddAttendant succeeded", "attendantID", id, "name", attendant.Name)
	return id, nil
}

func (s *dbStore) ListAttendants(ctx context.Context, lotID int64, activeOnly bool) ([]models.Attendant, error) {
	query := `SELECT attendant_id, lot_id, name, whatsapp_number, is_active FROM attendants WHERE lot_id = ?`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY is_active DESC, name ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), lotID)
	if err != nil {
		slog.Error("Store ListAttendants query failed", "error", err, "lotID", lotID)
		return nil, fmt.Errorf("failed to query attendants: %w", err)
	}
	defer rows.Close()
	var attendants []models.Attendant
	for rows.Next() {
		var a models.Attendant
		if err := rows.Scan(&a.AttendantID, &a.LotID, &a.Name, &a.WhatsAppNumber, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan attendant: %w", err)
		}
		attendants = append(attendants, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendants: %w", err)
	}
	return attendants, nil
}

func (s *dbStore) SetAttendantActive(ctx context.Context, attendantID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE attendants SET is_active = ? WHERE attendant_id = ?`), active, attendantID)
	if err != nil {
		slog.Error("Store SetAttendantActive failed", "error", err, "attendantID", attendantID)
		return fmt.Errorf("failed to update attendant %d: %w", attendantID, err)
	}
	slog.Debug("Store SetAttendantActive succeeded", "attendantID", attendantID, "active", active)
	return nil
}

func (s *dbStore) DeleteAttendant(ctx context.Context, attendantID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin attendant delete: %w", err)
	}
	defer tx.Rollback()

	// Detach history before deleting so transactions keep their rows.
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE transactions SET attendant_id = NULL WHERE attendant_id = ?`), attendantID); err != nil {
		slog.Error("Store DeleteAttendant detach failed", "error", err, "attendantID", attendantID)
		return fmt.Errorf("failed to detach attendant %d transactions: %w", attendantID, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM attendants WHERE attendant_id = ?`), attendantID); err != nil {
		slog.Error("Store DeleteAttendant failed", "error", err, "attendantID", attendantID)
		return fmt.Errorf("failed to delete attendant %d: %w", attendantID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attendant delete: %w", err)
	}
	slog.Debug("Store DeleteAttendant succeeded", "attendantID", attendantID)
	return nil
}

func (s *dbStore) CountActiveAttendants(ctx context.Context, lotID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM attendants WHERE lot_id = ? AND is_active = TRUE`), lotID).Scan(&count)
	if err != nil {
		slog.Error("Store CountActiveAttendants failed", "error", err, "lotID", lotID)
		return 0, fmt.Errorf("failed to count attendants: %w", err)
	}
	return count, nil
}

const ownerColumns = `owner_id, name, whatsapp_number, COALESCE(subscription_plan, ''), subscription_start, subscription_end, created_at`

func (s *dbStore) GetOwnerByPhone(ctx context.Context, phone string) (*models.Owner, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+ownerColumns+` FROM owners WHERE whatsapp_number = ?`), phone)
	owner, err := scanOwnerRow(row)
	if err != nil {
		slog.Error("Store GetOwnerByPhone failed", "error", err, "phone", phone)
		return nil, err
	}
	return owner, nil
}

func (s *dbStore) CreateOwnerWithLot(ctx context.Context, owner models.Owner, lotName string, hourlyRate int) (int64, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin owner creation: %w", err)
	}
	defer tx.Rollback()

	ownerQuery := s.rebind(`
		INSERT INTO owners (name, whatsapp_number, subscription_plan, subscription_start, subscription_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	ownerArgs := []interface{}{owner.Name, owner.WhatsAppNumber, owner.SubscriptionPlan,
		owner.SubscriptionStart, owner.SubscriptionEnd, owner.CreatedAt}

	var ownerID int64
	if s.bindDollar {
		err = tx.QueryRowContext(ctx, ownerQuery+" RETURNING owner_id", ownerArgs...).Scan(&ownerID)
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, ownerQuery, ownerArgs...)
		if err == nil {
			ownerID, err = res.LastInsertId()
		}
	}
	if err != nil {
		slog.Error("Store CreateOwnerWithLot owner insert failed", "error", err, "phone", owner.WhatsAppNumber)
		return 0, 0, fmt.Errorf("failed to create owner %s: %w", owner.Name, err)
	}

	lotQuery := s.rebind(`
		INSERT INTO parking_lots (owner_id, name, pricing_model, hourly_rate)
		VALUES (?, ?, ?, ?)`)
	lotArgs := []interface{}{ownerID, lotName, string(models.PricingHourly), hourlyRate}

	var lotID int64
	if s.bindDollar {
		err = tx.QueryRowContext(ctx, lotQuery+" RETURNING lot_id", lotArgs...).Scan(&lotID)
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, lotQuery, lotArgs...)
		if err == nil {
			lotID, err = res.LastInsertId()
		}
	}
	if err != nil {
		slog.Error("Store CreateOwnerWithLot lot insert failed", "error", err, "ownerID", ownerID)
		return 0, 0, fmt.Errorf("failed to create lot for owner %d: %w", ownerID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit owner creation: %w", err)
	}
	slog.Debug("Store CreateOwnerWithLot succeeded", "ownerID", ownerID, "lotID", lotID)
	return ownerID, lotID, nil
}

func (s *dbStore) SetOwnerSubscription(ctx context.Context, ownerID int64, plan string, start, end time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE owners SET subscription_plan = ?, subscription_start = ?, subscription_end = ? WHERE owner_id = ?`),
		plan, start, end, ownerID)
	if err != nil {
		slog.Error("Store SetOwnerSubscription failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to set subscription for owner %d: %w", ownerID, err)
	}
	slog.Debug("Store SetOwnerSubscription succeeded", "ownerID", ownerID, "plan", plan, "end", end)
	return nil
}

func (s *dbStore) SetOwnerSubscriptionEnd(ctx context.Context, ownerID int64, end time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE owners SET subscription_end = ? WHERE owner_id = ?`), end, ownerID)
	if err != nil {
		slog.Error("Store SetOwnerSubscriptionEnd failed", "error", err, "ownerID", ownerID)
		return fmt.Errorf("failed to set subscription end for owner %d: %w", ownerID, err)
	}
	return nil
}

func (s *dbStore) ListOwners(ctx context.Context) ([]models.Owner, error) {
	return s.queryOwners(ctx, s.rebind(`SELECT `+ownerColumns+` FROM owners ORDER BY created_at ASC`))
}

func (s *dbStore) ListOwnersExpiringBetween(ctx context.Context, from, until time.Time) ([]models.Owner, error) {
	return s.queryOwners(ctx, s.rebind(`
		SELECT `+ownerColumns+` FROM owners
		WHERE subscription_end >= ? AND subscription_end <= ?
		ORDER BY subscription_end ASC`), from, until)
}

func (s *dbStore) ListActiveOwners(ctx context.Context, now time.Time) ([]models.Owner, error) {
	return s.queryOwners(ctx, s.rebind(`
		SELECT `+ownerColumns+` FROM owners WHERE subscription_end >= ? ORDER BY created_at ASC`), now)
}

func (s *dbStore) queryOwners(ctx context.Context, query string, args ...interface{}) ([]models.Owner, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("Store owner query failed", "error", err)
		return nil, fmt.Errorf("failed to query owners: %w", err)
	}
	defer rows.Close()
	var owners []models.Owner
	for rows.Next() {
		var o models.Owner
		var start, end sql.NullTime
		if err := rows.Scan(&o.OwnerID, &o.Name, &o.WhatsAppNumber, &o.SubscriptionPlan, &start, &end, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		if start.Valid {
			o.SubscriptionStart = &start.Time
		}
		if end.Valid {
			o.SubscriptionEnd = &end.Time
		}
		owners = append(owners, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owners: %w", err)
	}
	return owners, nil
}

func (s *dbStore) GetConversationState(ctx context.Context, userKey string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT user_key, state, COALESCE(context, ''), updated_at FROM conversation_states WHERE user_key = ?`), userKey)

	var st models.ConversationState
	var stateStr, contextRaw string
	err := row.Scan(&st.UserKey, &stateStr, &contextRaw, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("Store GetConversationState not found", "userKey", userKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("Store GetConversationState failed", "error", err, "userKey", userKey)
		return nil, fmt.Errorf("failed to get conversation state: %w", err)
	}
	st.State = models.ConvState(stateStr)
	st.Context, err = models.UnmarshalContext(contextRaw)
	if err != nil {
		slog.Error("Store GetConversationState context corrupt", "error", err, "userKey", userKey)
		return nil, err
	}
	slog.Debug("Store GetConversationState found", "userKey", userKey, "state", st.State)
	return &st, nil
}

func (s *dbStore) SaveConversationState(ctx context.Context, state models.ConversationState) error {
	contextRaw, err := state.Context.MarshalContext()
	if err != nil {
		slog.Error("Store SaveConversationState marshal failed", "error", err, "userKey", state.UserKey)
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO conversation_states (user_key, state, context, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_key)
		DO UPDATE SET
			state = EXCLUDED.state,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at`),
		state.UserKey, string(state.State), contextRaw, state.UpdatedAt)
	if err != nil {
		slog.Error("Store SaveConversationState failed", "error", err, "userKey", state.UserKey, "state", state.State)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	slog.Debug("Store SaveConversationState succeeded", "userKey", state.UserKey, "state", state.State)
	return nil
}

func (s *dbStore) DeleteConversationState(ctx context.Context, userKey string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM conversation_states WHERE user_key = ?`), userKey)
	if err != nil {
		slog.Error("Store DeleteConversationState failed", "error", err, "userKey", userKey)
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	slog.Debug("Store DeleteConversationState succeeded", "userKey", userKey)
	return nil
}

// DailyReport aggregates collections from entries that started in the window
// and exits that ended in it. An entry payment and its exit payment on the
// same day both count, because both were collected that day.
func (s *dbStore) DailyReport(ctx context.Context, lotID int64, from, until time.Time) (models.DailyReport, error) {
	var report models.DailyReport
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN status LIKE '%CASH%' THEN total_fee ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status LIKE '%UPI%' THEN total_fee ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN vehicle_state = 'EXITED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status LIKE '%PASS_EXIT' THEN 1 ELSE 0 END), 0)
		FROM transactions
		WHERE lot_id = ?
		  AND ((vehicle_state = 'EXITED' AND end_time >= ? AND end_time <= ?)
		    OR (vehicle_state = 'INSIDE' AND start_time >= ? AND start_time <= ?))`),
		lotID, from, until, from, until).Scan(
		&report.CashTotal, &report.UPITotal, &report.TotalExits, &report.PassExits)
	if err != nil {
		slog.Error("Store DailyReport failed", "error", err, "lotID", lotID)
		return models.DailyReport{}, fmt.Errorf("failed to aggregate daily report: %w", err)
	}
	slog.Debug("Store DailyReport succeeded", "lotID", lotID, "cash", report.CashTotal, "upi", report.UPITotal, "exits", report.TotalExits)
	return report, nil
}

func (s *dbStore) Close() error {
	slog.Debug("Closing database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close database", "error", err)
	}
	return err
}
