// Package store provides storage backends for ParkEasy.
//
// This file implements an in-memory store used by unit tests and local
// development without a database.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// InMemoryStore implements Store with plain maps behind a mutex.
type InMemoryStore struct {
	mu sync.Mutex

	owners       map[int64]models.Owner
	lots         map[int64]models.ParkingLot
	rateTiers    map[int64][]models.RateTier
	attendants   map[int64]models.Attendant
	transactions map[int64]models.Transaction
	passes       map[string]models.Pass // key: lotID/vehicle
	passTypes    map[int64][]models.PassType
	customers    map[string]models.Customer // key: lotID/vehicle
	states       map[string]models.ConversationState

	nextOwnerID       int64
	nextLotID         int64
	nextAttendantID   int64
	nextTransactionID int64
	nextPassID        int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		owners:       make(map[int64]models.Owner),
		lots:         make(map[int64]models.ParkingLot),
		rateTiers:    make(map[int64][]models.RateTier),
		attendants:   make(map[int64]models.Attendant),
		transactions: make(map[int64]models.Transaction),
		passes:       make(map[string]models.Pass),
		passTypes:    make(map[int64][]models.PassType),
		customers:    make(map[string]models.Customer),
		states:       make(map[string]models.ConversationState),
	}
}

func passKey(lotID int64, vehicleNumber string) string {
	return fmt.Sprintf("%d/%s", lotID, vehicleNumber)
}

func (s *InMemoryStore) Close() error                   { return nil }
func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

// Seeding helpers for tests and local development.

// SeedOwner inserts an owner and returns its ID.
func (s *InMemoryStore) SeedOwner(owner models.Owner) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOwnerID++
	owner.OwnerID = s.nextOwnerID
	s.owners[owner.OwnerID] = owner
	return owner.OwnerID
}

// SeedLot inserts a lot and returns its ID.
func (s *InMemoryStore) SeedLot(lot models.ParkingLot) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLotID++
	lot.LotID = s.nextLotID
	s.lots[lot.LotID] = lot
	return lot.LotID
}

// SeedPassType adds a pass product to a lot.
func (s *InMemoryStore) SeedPassType(pt models.PassType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt.PassTypeID = int64(len(s.passTypes[pt.LotID]) + 1)
	s.passTypes[pt.LotID] = append(s.passTypes[pt.LotID], pt)
}

func (s *InMemoryStore) ResolveUser(ctx context.Context, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendants {
		if a.WhatsAppNumber == phone && a.IsActive {
			user := models.User{Role: models.RoleAttendant, UserID: a.AttendantID, LotID: a.LotID, Phone: phone}
			if lot, ok := s.lots[a.LotID]; ok {
				if owner, ok := s.owners[lot.OwnerID]; ok {
					user.SubscriptionEnd = owner.SubscriptionEnd
				}
			}
			return &user, nil
		}
	}
	for _, o := range s.owners {
		if o.WhatsAppNumber == phone {
			user := models.User{Role: models.RoleOwner, UserID: o.OwnerID, Phone: phone, SubscriptionEnd: o.SubscriptionEnd}
			for _, lot := range s.lots {
				if lot.OwnerID == o.OwnerID {
					user.LotID = lot.LotID
					break
				}
			}
			return &user, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetLot(ctx context.Context, lotID int64) (*models.ParkingLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

func (s *InMemoryStore) GetLotByOwner(ctx context.Context, ownerID int64) (*models.ParkingLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lot := range s.lots {
		if lot.OwnerID == ownerID {
			return &lot, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetRateTiers(ctx context.Context, lotID int64) ([]models.RateTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiers := append([]models.RateTier(nil), s.rateTiers[lotID]...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].DurationHours < tiers[j].DurationHours })
	return tiers, nil
}

func (s *InMemoryStore) SetPricingModel(ctx context.Context, lotID int64, model models.PricingModel) error {
	if err := model.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not found", lotID)
	}
	lot.PricingModel = model
	s.lots[lotID] = lot
	return nil
}

func (s *InMemoryStore) UpsertRateTier(ctx context.Context, lotID int64, durationHours, fee int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiers := s.rateTiers[lotID]
	for i, t := range tiers {
		if t.DurationHours == durationHours {
			tiers[i].Fee = fee
			return nil
		}
	}
	s.rateTiers[lotID] = append(tiers, models.RateTier{DurationHours: durationHours, Fee: fee})
	return nil
}

func (s *InMemoryStore) SetBlockRate(ctx context.Context, lotID int64, fee, hours int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not found", lotID)
	}
	lot.PricingModel = models.PricingBlock
	lot.BlockRateFee = fee
	lot.BlockRateHours = hours
	s.lots[lotID] = lot
	return nil
}

func (s *InMemoryStore) SetHourlyRate(ctx context.Context, lotID int64, rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not found", lotID)
	}
	lot.PricingModel = models.PricingHourly
	lot.HourlyRate = rate
	s.lots[lotID] = lot
	return nil
}

func (s *InMemoryStore) SetPassRate(ctx context.Context, lotID int64, fee int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lot, ok := s.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not found", lotID)
	}
	lot.PassRate = fee
	s.lots[lotID] = lot
	return nil
}

func (s *InMemoryStore) InsertTransaction(ctx context.Context, txn models.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTransactionID++
	txn.TransactionID = s.nextTransactionID
	s.transactions[txn.TransactionID] = txn
	return txn.TransactionID, nil
}

// insideSorted returns INSIDE transactions for a lot in entry-time order.
// Caller must hold the mutex.
func (s *InMemoryStore) insideSorted(lotID int64) []models.Transaction {
	var inside []models.Transaction
	for _, t := range s.transactions {
		if t.LotID == lotID && t.VehicleState == models.VehicleInside {
			inside = append(inside, t)
		}
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].StartTime.Before(inside[j].StartTime) })
	return inside
}

func (s *InMemoryStore) FindInsideByVehicle(ctx context.Context, lotID int64, vehicleNumber string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inside := s.insideSorted(lotID)
	for i := len(inside) - 1; i >= 0; i-- {
		if inside[i].VehicleNumber == vehicleNumber {
			txn := inside[i]
			return &txn, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) FindInsideByPosition(ctx context.Context, lotID int64, position int) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inside := s.insideSorted(lotID)
	if position < 1 || position > len(inside) {
		return nil, nil
	}
	txn := inside[position-1]
	return &txn, nil
}

func (s *InMemoryStore) ListInside(ctx context.Context, lotID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insideSorted(lotID), nil
}

func (s *InMemoryStore) CountInside(ctx context.Context, lotID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.insideSorted(lotID)), nil
}

func (s *InMemoryStore) CompleteExit(ctx context.Context, transactionID int64, status models.TransactionStatus, totalFee int, endTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[transactionID]
	if !ok || txn.VehicleState != models.VehicleInside {
		return fmt.Errorf("transaction %d is not inside the lot", transactionID)
	}
	txn.EndTime = &endTime
	txn.Status = status
	txn.TotalFee = totalFee
	txn.VehicleState = models.VehicleExited
	s.transactions[transactionID] = txn
	return nil
}

func (s *InMemoryStore) SetTransactionCustomer(ctx context.Context, transactionID int64, customerNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("transaction %d not found", transactionID)
	}
	txn.CustomerNumber = customerNumber
	s.transactions[transactionID] = txn
	return nil
}

// SetTransactionStart rewrites a transaction's start time, letting tests
// simulate a stay that began in the past.
func (s *InMemoryStore) SetTransactionStart(id int64, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	if !ok {
		return
	}
	txn.StartTime = start
	s.transactions[id] = txn
}

// GetTransaction returns a transaction by ID for test assertions.
func (s *InMemoryStore) GetTransaction(id int64) (models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[id]
	return txn, ok
}

func (s *InMemoryStore) GetActivePass(ctx context.Context, lotID int64, vehicleNumber string, now time.Time) (*models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.passes[passKey(lotID, vehicleNumber)]
	if !ok || p.Status != models.PassActive || p.ExpiryDate.Before(now) {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) UpsertPass(ctx context.Context, pass models.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := passKey(pass.LotID, pass.VehicleNumber)
	if existing, ok := s.passes[key]; ok {
		pass.PassID = existing.PassID
	} else {
		s.nextPassID++
		pass.PassID = s.nextPassID
	}
	s.passes[key] = pass
	return nil
}

func (s *InMemoryStore) DeactivatePass(ctx context.Context, lotID int64, vehicleNumber string, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := passKey(lotID, vehicleNumber)
	p, ok := s.passes[key]
	if !ok || p.Status != models.PassActive {
		return false, nil
	}
	p.Status = models.PassInactive
	p.ExpiryDate = expiry
	s.passes[key] = p
	return true, nil
}

func (s *InMemoryStore) ListActivePasses(ctx context.Context, lotID int64, now time.Time) ([]models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var passes []models.Pass
	for _, p := range s.passes {
		if p.LotID == lotID && p.Status == models.PassActive && !p.ExpiryDate.Before(now) {
			passes = append(passes, p)
		}
	}
	sort.Slice(passes, func(i, j int) bool { return passes[i].ExpiryDate.Before(passes[j].ExpiryDate) })
	return passes, nil
}

func (s *InMemoryStore) ListExpiringPasses(ctx context.Context, lotID int64, from, until time.Time) ([]models.Pass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var passes []models.Pass
	for _, p := range s.passes {
		if p.LotID == lotID && p.Status == models.PassActive && p.CustomerNumber != "" &&
			!p.ExpiryDate.Before(from) && !p.ExpiryDate.After(until) {
			passes = append(passes, p)
		}
	}
	sort.Slice(passes, func(i, j int) bool { return passes[i].ExpiryDate.Before(passes[j].ExpiryDate) })
	return passes, nil
}

func (s *InMemoryStore) ListPassTypes(ctx context.Context, lotID int64) ([]models.PassType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := append([]models.PassType(nil), s.passTypes[lotID]...)
	sort.Slice(types, func(i, j int) bool { return types[i].DurationDays < types[j].DurationDays })
	return types, nil
}

func (s *InMemoryStore) UpsertCustomer(ctx context.Context, customer models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[passKey(customer.LotID, customer.VehicleNumber)] = customer
	return nil
}

func (s *InMemoryStore) GetCustomer(ctx context.Context, lotID int64, vehicleNumber string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[passKey(lotID, vehicleNumber)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) LatestTransactionForCustomer(ctx context.Context, customerNumber string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Transaction
	for id := range s.transactions {
		txn := s.transactions[id]
		if txn.CustomerNumber != customerNumber {
			continue
		}
		if latest == nil || txn.StartTime.After(latest.StartTime) {
			copied := txn
			latest = &copied
		}
	}
	return latest, nil
}

func (s *InMemoryStore) AddAttendant(ctx context.Context, attendant models.Attendant) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attendants {
		if a.WhatsAppNumber == attendant.WhatsAppNumber {
			return 0, fmt.Errorf("%w: attendant %s", ErrDuplicate, attendant.WhatsAppNumber)
		}
	}
	s.nextAttendantID++
	attendant.AttendantID = s.nextAttendantID
	attendant.IsActive = true
	s.attendants[attendant.AttendantID] = attendant
	return attendant.AttendantID, nil
}

func (s *InMemoryStore) ListAttendants(ctx context.Context, lotID int64, activeOnly bool) ([]models.Attendant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var attendants []models.Attendant
	for _, a := range s.attendants {
		if a.LotID != lotID {
			continue
		}
		if activeOnly && !a.IsActive {
			continue
		}
		attendants = append(attendants, a)
	}
	sort.Slice(attendants, func(i, j int) bool {
		if attendants[i].IsActive != attendants[j].IsActive {
			return attendants[i].IsActive
		}
		return attendants[i].Name < attendants[j].Name
	})
	return attendants, nil
}

func (s *InMemoryStore) SetAttendantActive(ctx context.Context, attendantID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attendants[attendantID]
	if !ok {
		return fmt.Errorf("attendant %d not found", attendantID)
	}
	a.IsActive = active
	s.attendants[attendantID] = a
	return nil
}

func (s *InMemoryStore) DeleteAttendant(ctx context.Context, attendantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendants[attendantID]; !ok {
		return fmt.Errorf("attendant %d not found", attendantID)
	}
	for id, t := range s.transactions {
		if t.AttendantID != nil && *t.AttendantID == attendantID {
			t.AttendantID = nil
			s.transactions[id] = t
		}
	}
	delete(s.attendants, attendantID)
	return nil
}

func (s *InMemoryStore) CountActiveAttendants(ctx context.Context, lotID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, a := range s.attendants {
		if a.LotID == lotID && a.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) GetOwnerByPhone(ctx context.Context, phone string) (*models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.WhatsAppNumber == phone {
			return &o, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateOwnerWithLot(ctx context.Context, owner models.Owner, lotName string, hourlyRate int) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOwnerID++
	owner.OwnerID = s.nextOwnerID
	s.owners[owner.OwnerID] = owner
	s.nextLotID++
	s.lots[s.nextLotID] = models.ParkingLot{
		LotID:        s.nextLotID,
		OwnerID:      owner.OwnerID,
		Name:         lotName,
		PricingModel: models.PricingHourly,
		HourlyRate:   hourlyRate,
	}
	return owner.OwnerID, s.nextLotID, nil
}

func (s *InMemoryStore) SetOwnerSubscription(ctx context.Context, ownerID int64, plan string, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ownerID]
	if !ok {
		return fmt.Errorf("owner %d not found", ownerID)
	}
	o.SubscriptionPlan = plan
	o.SubscriptionStart = &start
	o.SubscriptionEnd = &end
	s.owners[ownerID] = o
	return nil
}

func (s *InMemoryStore) SetOwnerSubscriptionEnd(ctx context.Context, ownerID int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[ownerID]
	if !ok {
		return fmt.Errorf("owner %d not found", ownerID)
	}
	o.SubscriptionEnd = &end
	s.owners[ownerID] = o
	return nil
}

func (s *InMemoryStore) ListOwners(ctx context.Context) ([]models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []models.Owner
	for _, o := range s.owners {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].OwnerID < owners[j].OwnerID })
	return owners, nil
}

func (s *InMemoryStore) ListOwnersExpiringBetween(ctx context.Context, from, until time.Time) ([]models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []models.Owner
	for _, o := range s.owners {
		if o.SubscriptionEnd != nil && !o.SubscriptionEnd.Before(from) && !o.SubscriptionEnd.After(until) {
			owners = append(owners, o)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].SubscriptionEnd.Before(*owners[j].SubscriptionEnd) })
	return owners, nil
}

func (s *InMemoryStore) ListActiveOwners(ctx context.Context, now time.Time) ([]models.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owners []models.Owner
	for _, o := range s.owners {
		if o.SubscriptionEnd != nil && !o.SubscriptionEnd.Before(now) {
			owners = append(owners, o)
		}
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i].OwnerID < owners[j].OwnerID })
	return owners, nil
}

func (s *InMemoryStore) GetConversationState(ctx context.Context, userKey string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userKey]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *InMemoryStore) SaveConversationState(ctx context.Context, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserKey] = state
	return nil
}

func (s *InMemoryStore) DeleteConversationState(ctx context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userKey)
	return nil
}

func (s *InMemoryStore) DailyReport(ctx context.Context, lotID int64, from, until time.Time) (models.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var report models.DailyReport
	for _, t := range s.transactions {
		if t.LotID != lotID {
			continue
		}
		inWindow := false
		if t.VehicleState == models.VehicleExited && t.EndTime != nil &&
			!t.EndTime.Before(from) && !t.EndTime.After(until) {
			inWindow = true
			report.TotalExits++
			if t.Status == models.StatusCompletedPassExit {
				report.PassExits++
			}
		} else if t.VehicleState == models.VehicleInside &&
			!t.StartTime.Before(from) && !t.StartTime.After(until) {
			inWindow = true
		}
		if !inWindow {
			continue
		}
		switch t.Status {
		case models.StatusParkedPaidCash, models.StatusCompletedCashExit:
			report.CashTotal += t.TotalFee
		case models.StatusParkedPaidUPI, models.StatusCompletedUPIExit:
			report.UPITotal += t.TotalFee
		}
	}
	return report, nil
}
