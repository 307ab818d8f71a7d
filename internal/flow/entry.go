package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parkeasy/parkeasy/internal/billing"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// startVehicleEntry begins checking a vehicle in. Depending on what is known
// about the vehicle it asks for a checkout instead (already inside), confirms
// a pass holder, jumps straight to payment (known customer) or asks for the
// customer's number first.
func (e *Engine) startVehicleEntry(ctx context.Context, from string, user *models.User, raw string) error {
	vehicle := util.CanonicalVehicleNumber(raw)
	if !util.IsValidVehicleNumber(vehicle) {
		return e.send(ctx, from, fmt.Sprintf("❌ Invalid vehicle number format for %q. Please try again.", raw))
	}

	inside, err := e.store.FindInsideByVehicle(ctx, user.LotID, vehicle)
	if err != nil {
		return err
	}
	if inside != nil {
		convCtx := models.ConvContext{Entry: &models.EntryContext{VehicleNumber: vehicle}}
		if err := e.states.Set(ctx, user, models.StateAwaitingCheckoutConfirmation, convCtx); err != nil {
			return err
		}
		menu := models.ButtonMenu{
			Body: fmt.Sprintf("⚠️ *VEHICLE ALREADY PARKED*\n\nVehicle `%s` is already inside the lot.\n\n*Did you mean to check this vehicle out?*", vehicle),
			Buttons: []models.Button{
				{ID: "checkout_yes", Title: "Yes, Check Out"},
				{ID: "checkout_no", Title: "Cancel"},
			},
		}
		return e.sendMenu(ctx, from, userKey(user), menu)
	}

	pass, err := e.store.GetActivePass(ctx, user.LotID, vehicle, time.Now())
	if err != nil {
		return err
	}
	if pass != nil {
		convCtx := models.ConvContext{Entry: &models.EntryContext{
			VehicleNumber:  vehicle,
			IsPassHolder:   true,
			CustomerNumber: pass.CustomerNumber,
		}}
		if err := e.states.Set(ctx, user, models.StateAwaitingParkingConfirmation, convCtx); err != nil {
			return err
		}
		menu := models.ButtonMenu{
			Body: fmt.Sprintf("✅ *PASS HOLDER* (%s)\n\nPark this vehicle?", vehicle),
			Buttons: []models.Button{
				{ID: "park_yes", Title: "Yes, Park"},
				{ID: "park_no", Title: "Cancel"},
			},
		}
		return e.sendMenu(ctx, from, userKey(user), menu)
	}

	customer, err := e.store.GetCustomer(ctx, user.LotID, vehicle)
	if err != nil {
		return err
	}
	if customer != nil {
		return e.askForPaymentType(ctx, from, user, vehicle, customer.WhatsAppNumber)
	}

	convCtx := models.ConvContext{Entry: &models.EntryContext{VehicleNumber: vehicle}}
	if err := e.states.Set(ctx, user, models.StateAwaitingCustomerNumber, convCtx); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("❓ *NEW CUSTOMER* (%s)\n\nPlease reply with the customer's 10-digit mobile number to continue, or type *cancel*.", vehicle))
}

// handleCustomerNumberInput records the customer's number during entry and
// moves on to payment.
func (e *Engine) handleCustomerNumberInput(ctx context.Context, from string, user *models.User, text string) error {
	number, ok := util.NormalizePhoneNumber(text)
	if !ok {
		return e.send(ctx, from, "⚠️ That doesn't look like a valid 10-digit number. Please try again or type *cancel*.")
	}
	vehicle := user.Context.Entry.VehicleNumber
	err := e.store.UpsertCustomer(ctx, models.Customer{
		LotID:          user.LotID,
		VehicleNumber:  vehicle,
		WhatsAppNumber: number,
		LastSeen:       time.Now(),
	})
	if err != nil {
		return err
	}
	return e.askForPaymentType(ctx, from, user, vehicle, number)
}

// askForPaymentType quotes the entry fee and offers the payment options.
func (e *Engine) askForPaymentType(ctx context.Context, from string, user *models.User, vehicle, customerNumber string) error {
	lot, tiers, err := e.lotAndTiers(ctx, user.LotID)
	if err != nil {
		return err
	}
	fee := billing.QuoteEntryFee(lot, tiers)

	var feeText string
	switch lot.PricingModel {
	case models.PricingBlock:
		feeText = fmt.Sprintf("Entry Fee: *₹%d* (1 Block)", fee)
	case models.PricingHourly:
		feeText = fmt.Sprintf("Entry Fee: *₹%d* (First Hour)", fee)
	default:
		feeText = fmt.Sprintf("Entry Fee: *₹%d*", fee)
	}

	convCtx := models.ConvContext{Entry: &models.EntryContext{
		VehicleNumber:  vehicle,
		CustomerNumber: customerNumber,
		EntryFee:       fee,
	}}
	if err := e.states.Set(ctx, user, models.StateAwaitingPaymentType, convCtx); err != nil {
		return err
	}
	menu := models.ButtonMenu{
		Body: fmt.Sprintf("💰 *PAYMENT for %s*\n\n%s\n\nHow will the customer pay?", vehicle, feeText),
		Buttons: []models.Button{
			{ID: "pay_cash", Title: "Cash"},
			{ID: "pay_upi", Title: "UPI"},
			{ID: "pay_later", Title: "Pay Later"},
		},
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}

// handlePaymentTypeSelection creates the transaction once the attendant picks
// how the customer pays.
func (e *Engine) handlePaymentTypeSelection(ctx context.Context, from string, user *models.User, text string) error {
	entry := user.Context.Entry

	var status models.TransactionStatus
	switch text {
	case "Cash":
		status = models.StatusParkedPaidCash
	case "UPI":
		status = models.StatusParkedPaidUPI
	case "Pay Later":
		status = models.StatusParkedUnpaid
	default:
		vehicle := entry.VehicleNumber
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, fmt.Sprintf("✅ Action for %s cancelled.", vehicle))
	}
	return e.finishParking(ctx, from, user, entry, status)
}

// handleParkingConfirmation parks a confirmed pass holder.
func (e *Engine) handleParkingConfirmation(ctx context.Context, from string, user *models.User, text string) error {
	entry := user.Context.Entry
	if text != "Yes, Park" {
		vehicle := entry.VehicleNumber
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, fmt.Sprintf("✅ Action for %s cancelled.", vehicle))
	}
	return e.finishParking(ctx, from, user, entry, models.StatusParkedPass)
}

// finishParking inserts the stay, confirms to the attendant and arranges
// receipt delivery. When no customer number is on file the flow pauses one
// more message to offer saving one.
func (e *Engine) finishParking(ctx context.Context, from string, user *models.User, entry *models.EntryContext, status models.TransactionStatus) error {
	totalFee := 0
	if status.IsPaidEntry() {
		totalFee = entry.EntryFee
	}
	var attendantID *int64
	if user.Role == models.RoleAttendant {
		id := user.UserID
		attendantID = &id
	}
	txn := models.Transaction{
		LotID:          user.LotID,
		AttendantID:    attendantID,
		VehicleNumber:  entry.VehicleNumber,
		StartTime:      time.Now(),
		TotalFee:       totalFee,
		Status:         status,
		VehicleState:   models.VehicleInside,
		CustomerNumber: entry.CustomerNumber,
	}
	txnID, err := e.store.InsertTransaction(ctx, txn)
	if err != nil {
		return err
	}
	txn.TransactionID = txnID

	confirmation := fmt.Sprintf("👍 *DONE!* Vehicle %s is parked.", entry.VehicleNumber)
	if status == models.StatusParkedUnpaid {
		confirmation = fmt.Sprintf("⚠️ *PAYMENT PENDING!* Vehicle %s is parked.", entry.VehicleNumber)
	}
	if err := e.send(ctx, from, confirmation); err != nil {
		return err
	}

	if entry.CustomerNumber != "" {
		if err := e.send(ctx, from, "Sending receipt to customer..."); err != nil {
			return err
		}
		e.sendReceipt(ctx, user, txn, entry.CustomerNumber)
		return e.states.Clear(ctx, user)
	}

	convCtx := models.ConvContext{Entry: &models.EntryContext{VehicleNumber: entry.VehicleNumber}}
	if err := e.states.Set(ctx, user, models.StateAwaitingReceiptNumber, convCtx); err != nil {
		return err
	}
	return e.send(ctx, from, "_To send a receipt, reply with their 10-digit number. Otherwise, send any other message to continue._")
}

// handleReceiptCustomerNumber saves a late-provided customer number and sends
// the receipt. Any non-number reply skips the receipt and ends the flow.
func (e *Engine) handleReceiptCustomerNumber(ctx context.Context, from string, user *models.User, text string) error {
	vehicle := user.Context.Entry.VehicleNumber
	number, ok := util.NormalizePhoneNumber(text)
	if !ok {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "⚠️ Not a valid number. Skipping receipt. You can now park the next vehicle.")
	}

	txn, err := e.store.FindInsideByVehicle(ctx, user.LotID, vehicle)
	if err != nil {
		return err
	}
	if txn != nil {
		if err := e.store.SetTransactionCustomer(ctx, txn.TransactionID, number); err != nil {
			return err
		}
		txn.CustomerNumber = number
	}
	err = e.store.UpsertCustomer(ctx, models.Customer{
		LotID:          user.LotID,
		VehicleNumber:  vehicle,
		WhatsAppNumber: number,
		LastSeen:       time.Now(),
	})
	if err != nil {
		return err
	}
	if err := e.send(ctx, from, fmt.Sprintf("✅ Customer number saved for %s. Sending receipt...", vehicle)); err != nil {
		return err
	}
	if txn != nil {
		e.sendReceipt(ctx, user, *txn, number)
	}
	return e.states.Clear(ctx, user)
}

// sendReceipt renders a receipt card and delivers it to the customer.
// Failures are logged but never fail the attendant's flow.
func (e *Engine) sendReceipt(ctx context.Context, user *models.User, txn models.Transaction, customerNumber string) {
	lot, err := e.store.GetLot(ctx, user.LotID)
	if err != nil || lot == nil {
		slog.Error("Engine sendReceipt lot lookup failed", "error", err, "lotID", user.LotID)
		return
	}
	url, err := e.renderer.ReceiptImage(ctx, *lot, txn)
	if err != nil {
		slog.Error("Engine sendReceipt render failed", "error", err, "vehicle", txn.VehicleNumber)
		return
	}
	if url == "" {
		return
	}
	caption := fmt.Sprintf("Your ParkEasy receipt for %s.", txn.VehicleNumber)
	if err := e.messenger.SendImage(ctx, customerNumber, url, caption); err != nil {
		slog.Error("Engine sendReceipt delivery failed", "error", err, "to", customerNumber)
	}
}
