package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/billing"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// startVehicleExit begins checking a vehicle out. The identifier is either a
// list position from the last vehicle list or a vehicle number. The amount
// due is computed here and frozen in the context so confirmation charges
// exactly what was quoted.
func (e *Engine) startVehicleExit(ctx context.Context, from string, user *models.User, identifier string) error {
	var txn *models.Transaction
	if position, err := strconv.Atoi(strings.TrimSpace(identifier)); err == nil {
		txn, err = e.store.FindInsideByPosition(ctx, user.LotID, position)
		if err != nil {
			return err
		}
		if txn == nil {
			count, err := e.store.CountInside(ctx, user.LotID)
			if err != nil {
				return err
			}
			return e.send(ctx, from, fmt.Sprintf("❌ Error: Invalid list number. There are only %d vehicles inside.", count))
		}
	} else {
		vehicle := util.CanonicalVehicleNumber(identifier)
		found, err := e.store.FindInsideByVehicle(ctx, user.LotID, vehicle)
		if err != nil {
			return err
		}
		if found == nil {
			return e.send(ctx, from, fmt.Sprintf("❌ No vehicle with ID %q is currently inside the lot.", vehicle))
		}
		txn = found
	}

	fee := 0
	if !txn.Status.IsPass() {
		lot, tiers, err := e.lotAndTiers(ctx, user.LotID)
		if err != nil {
			return err
		}
		fee = billing.CalculateFee(lot, tiers, *txn, time.Now())
	}

	convCtx := models.ConvContext{Exit: &models.ExitContext{
		VehicleNumber: txn.VehicleNumber,
		Fee:           fee,
		TransactionID: txn.TransactionID,
	}}
	if err := e.states.Set(ctx, user, models.StateAwaitingExitConfirmation, convCtx); err != nil {
		return err
	}

	if fee > 0 {
		menu := models.ButtonMenu{
			Body: fmt.Sprintf("❗️*COLLECT PAYMENT* (%s)\n\n*Remaining Amount Due: ₹%d*", txn.VehicleNumber, fee),
			Buttons: []models.Button{
				{ID: "exit_cash", Title: "Cash Collected"},
				{ID: "exit_upi", Title: "UPI Collected"},
				{ID: "exit_cancel", Title: "Cancel"},
			},
		}
		return e.sendMenu(ctx, from, userKey(user), menu)
	}
	menu := models.ButtonMenu{
		Body: fmt.Sprintf("✅ *OK TO GO* (%s)\n\nNo due payment. Confirm exit?", txn.VehicleNumber),
		Buttons: []models.Button{
			{ID: "exit_confirm", Title: "Confirm Exit"},
			{ID: "exit_cancel", Title: "Cancel"},
		},
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}

// handleExitConfirmation closes the stay once payment is confirmed.
func (e *Engine) handleExitConfirmation(ctx context.Context, from string, user *models.User, text string) error {
	exit := user.Context.Exit

	if text == "Cancel" {
		vehicle := exit.VehicleNumber
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, fmt.Sprintf("✅ Exit for %s cancelled.", vehicle))
	}

	txn, err := e.store.FindInsideByVehicle(ctx, user.LotID, exit.VehicleNumber)
	if err != nil {
		return err
	}
	if txn == nil || txn.TransactionID != exit.TransactionID {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "Something went wrong, I'm resetting our conversation. Please start again.")
	}

	var status models.TransactionStatus
	switch text {
	case "Cash Collected":
		status = models.StatusCompletedCashExit
	case "UPI Collected":
		status = models.StatusCompletedUPIExit
	case "Confirm Exit":
		// Only offered when nothing is due. Typed in with money owed it
		// would book a fee that was never collected.
		if exit.Fee > 0 {
			if err := e.states.Clear(ctx, user); err != nil {
				return err
			}
			return e.send(ctx, from, "Invalid option. Resetting.")
		}
		if txn.Status.IsPass() {
			status = models.StatusCompletedPassExit
		} else {
			status = models.StatusCompletedNoFeeExit
		}
	default:
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "Invalid option. Resetting.")
	}

	now := time.Now()
	finalTotal := txn.TotalFee + exit.Fee
	if err := e.store.CompleteExit(ctx, exit.TransactionID, status, finalTotal, now); err != nil {
		return err
	}
	if err := e.send(ctx, from, fmt.Sprintf("👍 *Exit Confirmed!* The transaction for %s is now closed.", exit.VehicleNumber)); err != nil {
		return err
	}

	if txn.CustomerNumber != "" {
		if err := e.send(ctx, from, "Sending final receipt to customer..."); err != nil {
			return err
		}
		closed := *txn
		closed.Status = status
		closed.TotalFee = finalTotal
		closed.EndTime = &now
		closed.VehicleState = models.VehicleExited
		e.sendReceipt(ctx, user, closed, txn.CustomerNumber)
	}
	return e.states.Clear(ctx, user)
}

// handleCheckoutConfirmation resolves the "already parked" prompt shown when
// an entry is attempted for a vehicle that is inside.
func (e *Engine) handleCheckoutConfirmation(ctx context.Context, from string, user *models.User, text string) error {
	vehicle := user.Context.Entry.VehicleNumber
	if text != "Yes, Check Out" {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "✅ Action cancelled.")
	}
	return e.startVehicleExit(ctx, from, user, vehicle)
}

// handleListCheckout interprets the reply after a vehicle list was shown. A
// number checks out that list position; anything else falls back to the idle
// command router.
func (e *Engine) handleListCheckout(ctx context.Context, from string, user *models.User, text string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		return e.startVehicleExit(ctx, from, user, strings.TrimSpace(text))
	}
	if err := e.states.Clear(ctx, user); err != nil {
		return err
	}
	return e.handleIdleCommand(ctx, from, user, text)
}
