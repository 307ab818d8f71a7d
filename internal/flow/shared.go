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

// listVehicles shows every vehicle inside the lot with its payment status,
// then waits one message so a bare list number checks the vehicle out.
func (e *Engine) listVehicles(ctx context.Context, from string, user *models.User) error {
	txns, err := e.store.ListInside(ctx, user.LotID)
	if err != nil {
		return err
	}
	if len(txns) == 0 {
		return e.send(ctx, from, "✅ No vehicles are currently inside.")
	}

	lot, tiers, err := e.lotAndTiers(ctx, user.LotID)
	if err != nil {
		return err
	}
	now := time.Now()

	var sb strings.Builder
	sb.WriteString("--- Vehicles Currently Inside ---\n\n")
	for i, txn := range txns {
		var status string
		switch {
		case txn.Status.IsPass():
			status = "💳 Pass Holder"
		default:
			due := billing.CalculateFee(lot, tiers, txn, now)
			switch {
			case due > 0 && txn.Status == models.StatusParkedUnpaid:
				status = fmt.Sprintf("⚠️ Unpaid (*₹%d due*)", due)
			case due > 0:
				status = fmt.Sprintf("❗️ Overdue (*₹%d due*)", due)
			default:
				status = "✅ Paid"
			}
		}
		fmt.Fprintf(&sb, "%d. `%s` (At: %s)\n   - %s\n", i+1, txn.VehicleNumber, e.formatTime(txn.StartTime), status)
	}
	sb.WriteString("\n_To check out a vehicle, simply reply with its list number (e.g.,_ `2` _)._")

	if err := e.states.Set(ctx, user, models.StateAwaitingListCheckout, models.ConvContext{}); err != nil {
		return err
	}
	return e.send(ctx, from, sb.String())
}

// sendStatus reports the current occupancy count.
func (e *Engine) sendStatus(ctx context.Context, from string, user *models.User) error {
	count, err := e.store.CountInside(ctx, user.LotID)
	if err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("📊 Currently %d vehicles are parked.", count))
}

// bulkCheckout closes several fully-paid stays in one command. Vehicles with
// money still owed are skipped and reported so nothing exits unpaid.
func (e *Engine) bulkCheckout(ctx context.Context, from string, user *models.User, identifiers []string) error {
	if err := e.send(ctx, from, fmt.Sprintf("Processing checkout for %d vehicle(s)...", len(identifiers))); err != nil {
		return err
	}

	lot, tiers, err := e.lotAndTiers(ctx, user.LotID)
	if err != nil {
		return err
	}
	now := time.Now()

	var lines []string
	for _, id := range identifiers {
		// A bare number is a position from the last vehicle list, anything
		// else a vehicle number.
		var txn *models.Transaction
		label := util.CanonicalVehicleNumber(id)
		if position, perr := strconv.Atoi(strings.TrimSpace(id)); perr == nil {
			txn, err = e.store.FindInsideByPosition(ctx, user.LotID, position)
			label = strings.TrimSpace(id)
		} else {
			txn, err = e.store.FindInsideByVehicle(ctx, user.LotID, label)
		}
		if err != nil {
			return err
		}
		if txn == nil {
			lines = append(lines, fmt.Sprintf("- `%s`: ❌ Not Found", label))
			continue
		}
		vehicle := txn.VehicleNumber
		if txn.Status.IsPaidEntry() || txn.Status.IsPass() {
			status := models.StatusCompletedNoFeeExit
			if txn.Status.IsPass() {
				status = models.StatusCompletedPassExit
			}
			if err := e.store.CompleteExit(ctx, txn.TransactionID, status, txn.TotalFee, now); err != nil {
				return err
			}
			lines = append(lines, fmt.Sprintf("- `%s`: ✅ Checked Out (Paid)", vehicle))
			continue
		}
		due := billing.CalculateFee(lot, tiers, *txn, now)
		lines = append(lines, fmt.Sprintf("- `%s`: ❗️ Payment Pending (*₹%d*). Please use the single checkout flow for this vehicle.", vehicle, due))
	}

	return e.send(ctx, from, "*--- Checkout Summary ---*\n\n"+strings.Join(lines, "\n"))
}

// showMenu sends the role-appropriate main menu.
func (e *Engine) showMenu(ctx context.Context, from string, user *models.User) error {
	if user.Role == models.RoleOwner {
		menu := models.ListMenu{
			Header: "Owner Menu",
			Body:   "Welcome, Owner! Please select a primary action from the list below.",
			Footer: "Powered by ParkEasy",
			Sections: []models.ListSection{
				{
					Title: "Daily Operations",
					Rows: []models.ListRow{
						{ID: "list_vehicles", Title: "List Vehicles", Description: "See all vehicles currently inside"},
						{ID: "get_report", Title: "Get Report", Description: "Today's collections and exits"},
					},
				},
				{
					Title: "Management",
					Rows: []models.ListRow{
						{ID: "view_passes", Title: "View Passes", Description: "Active monthly passes"},
						{ID: "manage_staff", Title: "Manage Staff", Description: "List your attendants"},
					},
				},
			},
		}
		return e.sendMenu(ctx, from, userKey(user), menu)
	}
	menu := models.ButtonMenu{
		Body: "Welcome! Please select an option.",
		Buttons: []models.Button{
			{ID: "list_vehicles", Title: "List Vehicles"},
			{ID: "status", Title: "Status"},
		},
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}
