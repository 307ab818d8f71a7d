package flow

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// passOptionRegex parses a pass-type button title like "Monthly Pass (₹500)".
var passOptionRegex = regexp.MustCompile(`^(.+) \(₹(\d+)\)$`)

// startPassCreation begins selling a pass for a vehicle from the lot's
// configured pass types.
func (e *Engine) startPassCreation(ctx context.Context, from string, user *models.User, raw string) error {
	vehicle := util.CanonicalVehicleNumber(raw)
	if !util.IsValidVehicleNumber(vehicle) {
		return e.send(ctx, from, fmt.Sprintf("❌ Invalid vehicle number format for %q. Please try again.", raw))
	}

	types, err := e.store.ListPassTypes(ctx, user.LotID)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		return e.send(ctx, from, "❌ No pass types created for this lot yet. Owner must set pass rates.")
	}

	convCtx := models.ConvContext{Pass: &models.PassContext{VehicleNumber: vehicle}}
	if err := e.states.Set(ctx, user, models.StateAwaitingPassTypeSelection, convCtx); err != nil {
		return err
	}

	buttons := make([]models.Button, 0, len(types)+1)
	for _, t := range types {
		buttons = append(buttons, models.Button{
			ID:    fmt.Sprintf("pass_type_%d", t.PassTypeID),
			Title: fmt.Sprintf("%s (₹%d)", t.Name, t.Fee),
		})
	}
	buttons = append(buttons, models.Button{ID: "pass_cancel", Title: "Cancel"})
	menu := models.ButtonMenu{
		Body:    fmt.Sprintf("Please select a pass type for *%s*:", vehicle),
		Buttons: buttons,
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}

// handlePassTypeSelection resolves the chosen pass type and asks for the
// customer's number unless it is already on file.
func (e *Engine) handlePassTypeSelection(ctx context.Context, from string, user *models.User, text string) error {
	pass := user.Context.Pass

	match := passOptionRegex.FindStringSubmatch(text)
	var chosen *models.PassType
	if match != nil {
		types, err := e.store.ListPassTypes(ctx, user.LotID)
		if err != nil {
			return err
		}
		for i := range types {
			if types[i].Name == match[1] {
				chosen = &types[i]
				break
			}
		}
	}
	if chosen == nil {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "❌ Invalid pass type selected. Starting over.")
	}

	passCtx := models.PassContext{
		VehicleNumber: pass.VehicleNumber,
		PassName:      chosen.Name,
		Fee:           chosen.Fee,
		DurationDays:  chosen.DurationDays,
	}

	customer, err := e.store.GetCustomer(ctx, user.LotID, pass.VehicleNumber)
	if err != nil {
		return err
	}
	if customer != nil {
		passCtx.CustomerNumber = customer.WhatsAppNumber
		return e.askForPassPayment(ctx, from, user, passCtx)
	}

	if err := e.states.Set(ctx, user, models.StateAwaitingPassCustomerNum, models.ConvContext{Pass: &passCtx}); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("To create the *%s*, please provide the customer's 10-digit mobile number.", chosen.Name))
}

// handlePassCustomerNumber records the customer number for the pass being
// created.
func (e *Engine) handlePassCustomerNumber(ctx context.Context, from string, user *models.User, text string) error {
	number, ok := util.NormalizePhoneNumber(text)
	if !ok {
		return e.send(ctx, from, "⚠️ Invalid number. Please provide a 10-digit number or type *cancel*.")
	}
	passCtx := *user.Context.Pass
	passCtx.CustomerNumber = number
	err := e.store.UpsertCustomer(ctx, models.Customer{
		LotID:          user.LotID,
		VehicleNumber:  passCtx.VehicleNumber,
		WhatsAppNumber: number,
		LastSeen:       time.Now(),
	})
	if err != nil {
		return err
	}
	return e.askForPassPayment(ctx, from, user, passCtx)
}

// askForPassPayment shows the final confirmation with the amount to collect.
func (e *Engine) askForPassPayment(ctx context.Context, from string, user *models.User, passCtx models.PassContext) error {
	if err := e.states.Set(ctx, user, models.StateAwaitingPassPayment, models.ConvContext{Pass: &passCtx}); err != nil {
		return err
	}
	menu := models.ButtonMenu{
		Body: fmt.Sprintf("*Final Confirmation*\n\nCreate *%s* for *%s*?\n\n*Amount to Collect: ₹%d*",
			passCtx.PassName, passCtx.VehicleNumber, passCtx.Fee),
		Buttons: []models.Button{
			{ID: "pass_cash", Title: "Paid via Cash"},
			{ID: "pass_upi", Title: "Paid via UPI"},
			{ID: "pass_cancel", Title: "Cancel"},
		},
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}

// handlePassFinalConfirmation creates the pass once payment is confirmed and
// delivers the e-pass to the customer.
func (e *Engine) handlePassFinalConfirmation(ctx context.Context, from string, user *models.User, text string) error {
	passCtx := user.Context.Pass

	if text != "Paid via Cash" && text != "Paid via UPI" {
		vehicle := passCtx.VehicleNumber
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, fmt.Sprintf("✅ Pass creation for %s cancelled.", vehicle))
	}

	expiry := time.Now().AddDate(0, 0, passCtx.DurationDays)
	pass := models.Pass{
		LotID:          user.LotID,
		VehicleNumber:  passCtx.VehicleNumber,
		ExpiryDate:     expiry,
		Status:         models.PassActive,
		CustomerNumber: passCtx.CustomerNumber,
	}
	if err := e.store.UpsertPass(ctx, pass); err != nil {
		return err
	}
	if err := e.send(ctx, from, fmt.Sprintf("✅ *Success!* %s created for %s.", passCtx.PassName, passCtx.VehicleNumber)); err != nil {
		return err
	}

	if passCtx.CustomerNumber != "" {
		if err := e.send(ctx, from, "Sending E-Pass to the customer..."); err != nil {
			return err
		}
		e.sendEPass(ctx, user, pass, passCtx.PassName)
	}
	return e.states.Clear(ctx, user)
}

// sendEPass renders the e-pass card and delivers it to the customer.
// Failures are logged but never fail the flow.
func (e *Engine) sendEPass(ctx context.Context, user *models.User, pass models.Pass, passName string) {
	lot, err := e.store.GetLot(ctx, user.LotID)
	if err != nil || lot == nil {
		slog.Error("Engine sendEPass lot lookup failed", "error", err, "lotID", user.LotID)
		return
	}
	url, err := e.renderer.PassImage(ctx, *lot, pass, passName)
	if err != nil {
		slog.Error("Engine sendEPass render failed", "error", err, "vehicle", pass.VehicleNumber)
		return
	}
	if url == "" {
		return
	}
	caption := fmt.Sprintf("Your ParkEasy E-Pass for %s.", pass.VehicleNumber)
	if err := e.messenger.SendImage(ctx, pass.CustomerNumber, url, caption); err != nil {
		slog.Error("Engine sendEPass delivery failed", "error", err, "to", pass.CustomerNumber)
	}
}
