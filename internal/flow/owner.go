package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/store"
	"github.com/parkeasy/parkeasy/internal/util"
)

// defaultPassRate is charged when an owner sells a pass without having
// configured a pass rate.
const defaultPassRate = 500

// defaultPassDays is the pass validity used when no duration is given.
const defaultPassDays = 30

// planLimit returns the attendant cap for a subscription plan.
func planLimit(plan string) int {
	switch strings.ToLower(plan) {
	case "growth":
		return 5
	case "pro":
		return 15
	default:
		return 1
	}
}

func (e *Engine) ownerSetPricingModel(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	model := models.PricingModel(strings.ToUpper(strings.TrimSpace(result.ModelType)))
	if model.Validate() != nil {
		return e.send(ctx, from, "❌ Invalid model. Please choose TIERED, BLOCK, or HOURLY.")
	}
	if err := e.store.SetPricingModel(ctx, user.LotID, model); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Success! Pricing model has been set to *%s*.", model))
}

func (e *Engine) ownerSetTieredRate(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	hours := result.Hours
	if hours <= 0 {
		hours = result.Duration
	}
	if hours <= 0 || result.Fee <= 0 {
		return e.send(ctx, from, "❌ I need both a duration in hours and a fee. Example: `set rate 3 hours 50`")
	}
	if err := e.store.UpsertRateTier(ctx, user.LotID, hours, result.Fee); err != nil {
		return err
	}
	// A tiered rate only takes effect under the TIERED model, so setting one
	// switches the lot over.
	if err := e.store.SetPricingModel(ctx, user.LotID, models.PricingTiered); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Tiered rate updated: Up to %d hours will cost ₹%d.", hours, result.Fee))
}

func (e *Engine) ownerSetFlatRate(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	if result.Fee <= 0 {
		return e.send(ctx, from, "❌ I need a fee amount. Example: `set hourly rate 30`")
	}
	if strings.EqualFold(result.RateType, "BLOCK") {
		hours := result.Hours
		if hours <= 0 {
			hours = 2
		}
		if err := e.store.SetBlockRate(ctx, user.LotID, result.Fee, hours); err != nil {
			return err
		}
		return e.send(ctx, from, fmt.Sprintf("✅ Block rate set: ₹%d per %d-hour block.", result.Fee, hours))
	}
	if err := e.store.SetHourlyRate(ctx, user.LotID, result.Fee); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Hourly rate set: ₹%d per hour.", result.Fee))
}

func (e *Engine) ownerSetPassRate(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	if result.Fee <= 0 {
		return e.send(ctx, from, "❌ I need a fee amount. Example: `set pass rate 500`")
	}
	if err := e.store.SetPassRate(ctx, user.LotID, result.Fee); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Success! Your standard 30-day pass rate has been set to ₹%d.", result.Fee))
}

func (e *Engine) ownerViewRates(ctx context.Context, from string, user *models.User) error {
	lot, tiers, err := e.lotAndTiers(ctx, user.LotID)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*--- Current Rate Card for %s ---*\n\n*Pricing Model:* %s\n\n", lot.Name, lot.PricingModel)
	switch lot.PricingModel {
	case models.PricingTiered:
		if len(tiers) == 0 {
			sb.WriteString("No tiered rates configured yet.\n")
		}
		for _, tier := range tiers {
			fmt.Fprintf(&sb, "Up to %d hours: ₹%d\n", tier.DurationHours, tier.Fee)
		}
	case models.PricingBlock:
		fmt.Fprintf(&sb, "₹%d per %d-hour block\n", lot.BlockRateFee, lot.BlockRateHours)
	case models.PricingHourly:
		fmt.Fprintf(&sb, "₹%d per hour\n", lot.HourlyRate)
	}
	passRate := lot.PassRate
	if passRate <= 0 {
		passRate = defaultPassRate
	}
	fmt.Fprintf(&sb, "\n*Monthly Pass Rate:* ₹%d", passRate)
	return e.send(ctx, from, sb.String())
}

func (e *Engine) ownerAddPass(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	vehicle := util.CanonicalVehicleNumber(result.VehicleNumber)
	if !util.IsValidVehicleNumber(vehicle) {
		return e.send(ctx, from, fmt.Sprintf("❌ Invalid vehicle number format for %q. Please try again.", result.VehicleNumber))
	}

	days := result.DurationDays
	if days <= 0 {
		days = defaultPassDays
	}
	lot, _, err := e.lotAndTiers(ctx, user.LotID)
	if err != nil {
		return err
	}
	fee := lot.PassRate
	if fee <= 0 {
		fee = defaultPassRate
	}

	customerNumber := ""
	if result.CustomerNumber != "" {
		if canonical, ok := util.NormalizePhoneNumber(result.CustomerNumber); ok {
			customerNumber = canonical
		}
	}

	expiry := time.Now().AddDate(0, 0, days)
	pass := models.Pass{
		LotID:          user.LotID,
		VehicleNumber:  vehicle,
		ExpiryDate:     expiry,
		Status:         models.PassActive,
		CustomerNumber: customerNumber,
	}
	if err := e.store.UpsertPass(ctx, pass); err != nil {
		return err
	}
	if customerNumber != "" {
		err := e.store.UpsertCustomer(ctx, models.Customer{
			LotID:          user.LotID,
			VehicleNumber:  vehicle,
			WhatsAppNumber: customerNumber,
			LastSeen:       time.Now(),
		})
		if err != nil {
			return err
		}
	}

	text := fmt.Sprintf("✅ Pass created for *%s*.\n*Valid Until:* %s\n\n*Please collect ₹%d from the customer.*",
		vehicle, e.formatDate(expiry), fee)
	if customerNumber != "" {
		text += fmt.Sprintf("\n\n_Customer number %s has been saved for reminders._", customerNumber)
	}
	return e.send(ctx, from, text)
}

// ownerRemovePass deactivates a vehicle's pass. When the classifier misses
// the vehicle number the raw message words are scanned for one.
func (e *Engine) ownerRemovePass(ctx context.Context, from string, user *models.User, result models.IntentResult, original string) error {
	vehicle := util.CanonicalVehicleNumber(result.VehicleNumber)
	if !util.IsValidVehicleNumber(vehicle) {
		for _, word := range strings.Fields(original) {
			if util.IsValidVehicleNumber(word) {
				vehicle = util.CanonicalVehicleNumber(word)
				break
			}
		}
	}
	if !util.IsValidVehicleNumber(vehicle) {
		return e.send(ctx, from, "❌ I need a vehicle number. Example: `remove pass GJ01AB1234`")
	}

	removed, err := e.store.DeactivatePass(ctx, user.LotID, vehicle, time.Now())
	if err != nil {
		return err
	}
	if !removed {
		return e.send(ctx, from, fmt.Sprintf("❌ No active pass found for the vehicle number %s.", vehicle))
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Success! The active pass for %s has been removed.", vehicle))
}

func (e *Engine) ownerViewPasses(ctx context.Context, from string, user *models.User) error {
	passes, err := e.store.ListActivePasses(ctx, user.LotID, time.Now())
	if err != nil {
		return err
	}
	if len(passes) == 0 {
		return e.send(ctx, from, "--- No Active Passes ---")
	}
	var sb strings.Builder
	sb.WriteString("--- Active Passes ---\n")
	for i, p := range passes {
		fmt.Fprintf(&sb, "%d. %s (Expires: %s)\n", i+1, p.VehicleNumber, e.formatDate(p.ExpiryDate))
	}
	return e.send(ctx, from, sb.String())
}

func (e *Engine) ownerAddAttendant(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	owner, err := e.store.GetOwnerByPhone(ctx, user.Phone)
	if err != nil {
		return err
	}
	if owner == nil {
		return fmt.Errorf("owner record missing for %s", user.Phone)
	}
	limit := planLimit(owner.SubscriptionPlan)
	count, err := e.store.CountActiveAttendants(ctx, user.LotID)
	if err != nil {
		return err
	}
	if count >= limit {
		return e.send(ctx, from, fmt.Sprintf("❌ You have reached the maximum of %d attendant(s) for your *%s* plan. Please upgrade to add more.", limit, owner.SubscriptionPlan))
	}

	name := strings.TrimSpace(result.AttendantName)
	number, ok := util.NormalizePhoneNumber(result.AttendantNumber)
	if name == "" || !ok {
		return e.send(ctx, from, "❌ I need the attendant's name and 10-digit number. Example: `add attendant Ramesh 9876543210`")
	}

	_, err = e.store.AddAttendant(ctx, models.Attendant{
		LotID:          user.LotID,
		Name:           name,
		WhatsAppNumber: number,
		IsActive:       true,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return e.send(ctx, from, fmt.Sprintf("❌ Error: An attendant with number %s is already registered.", number))
	}
	if err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Attendant %q added successfully. You now have %d of %d attendants.", name, count+1, limit))
}

func (e *Engine) ownerListAttendants(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	all := strings.EqualFold(result.Filter, "all")
	attendants, err := e.store.ListAttendants(ctx, user.LotID, !all)
	if err != nil {
		return err
	}
	if len(attendants) == 0 {
		qualifier := "active "
		if all {
			qualifier = ""
		}
		return e.send(ctx, from, fmt.Sprintf("You have no %sattendants registered.", qualifier))
	}

	title := "Your Active Attendants"
	if all {
		title = "All Attendants (Active & Inactive)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*--- %s ---*\n\n", title)
	for i, a := range attendants {
		status := "✅ Active"
		if !a.IsActive {
			status = "❌ Inactive"
		}
		fmt.Fprintf(&sb, "%d. *%s* (%s)\n   - `%s`\n", i+1, a.Name, status, a.WhatsAppNumber)
	}
	if all {
		sb.WriteString("\n_To reactivate an attendant, say `activate` and their number._")
	} else {
		sb.WriteString("\n_To remove an attendant, say `remove` and their list number or phone number._")
		sb.WriteString("\n_To see inactive attendants too, say `list all attendants`._")
	}
	return e.send(ctx, from, sb.String())
}

// findAttendant resolves an attendant by list position or phone number. The
// position indexes the full attendant list in display order.
func (e *Engine) findAttendant(ctx context.Context, lotID int64, identifier string) (*models.Attendant, error) {
	attendants, err := e.store.ListAttendants(ctx, lotID, false)
	if err != nil {
		return nil, err
	}
	// Only an in-range number is a list position; a ten-digit phone number
	// also parses as an integer and must fall through to the phone match.
	if position, err := strconv.Atoi(strings.TrimSpace(identifier)); err == nil && position >= 1 && position <= len(attendants) {
		return &attendants[position-1], nil
	}
	number, ok := util.NormalizePhoneNumber(identifier)
	if !ok {
		return nil, nil
	}
	for i := range attendants {
		if attendants[i].WhatsAppNumber == number {
			return &attendants[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) ownerManageAttendant(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	identifier := result.Identifier
	if identifier == "" {
		identifier = result.AttendantNumber
	}
	attendant, err := e.findAttendant(ctx, user.LotID, identifier)
	if err != nil {
		return err
	}
	if attendant == nil {
		return e.send(ctx, from, "❌ I couldn't find that attendant. Use `list attendants` to see the numbers.")
	}
	if !attendant.IsActive {
		return e.send(ctx, from, fmt.Sprintf("Attendant *%s* is already inactive. To reactivate, use the 'activate' command.", attendant.Name))
	}

	convCtx := models.ConvContext{Removal: &models.RemovalContext{
		AttendantID:    attendant.AttendantID,
		Name:           attendant.Name,
		WhatsAppNumber: attendant.WhatsAppNumber,
	}}
	if err := e.states.Set(ctx, user, models.StateAwaitingRemovalConfirmation, convCtx); err != nil {
		return err
	}
	menu := models.ButtonMenu{
		Body: fmt.Sprintf("You are about to remove:\n*%s*\n`%s`\n\nHow do you want to proceed?", attendant.Name, attendant.WhatsAppNumber),
		Buttons: []models.Button{
			{ID: "removal_deactivate", Title: "Deactivate Only"},
			{ID: "removal_delete", Title: "Delete Forever"},
			{ID: "removal_cancel", Title: "Cancel"},
		},
	}
	return e.sendMenu(ctx, from, userKey(user), menu)
}

func (e *Engine) handleRemovalConfirmation(ctx context.Context, from string, user *models.User, text string) error {
	removal := user.Context.Removal
	if removal == nil {
		if err := e.states.Clear(ctx, user); err != nil {
			return err
		}
		return e.send(ctx, from, "Something went wrong. Please start again.")
	}

	var reply string
	switch text {
	case "Deactivate Only":
		if err := e.store.SetAttendantActive(ctx, removal.AttendantID, false); err != nil {
			return err
		}
		reply = fmt.Sprintf("✅ Attendant *%s* has been deactivated.", removal.Name)
	case "Delete Forever":
		if err := e.store.DeleteAttendant(ctx, removal.AttendantID); err != nil {
			return err
		}
		reply = fmt.Sprintf("🗑️ Attendant *%s* has been permanently deleted.", removal.Name)
	default:
		reply = "✅ Action cancelled."
	}
	if err := e.states.Clear(ctx, user); err != nil {
		return err
	}
	return e.send(ctx, from, reply)
}

func (e *Engine) ownerActivateAttendant(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	identifier := result.Identifier
	if identifier == "" {
		identifier = result.AttendantNumber
	}
	attendant, err := e.findAttendant(ctx, user.LotID, identifier)
	if err != nil {
		return err
	}
	if attendant == nil {
		return e.send(ctx, from, "❌ I couldn't find that attendant. Use `list all attendants` to see the numbers.")
	}
	if attendant.IsActive {
		return e.send(ctx, from, fmt.Sprintf("Attendant *%s* is already active.", attendant.Name))
	}
	if err := e.store.SetAttendantActive(ctx, attendant.AttendantID, true); err != nil {
		return err
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Attendant *%s* has been reactivated.", attendant.Name))
}

func (e *Engine) ownerReport(ctx context.Context, from string, user *models.User, result models.IntentResult) error {
	day, title := ReportDay(result.DatePeriod, time.Now(), e.loc)
	window := DayWindow(day, e.loc)
	report, err := e.store.DailyReport(ctx, user.LotID, window.From, window.Until)
	if err != nil {
		return err
	}
	return e.send(ctx, from, ReportText(title, day, e.loc, report))
}
