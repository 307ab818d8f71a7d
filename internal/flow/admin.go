package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/util"
)

// adminRole is passed to the classifier for super-admin messages so it
// offers the admin command surface.
const adminRole = models.Role("admin")

// newOwnerHourlyRate is the hourly rate a freshly created lot starts with.
const newOwnerHourlyRate = 30

// handleAdminMessage routes messages from the super-admin number. Unmatched
// messages fall through to the owner pipeline when the admin also owns a
// lot, so the admin phone can double as a demo account.
func (e *Engine) handleAdminMessage(ctx context.Context, from, text string) error {
	result, err := e.classifier.ClassifyIntent(ctx, adminRole, text)
	if err != nil {
		slog.Warn("Engine admin intent classification failed", "error", err)
		result = models.FallbackIntent(text)
	}

	switch result.Intent {
	case models.IntentAdminStartSubscription:
		return e.adminStartSubscription(ctx, from, result)
	case models.IntentAdminListOwners:
		return e.adminListOwners(ctx, from)
	case models.IntentAdminDisableOwner:
		return e.adminDisableOwner(ctx, from, result)
	case models.IntentAdminBroadcast:
		return e.adminBroadcast(ctx, from, result)
	case models.IntentAdminSystemStatus:
		return e.adminSystemStatus(ctx, from)
	default:
		user, err := e.store.ResolveUser(ctx, from)
		if err != nil {
			return err
		}
		if user != nil && user.Role == models.RoleOwner {
			return e.handleRegistered(ctx, from, user, text)
		}
		return e.send(ctx, from, "I didn't recognize that admin command.")
	}
}

// adminStartSubscription renews an existing owner or onboards a new one with
// their first lot.
func (e *Engine) adminStartSubscription(ctx context.Context, from string, result models.IntentResult) error {
	number, ok := util.NormalizePhoneNumber(result.OwnerNumber)
	if !ok {
		return e.send(ctx, from, fmt.Sprintf("❌ Admin Error: The provided number %q is not a valid 10 or 12-digit phone number.", result.OwnerNumber))
	}

	now := time.Now()
	owner, err := e.store.GetOwnerByPhone(ctx, number)
	if err != nil {
		return err
	}

	if owner != nil {
		days := result.Duration
		if days <= 0 {
			days = 30
		}
		plan := result.PlanName
		if plan == "" {
			plan = owner.SubscriptionPlan
		}
		end := now.AddDate(0, 0, days)
		if err := e.store.SetOwnerSubscription(ctx, owner.OwnerID, plan, now, end); err != nil {
			return err
		}
		if err := e.send(ctx, from, fmt.Sprintf("✅ Success! Subscription for %s has been renewed/updated for %d days.", number, days)); err != nil {
			return err
		}
		return e.send(ctx, number, fmt.Sprintf("🎉 Your ParkEasy subscription has been successfully renewed! Your service is active until %s.", e.formatDate(end)))
	}

	if result.OwnerName == "" || result.LotName == "" {
		return e.send(ctx, from, "❌ Admin Error: For new users, I need the owner's name and lot name.")
	}
	days := result.Duration
	if days <= 0 {
		days = 14
	}
	plan := result.PlanName
	if plan == "" {
		plan = "Growth"
	}
	end := now.AddDate(0, 0, days)
	newOwner := models.Owner{
		Name:              result.OwnerName,
		WhatsAppNumber:    number,
		SubscriptionPlan:  plan,
		SubscriptionStart: &now,
		SubscriptionEnd:   &end,
	}
	if _, _, err := e.store.CreateOwnerWithLot(ctx, newOwner, result.LotName, newOwnerHourlyRate); err != nil {
		return err
	}
	if err := e.send(ctx, from, fmt.Sprintf("✅ Success! Owner %q and lot %q created with a %d-day subscription.", result.OwnerName, result.LotName, days)); err != nil {
		return err
	}
	return e.send(ctx, number, fmt.Sprintf("🎉 Congratulations! Your ParkEasy account for %q is now active until %s! Type 'menu' to get started.", result.LotName, e.formatDate(end)))
}

func (e *Engine) adminListOwners(ctx context.Context, from string) error {
	owners, err := e.store.ListOwners(ctx)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return e.send(ctx, from, "No owners found in the system.")
	}

	now := time.Now()
	var sb strings.Builder
	sb.WriteString("*--- Registered ParkEasy Owners ---*\n\n")
	for i, owner := range owners {
		status := "❌ Expired"
		if owner.SubscriptionActive(now) {
			status = "✅ Active"
		}
		expires := "never set"
		if owner.SubscriptionEnd != nil {
			expires = e.formatDate(*owner.SubscriptionEnd)
		}
		fmt.Fprintf(&sb, "%d. *%s*\n   - Number: `%s`\n   - Plan: %s\n   - Expires: %s\n   - Status: %s\n\n",
			i+1, owner.Name, owner.WhatsAppNumber, owner.SubscriptionPlan, expires, status)
	}
	return e.send(ctx, from, strings.TrimRight(sb.String(), "\n"))
}

func (e *Engine) adminDisableOwner(ctx context.Context, from string, result models.IntentResult) error {
	number, ok := util.NormalizePhoneNumber(result.OwnerNumber)
	if !ok {
		return e.send(ctx, from, fmt.Sprintf("❌ Admin Error: The provided number %q is not a valid 10 or 12-digit phone number.", result.OwnerNumber))
	}
	owner, err := e.store.GetOwnerByPhone(ctx, number)
	if err != nil {
		return err
	}
	if owner == nil {
		return e.send(ctx, from, fmt.Sprintf("❌ Admin Error: No owner found with number %s.", number))
	}
	if err := e.store.SetOwnerSubscriptionEnd(ctx, owner.OwnerID, time.Now().AddDate(0, 0, -1)); err != nil {
		return err
	}
	if err := e.send(ctx, from, fmt.Sprintf("✅ Success! Owner %s has been suspended.", number)); err != nil {
		return err
	}
	return e.send(ctx, number, "Your ParkEasy account has been suspended. Please contact support.")
}

func (e *Engine) adminBroadcast(ctx context.Context, from string, result models.IntentResult) error {
	if strings.TrimSpace(result.BroadcastText) == "" {
		return e.send(ctx, from, "❌ Admin Error: There is no message to broadcast.")
	}

	group := strings.ToLower(strings.TrimSpace(result.TargetGroup))
	var recipients []string
	switch group {
	case "owners":
		owners, err := e.store.ListActiveOwners(ctx, time.Now())
		if err != nil {
			return err
		}
		for _, owner := range owners {
			recipients = append(recipients, owner.WhatsAppNumber)
		}
	case "attendants":
		if result.LotID == 0 {
			return e.send(ctx, from, "❌ Admin Error: Broadcasting to attendants requires a lot id.")
		}
		attendants, err := e.store.ListAttendants(ctx, result.LotID, true)
		if err != nil {
			return err
		}
		for _, a := range attendants {
			recipients = append(recipients, a.WhatsAppNumber)
		}
	default:
		return e.send(ctx, from, fmt.Sprintf("❌ Admin Error: Unknown broadcast group %q. Use owners or attendants.", result.TargetGroup))
	}

	body := "*A Message from ParkEasy Admin:*\n\n" + result.BroadcastText
	sent := 0
	for _, to := range recipients {
		if err := e.messenger.SendMessage(ctx, to, body); err != nil {
			slog.Error("Engine adminBroadcast delivery failed", "error", err, "to", to)
			continue
		}
		sent++
	}
	return e.send(ctx, from, fmt.Sprintf("✅ Broadcast sent successfully to %d user(s) in group %q.", sent, group))
}

func (e *Engine) adminSystemStatus(ctx context.Context, from string) error {
	dbStatus := "✅ Connected"
	if err := e.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("❌ Down (%v)", err)
	}
	text := fmt.Sprintf(
		"*--- ParkEasy System Status ---*\n"+
			"*Database Connection:* %s\n"+
			"*AI Service:* ✅ Operational\n"+
			"*Messaging Service:* ✅ Operational\n\n"+
			"_Checked at %s_",
		dbStatus, time.Now().In(e.loc).Format("2 Jan 2006, 3:04 PM"))
	return e.send(ctx, from, text)
}
