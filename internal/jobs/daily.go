// Package jobs implements ParkEasy's scheduled maintenance tasks.
//
// The daily run sends subscription expiry reminders, delivers yesterday's
// collections report to every active owner, reminds pass holders whose pass
// is about to lapse, and prunes old receipt images.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parkeasy/parkeasy/internal/flow"
	"github.com/parkeasy/parkeasy/internal/messaging"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/store"
)

// reminderWindow is how far ahead subscription and pass expiry reminders
// look.
const reminderWindow = 3 * 24 * time.Hour

// mediaRetention is how long rendered receipt and e-pass images are kept.
const mediaRetention = 7 * 24 * time.Hour

// Cleaner prunes stale media files. Satisfied by render.FileRenderer.
type Cleaner interface {
	Cleanup(olderThan time.Duration) error
}

// Daily bundles the dependencies of the daily maintenance run.
type Daily struct {
	store     store.Store
	messenger messaging.Service
	cleaner   Cleaner
	loc       *time.Location
}

// NewDaily creates the daily job runner. A nil cleaner skips media pruning.
func NewDaily(st store.Store, messenger messaging.Service, cleaner Cleaner) *Daily {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		slog.Warn("Daily falling back to UTC for report windows", "error", err)
		loc = time.UTC
	}
	return &Daily{store: st, messenger: messenger, cleaner: cleaner, loc: loc}
}

// Run executes every daily task. Per-owner failures are logged and skipped
// so one broken number never blocks the rest of the run.
func (d *Daily) Run(ctx context.Context) error {
	now := time.Now()
	if err := d.subscriptionReminders(ctx, now); err != nil {
		return err
	}
	if err := d.ownerReportsAndPassReminders(ctx, now); err != nil {
		return err
	}
	if d.cleaner != nil {
		if err := d.cleaner.Cleanup(mediaRetention); err != nil {
			slog.Error("Daily media cleanup failed", "error", err)
		}
	}
	slog.Info("Daily run completed")
	return nil
}

func (d *Daily) subscriptionReminders(ctx context.Context, now time.Time) error {
	owners, err := d.store.ListOwnersExpiringBetween(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return fmt.Errorf("failed to list expiring owners: %w", err)
	}
	for _, owner := range owners {
		if owner.SubscriptionEnd == nil {
			continue
		}
		body := fmt.Sprintf(
			"🔔 ParkEasy Reminder 🔔\n\nHi %s, your subscription is expiring soon on *%s*.\n\nPlease contact support to renew your plan and ensure uninterrupted service.",
			owner.Name, owner.SubscriptionEnd.In(d.loc).Format("2 January 2006"))
		if err := d.messenger.SendMessage(ctx, owner.WhatsAppNumber, body); err != nil {
			slog.Error("Daily subscription reminder failed", "error", err, "owner", owner.OwnerID)
		}
	}
	return nil
}

func (d *Daily) ownerReportsAndPassReminders(ctx context.Context, now time.Time) error {
	owners, err := d.store.ListActiveOwners(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active owners: %w", err)
	}
	for _, owner := range owners {
		lot, err := d.store.GetLotByOwner(ctx, owner.OwnerID)
		if err != nil || lot == nil {
			slog.Error("Daily lot lookup failed", "error", err, "owner", owner.OwnerID)
			continue
		}
		d.sendYesterdayReport(ctx, owner, lot, now)
		d.sendPassReminders(ctx, lot, now)
	}
	return nil
}

func (d *Daily) sendYesterdayReport(ctx context.Context, owner models.Owner, lot *models.ParkingLot, now time.Time) {
	day, title := flow.ReportDay("yesterday", now, d.loc)
	window := flow.DayWindow(day, d.loc)
	report, err := d.store.DailyReport(ctx, lot.LotID, window.From, window.Until)
	if err != nil {
		slog.Error("Daily report query failed", "error", err, "lotID", lot.LotID)
		return
	}
	body := flow.ReportText(title, day, d.loc, report)
	if err := d.messenger.SendMessage(ctx, owner.WhatsAppNumber, body); err != nil {
		slog.Error("Daily report delivery failed", "error", err, "owner", owner.OwnerID)
	}
}

func (d *Daily) sendPassReminders(ctx context.Context, lot *models.ParkingLot, now time.Time) {
	passes, err := d.store.ListExpiringPasses(ctx, lot.LotID, now, now.Add(reminderWindow))
	if err != nil {
		slog.Error("Daily pass expiry query failed", "error", err, "lotID", lot.LotID)
		return
	}
	for _, pass := range passes {
		if pass.CustomerNumber == "" {
			continue
		}
		params := []string{
			pass.VehicleNumber,
			lot.Name,
			pass.ExpiryDate.In(d.loc).Format("2 January 2006"),
		}
		if err := d.messenger.SendTemplate(ctx, pass.CustomerNumber, "pass_expiry_reminder", params); err != nil {
			slog.Error("Daily pass reminder failed", "error", err, "vehicle", pass.VehicleNumber)
		}
	}
}
