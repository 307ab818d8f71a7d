package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/messaging"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/store"
)

type fakeCleaner struct {
	called    bool
	olderThan time.Duration
}

func (c *fakeCleaner) Cleanup(olderThan time.Duration) error {
	c.called = true
	c.olderThan = olderThan
	return nil
}

func TestDailyRunSendsRemindersReportsAndCleansUp(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Now()

	// Active owner whose subscription expires in two days.
	soon := now.Add(48 * time.Hour)
	ownerID := st.SeedOwner(models.Owner{
		Name:             "Asha",
		WhatsAppNumber:   "919876500002",
		SubscriptionPlan: "Growth",
		SubscriptionEnd:  &soon,
	})
	lotID := st.SeedLot(models.ParkingLot{OwnerID: ownerID, Name: "Central Plaza", PricingModel: models.PricingHourly, HourlyRate: 20})

	// A cash exit yesterday for the report.
	yesterdayEnd := now.Add(-24 * time.Hour)
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID:         lotID,
		VehicleNumber: "GJ01AA1111",
		StartTime:     yesterdayEnd.Add(-2 * time.Hour),
		EndTime:       &yesterdayEnd,
		TotalFee:      60,
		Status:        models.StatusCompletedCashExit,
		VehicleState:  models.VehicleExited,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	// A pass that lapses tomorrow, with a customer on file.
	err = st.UpsertPass(context.Background(), models.Pass{
		LotID:          lotID,
		VehicleNumber:  "GJ05RT1234",
		ExpiryDate:     now.Add(24 * time.Hour),
		Status:         models.PassActive,
		CustomerNumber: "919876543210",
	})
	if err != nil {
		t.Fatalf("UpsertPass failed: %v", err)
	}

	recorder := messaging.NewRecorder()
	cleaner := &fakeCleaner{}
	daily := NewDaily(st, recorder, cleaner)

	if err := daily.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ownerMessages := recorder.MessagesTo("919876500002")
	var gotReminder, gotReport bool
	for _, body := range ownerMessages {
		if strings.Contains(body, "your subscription is expiring soon") {
			gotReminder = true
		}
		if strings.Contains(body, "*--- ParkEasy Yesterday's Report ---*") {
			gotReport = true
			if !strings.Contains(body, "💰 *Total Collections:* ₹60") {
				t.Errorf("report = %q, wrong total", body)
			}
		}
	}
	if !gotReminder {
		t.Error("subscription reminder was not sent")
	}
	if !gotReport {
		t.Error("yesterday's report was not sent")
	}

	if len(recorder.Templates) != 1 {
		t.Fatalf("got %d templates, want 1 pass reminder", len(recorder.Templates))
	}
	tmpl := recorder.Templates[0]
	if tmpl.To != "919876543210" || tmpl.Name != "pass_expiry_reminder" {
		t.Errorf("template = %+v", tmpl)
	}
	if len(tmpl.Params) != 3 || tmpl.Params[0] != "GJ05RT1234" || tmpl.Params[1] != "Central Plaza" {
		t.Errorf("template params = %v", tmpl.Params)
	}

	if !cleaner.called {
		t.Error("media cleanup was not invoked")
	}
	if cleaner.olderThan != mediaRetention {
		t.Errorf("cleanup retention = %v, want %v", cleaner.olderThan, mediaRetention)
	}
}

func TestDailyRunSkipsExpiredOwnersForReports(t *testing.T) {
	st := store.NewInMemoryStore()
	past := time.Now().AddDate(0, 0, -10)
	ownerID := st.SeedOwner(models.Owner{
		Name:             "Old Owner",
		WhatsAppNumber:   "919876511111",
		SubscriptionPlan: "Starter",
		SubscriptionEnd:  &past,
	})
	st.SeedLot(models.ParkingLot{OwnerID: ownerID, Name: "Closed Lot", PricingModel: models.PricingHourly, HourlyRate: 20})

	recorder := messaging.NewRecorder()
	daily := NewDaily(st, recorder, nil)

	if err := daily.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, body := range recorder.MessagesTo("919876511111") {
		if strings.Contains(body, "Report") {
			t.Errorf("expired owner received a report: %q", body)
		}
	}
}
