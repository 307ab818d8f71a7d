package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

func TestOwnerSetPricingModel(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentSetPricingModel, ModelType: "block"},
		{Intent: models.IntentSetPricingModel, ModelType: "weekly"},
	}

	say(t, engine, testOwnerPhone, "switch to block pricing")
	wantLastContains(t, recorder, "✅ Success! Pricing model has been set to *BLOCK*.")
	lot, _ := st.GetLot(context.Background(), 1)
	if lot.PricingModel != models.PricingBlock {
		t.Errorf("pricing model = %s, want BLOCK", lot.PricingModel)
	}

	say(t, engine, testOwnerPhone, "switch to weekly pricing")
	wantLastContains(t, recorder, "❌ Invalid model. Please choose TIERED, BLOCK, or HOURLY.")
}

func TestOwnerSetTieredRateSwitchesModel(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentSetTieredRate, Hours: 3, Fee: 50},
	}

	say(t, engine, testOwnerPhone, "up to 3 hours costs 50")
	wantLastContains(t, recorder, "✅ Tiered rate updated: Up to 3 hours will cost ₹50.")

	lot, _ := st.GetLot(context.Background(), 1)
	if lot.PricingModel != models.PricingTiered {
		t.Errorf("pricing model = %s, want TIERED after setting a tier", lot.PricingModel)
	}
	tiers, _ := st.GetRateTiers(context.Background(), 1)
	if len(tiers) != 1 || tiers[0].DurationHours != 3 || tiers[0].Fee != 50 {
		t.Errorf("tiers = %+v, want one 3h/₹50 tier", tiers)
	}
}

func TestOwnerViewRates(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{Intent: models.IntentViewRates}}

	say(t, engine, testOwnerPhone, "show my rates")
	card := recorder.LastMessage()
	if !strings.Contains(card, "*--- Current Rate Card for Central Plaza ---*") {
		t.Fatalf("card = %q, missing header", card)
	}
	if !strings.Contains(card, "*Pricing Model:* HOURLY") {
		t.Errorf("card = %q, missing pricing model", card)
	}
	if !strings.Contains(card, "₹20 per hour") {
		t.Errorf("card = %q, missing hourly rate", card)
	}
	if !strings.Contains(card, "*Monthly Pass Rate:* ₹500") {
		t.Errorf("card = %q, missing default pass rate", card)
	}
}

func TestOwnerAddAndRemovePass(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentAddPass, VehicleNumber: "GJ05RT1234", CustomerNumber: "9876543210"},
		{Intent: models.IntentViewPasses},
		{Intent: models.IntentRemovePass, VehicleNumber: "GJ05RT1234"},
		{Intent: models.IntentRemovePass, VehicleNumber: "GJ05RT1234"},
	}

	say(t, engine, testOwnerPhone, "add a pass for GJ05RT1234, customer 9876543210")
	created := recorder.LastMessage()
	if !strings.Contains(created, "✅ Pass created for *GJ05RT1234*.") {
		t.Fatalf("created = %q, missing confirmation", created)
	}
	if !strings.Contains(created, "*Please collect ₹500 from the customer.*") {
		t.Errorf("created = %q, missing default fee", created)
	}
	if !strings.Contains(created, "_Customer number 919876543210 has been saved for reminders._") {
		t.Errorf("created = %q, missing reminder note", created)
	}

	say(t, engine, testOwnerPhone, "view passes")
	wantLastContains(t, recorder, "--- Active Passes ---")
	wantLastContains(t, recorder, "1. GJ05RT1234 (Expires:")

	say(t, engine, testOwnerPhone, "remove the pass for GJ05RT1234")
	wantLastContains(t, recorder, "✅ Success! The active pass for GJ05RT1234 has been removed.")
	pass, _ := st.GetActivePass(context.Background(), 1, "GJ05RT1234", time.Now())
	if pass != nil {
		t.Errorf("pass still active after removal: %+v", pass)
	}

	say(t, engine, testOwnerPhone, "remove the pass for GJ05RT1234")
	wantLastContains(t, recorder, "❌ No active pass found for the vehicle number GJ05RT1234.")
}

func TestOwnerAttendantLimitByPlan(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	// Growth allows five; the fixture starts with one.
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentAddAttendant, AttendantName: "Suresh", AttendantNumber: "9876500003"},
		{Intent: models.IntentAddAttendant, AttendantName: "Ramesh", AttendantNumber: "9876500001"},
	}

	say(t, engine, testOwnerPhone, "add attendant Suresh 9876500003")
	wantLastContains(t, recorder, `✅ Attendant "Suresh" added successfully. You now have 2 of 5 attendants.`)

	say(t, engine, testOwnerPhone, "add attendant Ramesh 9876500001")
	wantLastContains(t, recorder, "❌ Error: An attendant with number 919876500001 is already registered.")
}

func TestOwnerAttendantRemovalFlow(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentListAttendants},
		{Intent: models.IntentManageAttendant, Identifier: "1"},
	}

	say(t, engine, testOwnerPhone, "list attendants")
	wantLastContains(t, recorder, "*--- Your Active Attendants ---*")
	wantLastContains(t, recorder, "1. *Ramesh* (✅ Active)")

	say(t, engine, testOwnerPhone, "remove attendant 1")
	wantLastContains(t, recorder, "You are about to remove:\n*Ramesh*")

	say(t, engine, testOwnerPhone, "Delete Forever")
	wantLastContains(t, recorder, "🗑️ Attendant *Ramesh* has been permanently deleted.")

	user, err := st.ResolveUser(context.Background(), testAttendantPhone)
	if err != nil {
		t.Fatalf("ResolveUser failed: %v", err)
	}
	if user != nil {
		t.Errorf("deleted attendant still resolves: %+v", user)
	}
}

func TestOwnerAttendantDeactivateAndReactivate(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentManageAttendant, Identifier: "9876500001"},
		{Intent: models.IntentActivateAttendant, Identifier: "9876500001"},
	}

	say(t, engine, testOwnerPhone, "remove attendant 9876500001")
	say(t, engine, testOwnerPhone, "Deactivate Only")
	wantLastContains(t, recorder, "✅ Attendant *Ramesh* has been deactivated.")

	say(t, engine, testOwnerPhone, "activate 9876500001")
	wantLastContains(t, recorder, "✅ Attendant *Ramesh* has been reactivated.")
}

func TestOwnerRemovalConfirmationRejectedForAttendant(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	// Force an attendant into the owner-only state to simulate corruption.
	err := st.SaveConversationState(context.Background(), models.ConversationState{
		UserKey: "attendant:1",
		State:   models.StateAwaitingRemovalConfirmation,
		Context: models.ConvContext{Removal: &models.RemovalContext{AttendantID: 1, Name: "Ramesh"}},
	})
	if err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "Delete Forever")
	wantLastContains(t, recorder, "Invalid action.")
}

func TestOwnerDailyReport(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{Intent: models.IntentGetReport, DatePeriod: "today"}}

	now := time.Now()
	end := now.Add(-5 * time.Minute)
	seed := []models.Transaction{
		{LotID: 1, VehicleNumber: "GJ01AA1111", StartTime: now.Add(-2 * time.Hour), EndTime: &end, TotalFee: 60, Status: models.StatusCompletedCashExit, VehicleState: models.VehicleExited},
		{LotID: 1, VehicleNumber: "GJ01BB2222", StartTime: now.Add(-3 * time.Hour), EndTime: &end, TotalFee: 40, Status: models.StatusCompletedUPIExit, VehicleState: models.VehicleExited},
		{LotID: 1, VehicleNumber: "GJ01CC3333", StartTime: now.Add(-1 * time.Hour), EndTime: &end, TotalFee: 0, Status: models.StatusCompletedPassExit, VehicleState: models.VehicleExited},
	}
	for _, txn := range seed {
		if _, err := st.InsertTransaction(context.Background(), txn); err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
	}

	say(t, engine, testOwnerPhone, "today's report")
	report := recorder.LastMessage()
	if !strings.Contains(report, "*--- ParkEasy Today's Report ---*") {
		t.Fatalf("report = %q, missing title", report)
	}
	if !strings.Contains(report, "💰 *Total Collections:* ₹100") {
		t.Errorf("report = %q, wrong total", report)
	}
	if !strings.Contains(report, "💵 *Cash Logged:* ₹60") {
		t.Errorf("report = %q, wrong cash", report)
	}
	if !strings.Contains(report, "📲 *UPI Logged:* ₹40") {
		t.Errorf("report = %q, wrong UPI", report)
	}
	if !strings.Contains(report, "🚗 *Paid Vehicle Exits:* 2") {
		t.Errorf("report = %q, wrong paid exits", report)
	}
	if !strings.Contains(report, "💳 *Pass Holder Exits:* 1") {
		t.Errorf("report = %q, wrong pass exits", report)
	}
}
