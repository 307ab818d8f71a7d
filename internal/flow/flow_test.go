package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/genai"
	"github.com/parkeasy/parkeasy/internal/messaging"
	"github.com/parkeasy/parkeasy/internal/models"
	"github.com/parkeasy/parkeasy/internal/store"
)

const (
	testAttendantPhone = "919876500001"
	testOwnerPhone     = "919876500002"
	testCustomerPhone  = "919876543210"
	testAdminPhone     = "919999999999"
	testGuestPhone     = "919812312312"
)

// newTestEngine seeds one owner (Growth plan, active subscription) with an
// hourly ₹20 lot and one active attendant.
func newTestEngine(t *testing.T) (*Engine, *store.InMemoryStore, *messaging.Recorder, *genai.MockClassifier) {
	t.Helper()
	st := store.NewInMemoryStore()
	end := time.Now().AddDate(0, 0, 30)
	ownerID := st.SeedOwner(models.Owner{
		Name:             "Asha",
		WhatsAppNumber:   testOwnerPhone,
		SubscriptionPlan: "Growth",
		SubscriptionEnd:  &end,
	})
	lotID := st.SeedLot(models.ParkingLot{
		OwnerID:      ownerID,
		Name:         "Central Plaza",
		PricingModel: models.PricingHourly,
		HourlyRate:   20,
	})
	_, err := st.AddAttendant(context.Background(), models.Attendant{
		LotID:          lotID,
		Name:           "Ramesh",
		WhatsAppNumber: testAttendantPhone,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("AddAttendant failed: %v", err)
	}

	recorder := messaging.NewRecorder()
	classifier := &genai.MockClassifier{}
	engine, err := NewEngine(st, recorder, classifier, nil, WithAdminPhone(testAdminPhone))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine, st, recorder, classifier
}

func say(t *testing.T, engine *Engine, from, body string) {
	t.Helper()
	err := engine.HandleMessage(context.Background(), models.InboundMessage{
		From:      from,
		Body:      body,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("HandleMessage(%q) failed: %v", body, err)
	}
}

func wantLastContains(t *testing.T, recorder *messaging.Recorder, substr string) {
	t.Helper()
	if last := recorder.LastMessage(); !strings.Contains(last, substr) {
		t.Fatalf("last message = %q, want it to contain %q", last, substr)
	}
}

func TestEntryFlowNewCustomerPayLaterThenCashExit(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)

	say(t, engine, testAttendantPhone, "GJ05RT1234")
	wantLastContains(t, recorder, "❓ *NEW CUSTOMER* (GJ05RT1234)")

	say(t, engine, testAttendantPhone, "9876543210")
	wantLastContains(t, recorder, "💰 *PAYMENT for GJ05RT1234*")
	wantLastContains(t, recorder, "Entry Fee: *₹20* (First Hour)")

	say(t, engine, testAttendantPhone, "Pay Later")
	found := false
	for _, body := range recorder.MessagesTo(testAttendantPhone) {
		if strings.Contains(body, "⚠️ *PAYMENT PENDING!* Vehicle GJ05RT1234 is parked.") {
			found = true
		}
	}
	if !found {
		t.Fatal("payment pending confirmation was not sent")
	}

	txn, ok := st.GetTransaction(1)
	if !ok {
		t.Fatal("transaction was not created")
	}
	if txn.Status != models.StatusParkedUnpaid || txn.TotalFee != 0 {
		t.Fatalf("transaction = %+v, want PARKED_UNPAID with zero fee", txn)
	}
	if txn.CustomerNumber != testCustomerPhone {
		t.Fatalf("customer number = %q, want %q", txn.CustomerNumber, testCustomerPhone)
	}

	// Three hours later the vehicle leaves owing 3 * ₹20.
	st.SetTransactionStart(1, time.Now().Add(-2*time.Hour-30*time.Minute))
	say(t, engine, testAttendantPhone, "out 1")
	wantLastContains(t, recorder, "❗️*COLLECT PAYMENT* (GJ05RT1234)")
	wantLastContains(t, recorder, "*Remaining Amount Due: ₹60*")

	say(t, engine, testAttendantPhone, "Cash Collected")
	txn, _ = st.GetTransaction(1)
	if txn.Status != models.StatusCompletedCashExit {
		t.Errorf("status = %s, want COMPLETED_CASH_EXIT", txn.Status)
	}
	if txn.TotalFee != 60 {
		t.Errorf("total fee = %d, want 60", txn.TotalFee)
	}
	if txn.VehicleState != models.VehicleExited {
		t.Errorf("vehicle state = %s, want EXITED", txn.VehicleState)
	}
}

func TestEntryPassHolderParksByNumericReply(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	err := st.UpsertPass(context.Background(), models.Pass{
		LotID:          1,
		VehicleNumber:  "GJ05RT1234",
		ExpiryDate:     time.Now().AddDate(0, 0, 10),
		Status:         models.PassActive,
		CustomerNumber: testCustomerPhone,
	})
	if err != nil {
		t.Fatalf("UpsertPass failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "gj05 rt 1234")
	wantLastContains(t, recorder, "✅ *PASS HOLDER* (GJ05RT1234)")

	// "1" resolves to the first menu option, "Yes, Park".
	say(t, engine, testAttendantPhone, "1")
	txn, ok := st.GetTransaction(1)
	if !ok {
		t.Fatal("transaction was not created")
	}
	if txn.Status != models.StatusParkedPass || txn.TotalFee != 0 {
		t.Fatalf("transaction = %+v, want PARKED_PASS with zero fee", txn)
	}
}

func TestEntryAlreadyInsideOffersCheckout(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID:         1,
		VehicleNumber: "GJ05RT1234",
		StartTime:     time.Now().Add(-10 * time.Minute),
		TotalFee:      20,
		Status:        models.StatusParkedPaidCash,
		VehicleState:  models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "GJ05RT1234")
	wantLastContains(t, recorder, "⚠️ *VEHICLE ALREADY PARKED*")

	say(t, engine, testAttendantPhone, "Yes, Check Out")
	wantLastContains(t, recorder, "✅ *OK TO GO* (GJ05RT1234)")

	say(t, engine, testAttendantPhone, "Confirm Exit")
	txn, _ := st.GetTransaction(1)
	if txn.Status != models.StatusCompletedNoFeeExit {
		t.Errorf("status = %s, want COMPLETED_NO_FEE_EXIT", txn.Status)
	}
	if txn.TotalFee != 20 {
		t.Errorf("total fee = %d, want the entry fee to be preserved", txn.TotalFee)
	}
}

func TestCancelClearsAnyFlow(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)

	say(t, engine, testAttendantPhone, "GJ05RT1234")
	wantLastContains(t, recorder, "NEW CUSTOMER")

	say(t, engine, testAttendantPhone, "cancel")
	wantLastContains(t, recorder, "✅ Action cancelled. You can start again.")

	saved, err := st.GetConversationState(context.Background(), "attendant:1")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if saved != nil {
		t.Errorf("state was not cleared: %+v", saved)
	}
}

func TestExpiredSubscriptionBlocksAttendant(t *testing.T) {
	st := store.NewInMemoryStore()
	past := time.Now().AddDate(0, 0, -1)
	ownerID := st.SeedOwner(models.Owner{
		Name: "Asha", WhatsAppNumber: testOwnerPhone,
		SubscriptionPlan: "Starter", SubscriptionEnd: &past,
	})
	lotID := st.SeedLot(models.ParkingLot{OwnerID: ownerID, Name: "Expired Lot", PricingModel: models.PricingHourly, HourlyRate: 20})
	if _, err := st.AddAttendant(context.Background(), models.Attendant{LotID: lotID, Name: "Ramesh", WhatsAppNumber: testAttendantPhone, IsActive: true}); err != nil {
		t.Fatalf("AddAttendant failed: %v", err)
	}
	recorder := messaging.NewRecorder()
	engine, err := NewEngine(st, recorder, &genai.MockClassifier{}, nil, WithAdminPhone(testAdminPhone))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "GJ05RT1234")
	wantLastContains(t, recorder, "❌ Your ParkEasy subscription has expired.")
}

func TestListVehiclesThenNumberChecksOut(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	now := time.Now()
	for i, vehicle := range []string{"GJ01AA1111", "GJ01BB2222"} {
		_, err := st.InsertTransaction(context.Background(), models.Transaction{
			LotID:         1,
			VehicleNumber: vehicle,
			StartTime:     now.Add(time.Duration(i-2) * time.Hour),
			TotalFee:      20,
			Status:        models.StatusParkedPaidCash,
			VehicleState:  models.VehicleInside,
		})
		if err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
	}

	say(t, engine, testAttendantPhone, "list")
	list := recorder.LastMessage()
	if !strings.Contains(list, "--- Vehicles Currently Inside ---") {
		t.Fatalf("list = %q, missing header", list)
	}
	if !strings.Contains(list, "1. `GJ01AA1111`") || !strings.Contains(list, "2. `GJ01BB2222`") {
		t.Fatalf("list = %q, missing ordered rows", list)
	}
	if !strings.Contains(list, "reply with its list number") {
		t.Fatalf("list = %q, missing checkout footer", list)
	}

	say(t, engine, testAttendantPhone, "2")
	wantLastContains(t, recorder, "(GJ01BB2222)")
}

func TestListCheckoutNonNumericFallsBackToIdle(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ01AA1111", StartTime: time.Now(),
		TotalFee: 20, Status: models.StatusParkedPaidCash, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "list")
	say(t, engine, testAttendantPhone, "status")
	wantLastContains(t, recorder, "📊 Currently 1 vehicles are parked.")
}

func TestOwnerOnlyIntentRejectedForAttendant(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{Intent: models.IntentGetReport, DatePeriod: "today"}}

	say(t, engine, testAttendantPhone, "how much did we make today")
	wantLastContains(t, recorder, "I'm sorry, that command is for owners only.")
}

func TestAttendantFallbackMessage(t *testing.T) {
	engine, _, recorder, _ := newTestEngine(t)

	say(t, engine, testAttendantPhone, "blah blah")
	wantLastContains(t, recorder, "❌ Invalid command or vehicle number format")
	wantLastContains(t, recorder, "`GJ05RT1234`")
}

func TestOwnerFallbackShowsMenu(t *testing.T) {
	engine, _, recorder, _ := newTestEngine(t)

	say(t, engine, testOwnerPhone, "blah blah")
	messages := recorder.MessagesTo(testOwnerPhone)
	if len(messages) < 2 {
		t.Fatalf("got %d messages, want apology plus menu", len(messages))
	}
	if !strings.Contains(messages[len(messages)-2], "I'm sorry, I didn't understand.") {
		t.Errorf("missing apology, got %q", messages[len(messages)-2])
	}
	if !strings.Contains(messages[len(messages)-1], "Owner Menu") {
		t.Errorf("missing owner menu, got %q", messages[len(messages)-1])
	}
}

func TestBulkCheckoutMixedResults(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	now := time.Now()
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ01AA1111", StartTime: now.Add(-30 * time.Minute),
		TotalFee: 20, Status: models.StatusParkedPaidCash, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	_, err = st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ01BB2222", StartTime: now.Add(-90 * time.Minute),
		TotalFee: 0, Status: models.StatusParkedUnpaid, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	say(t, engine, testOwnerPhone, "out GJ01AA1111,GJ01BB2222,GJ01CC3333")
	summary := recorder.LastMessage()
	if !strings.Contains(summary, "*--- Checkout Summary ---*") {
		t.Fatalf("summary = %q, missing header", summary)
	}
	if !strings.Contains(summary, "- `GJ01AA1111`: ✅ Checked Out (Paid)") {
		t.Errorf("summary = %q, paid vehicle not checked out", summary)
	}
	if !strings.Contains(summary, "- `GJ01BB2222`: ❗️ Payment Pending (*₹40*)") {
		t.Errorf("summary = %q, unpaid vehicle not flagged", summary)
	}
	if !strings.Contains(summary, "- `GJ01CC3333`: ❌ Not Found") {
		t.Errorf("summary = %q, missing vehicle not reported", summary)
	}

	txn, _ := st.GetTransaction(1)
	if txn.VehicleState != models.VehicleExited {
		t.Errorf("paid vehicle state = %s, want EXITED", txn.VehicleState)
	}
	txn, _ = st.GetTransaction(2)
	if txn.VehicleState != models.VehicleInside {
		t.Errorf("unpaid vehicle state = %s, want INSIDE", txn.VehicleState)
	}
}

func TestPassCreationFlow(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	st.SeedPassType(models.PassType{LotID: 1, Name: "Monthly Pass", DurationDays: 30, Fee: 500})

	say(t, engine, testAttendantPhone, "pass GJ05RT1234")
	wantLastContains(t, recorder, "Please select a pass type for *GJ05RT1234*:")

	say(t, engine, testAttendantPhone, "Monthly Pass (₹500)")
	wantLastContains(t, recorder, "please provide the customer's 10-digit mobile number")

	say(t, engine, testAttendantPhone, "9876543210")
	wantLastContains(t, recorder, "*Amount to Collect: ₹500*")

	say(t, engine, testAttendantPhone, "Paid via Cash")
	// The success confirmation is followed by the e-pass delivery notice.
	var gotSuccess bool
	for _, body := range recorder.MessagesTo(testAttendantPhone) {
		if strings.Contains(body, "✅ *Success!* Monthly Pass created for GJ05RT1234.") {
			gotSuccess = true
		}
	}
	if !gotSuccess {
		t.Fatal("pass creation success message was not sent")
	}
	wantLastContains(t, recorder, "Sending E-Pass to the customer...")

	pass, err := st.GetActivePass(context.Background(), 1, "GJ05RT1234", time.Now())
	if err != nil {
		t.Fatalf("GetActivePass failed: %v", err)
	}
	if pass == nil {
		t.Fatal("pass was not created")
	}
	if pass.CustomerNumber != testCustomerPhone {
		t.Errorf("pass customer = %q, want %q", pass.CustomerNumber, testCustomerPhone)
	}
}

func TestPassCreationWithoutPassTypes(t *testing.T) {
	engine, _, recorder, _ := newTestEngine(t)

	say(t, engine, testAttendantPhone, "pass GJ05RT1234")
	wantLastContains(t, recorder, "❌ No pass types created for this lot yet.")
}

func TestUnregisteredWelcomeAndLeadCapture(t *testing.T) {
	engine, _, recorder, _ := newTestEngine(t)

	say(t, engine, testGuestPhone, "hi")
	wantLastContains(t, recorder, "Welcome to ParkEasy! 🚗")

	// "2" resolves to the second welcome option, "Request a Call".
	say(t, engine, testGuestPhone, "2")
	messages := recorder.MessagesTo(testGuestPhone)
	if !strings.Contains(messages[len(messages)-1], "Our team will call you at this number shortly.") {
		t.Errorf("missing lead confirmation, got %q", messages[len(messages)-1])
	}
	adminMessages := recorder.MessagesTo(testAdminPhone)
	if len(adminMessages) == 0 || !strings.Contains(adminMessages[len(adminMessages)-1], "🔔 New Lead!") {
		t.Errorf("admin was not notified of the lead: %v", adminMessages)
	}
}

func TestUnregisteredParkedCustomerSeesStatus(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ05RT1234", StartTime: time.Now(),
		Status: models.StatusParkedPaidCash, VehicleState: models.VehicleInside,
		CustomerNumber: testGuestPhone,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	say(t, engine, testGuestPhone, "hello")
	wantLastContains(t, recorder, "Welcome back! Your vehicle GJ05RT1234 is currently parked.")
}

func TestOwnerMenuAndAttendantMenu(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{
		{Intent: models.IntentShowMenu},
		{Intent: models.IntentShowMenu},
	}

	say(t, engine, testOwnerPhone, "menu")
	wantLastContains(t, recorder, "Owner Menu")
	wantLastContains(t, recorder, "Powered by ParkEasy")

	say(t, engine, testAttendantPhone, "menu")
	wantLastContains(t, recorder, "Welcome! Please select an option.")
}

func TestStaleConversationStateIsReset(t *testing.T) {
	st := store.NewInMemoryStore()
	end := time.Now().AddDate(0, 0, 30)
	ownerID := st.SeedOwner(models.Owner{
		Name:             "Asha",
		WhatsAppNumber:   testOwnerPhone,
		SubscriptionPlan: "Growth",
		SubscriptionEnd:  &end,
	})
	lotID := st.SeedLot(models.ParkingLot{
		OwnerID:      ownerID,
		Name:         "Central Plaza",
		PricingModel: models.PricingHourly,
		HourlyRate:   20,
	})
	if _, err := st.AddAttendant(context.Background(), models.Attendant{
		LotID: lotID, Name: "Ramesh", WhatsAppNumber: testAttendantPhone, IsActive: true,
	}); err != nil {
		t.Fatalf("AddAttendant failed: %v", err)
	}

	// A payment prompt saved an hour ago, well past the TTL.
	err := st.SaveConversationState(context.Background(), models.ConversationState{
		UserKey: "attendant:1",
		State:   models.StateAwaitingPaymentType,
		Context: models.ConvContext{Entry: &models.EntryContext{VehicleNumber: "GJ05RT1234", EntryFee: 20}},
		UpdatedAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}

	recorder := messaging.NewRecorder()
	classifier := &genai.MockClassifier{Results: []models.IntentResult{{Intent: models.IntentGetStatus}}}
	engine, err := NewEngine(st, recorder, classifier, nil, WithConversationTTL(10*time.Minute))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "status")

	var gotTimeout bool
	for _, body := range recorder.MessagesTo(testAttendantPhone) {
		if strings.Contains(body, "⏳ Your previous action timed out and was cancelled.") {
			gotTimeout = true
		}
	}
	if !gotTimeout {
		t.Error("timeout notice was not sent")
	}
	// The message itself was then routed as an idle command.
	wantLastContains(t, recorder, "📊 Currently 0 vehicles are parked.")

	saved, err := st.GetConversationState(context.Background(), "attendant:1")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if saved != nil {
		t.Errorf("stale state row still present: %+v", saved)
	}
}

func TestBulkCheckoutByListPosition(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	now := time.Now()
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ01AA1111", StartTime: now.Add(-2 * time.Hour),
		TotalFee: 20, Status: models.StatusParkedPaidCash, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	_, err = st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ01BB2222", StartTime: now.Add(-1 * time.Hour),
		TotalFee: 20, Status: models.StatusParkedPaidUPI, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	// Positions index the inside list in entry-time order, as the vehicle
	// list shows them.
	say(t, engine, testOwnerPhone, "out 1,2,9")
	summary := recorder.LastMessage()
	if !strings.Contains(summary, "- `GJ01AA1111`: ✅ Checked Out (Paid)") {
		t.Errorf("summary = %q, position 1 did not resolve", summary)
	}
	if !strings.Contains(summary, "- `GJ01BB2222`: ✅ Checked Out (Paid)") {
		t.Errorf("summary = %q, position 2 did not resolve", summary)
	}
	if !strings.Contains(summary, "- `9`: ❌ Not Found") {
		t.Errorf("summary = %q, out-of-range position not reported", summary)
	}

	for id := int64(1); id <= 2; id++ {
		txn, _ := st.GetTransaction(id)
		if txn.VehicleState != models.VehicleExited {
			t.Errorf("transaction %d state = %s, want EXITED", id, txn.VehicleState)
		}
	}
}

func TestCorruptStateContextResetsToIdle(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)

	// A payment prompt whose entry context was lost.
	err := st.SaveConversationState(context.Background(), models.ConversationState{
		UserKey:   "attendant:1",
		State:     models.StateAwaitingPaymentType,
		Context:   models.ConvContext{},
		UpdatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "Cash")
	wantLastContains(t, recorder, "Something went wrong, I'm resetting our conversation. Please start again.")

	saved, err := st.GetConversationState(context.Background(), "attendant:1")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if saved != nil {
		t.Errorf("corrupt state row still present: %+v", saved)
	}

	// The conversation works again from idle.
	say(t, engine, testAttendantPhone, "status")
	wantLastContains(t, recorder, "📊 Currently 0 vehicles are parked.")
}

func TestExitConfirmTypedWithFeeDueIsRejected(t *testing.T) {
	engine, st, recorder, _ := newTestEngine(t)
	_, err := st.InsertTransaction(context.Background(), models.Transaction{
		LotID: 1, VehicleNumber: "GJ05RT1234", StartTime: time.Now().Add(-150 * time.Minute),
		TotalFee: 0, Status: models.StatusParkedUnpaid, VehicleState: models.VehicleInside,
	})
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	say(t, engine, testAttendantPhone, "out 1")
	wantLastContains(t, recorder, "❗️*COLLECT PAYMENT* (GJ05RT1234)")

	// The payment menu never offers "Confirm Exit"; typing it must not
	// close the stay with money still owed.
	say(t, engine, testAttendantPhone, "Confirm Exit")
	wantLastContains(t, recorder, "Invalid option. Resetting.")

	txn, _ := st.GetTransaction(1)
	if txn.VehicleState != models.VehicleInside {
		t.Errorf("vehicle state = %s, want INSIDE", txn.VehicleState)
	}
	if txn.Status != models.StatusParkedUnpaid {
		t.Errorf("status = %s, want PARKED_UNPAID", txn.Status)
	}
}
