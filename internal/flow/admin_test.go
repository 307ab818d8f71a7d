package flow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

func TestAdminStartSubscriptionCreatesOwnerAndLot(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{
		Intent:      models.IntentAdminStartSubscription,
		OwnerName:   "Vikram",
		OwnerNumber: "9876511111",
		LotName:     "Station Road Parking",
	}}

	say(t, engine, testAdminPhone, "new owner Vikram 9876511111 lot Station Road Parking")
	adminReplies := recorder.MessagesTo(testAdminPhone)
	last := adminReplies[len(adminReplies)-1]
	if !strings.Contains(last, `✅ Success! Owner "Vikram" and lot "Station Road Parking" created with a 14-day subscription.`) {
		t.Fatalf("admin reply = %q", last)
	}

	welcome := recorder.MessagesTo("919876511111")
	if len(welcome) != 1 || !strings.Contains(welcome[0], "🎉 Congratulations! Your ParkEasy account") {
		t.Errorf("owner welcome = %v", welcome)
	}

	owner, err := st.GetOwnerByPhone(context.Background(), "919876511111")
	if err != nil {
		t.Fatalf("GetOwnerByPhone failed: %v", err)
	}
	if owner == nil {
		t.Fatal("owner was not created")
	}
	if owner.SubscriptionPlan != "Growth" {
		t.Errorf("plan = %q, want Growth default", owner.SubscriptionPlan)
	}
	if !owner.SubscriptionActive(time.Now()) {
		t.Error("new owner subscription should be active")
	}
	lot, err := st.GetLotByOwner(context.Background(), owner.OwnerID)
	if err != nil || lot == nil {
		t.Fatalf("lot was not created: %v", err)
	}
	if lot.Name != "Station Road Parking" {
		t.Errorf("lot name = %q", lot.Name)
	}
}

func TestAdminStartSubscriptionRenewsExistingOwner(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{
		Intent:      models.IntentAdminStartSubscription,
		OwnerNumber: testOwnerPhone,
		Duration:    90,
	}}

	say(t, engine, testAdminPhone, "renew 919876500002 for 90 days")
	adminReplies := recorder.MessagesTo(testAdminPhone)
	if !strings.Contains(adminReplies[len(adminReplies)-1], "✅ Success! Subscription for 919876500002 has been renewed/updated for 90 days.") {
		t.Fatalf("admin reply = %q", adminReplies[len(adminReplies)-1])
	}
	ownerReplies := recorder.MessagesTo(testOwnerPhone)
	if len(ownerReplies) == 0 || !strings.Contains(ownerReplies[len(ownerReplies)-1], "successfully renewed") {
		t.Errorf("owner notification = %v", ownerReplies)
	}

	owner, _ := st.GetOwnerByPhone(context.Background(), testOwnerPhone)
	if owner.SubscriptionEnd == nil || owner.SubscriptionEnd.Before(time.Now().AddDate(0, 0, 80)) {
		t.Errorf("subscription end = %v, want ~90 days out", owner.SubscriptionEnd)
	}
}

func TestAdminStartSubscriptionRejectsBadNumber(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{
		Intent:      models.IntentAdminStartSubscription,
		OwnerNumber: "12345",
	}}

	say(t, engine, testAdminPhone, "renew 12345")
	wantLastContains(t, recorder, `❌ Admin Error: The provided number "12345" is not a valid 10 or 12-digit phone number.`)
}

func TestAdminDisableOwner(t *testing.T) {
	engine, st, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{
		Intent:      models.IntentAdminDisableOwner,
		OwnerNumber: testOwnerPhone,
	}}

	say(t, engine, testAdminPhone, "suspend 919876500002")
	adminReplies := recorder.MessagesTo(testAdminPhone)
	if !strings.Contains(adminReplies[len(adminReplies)-1], "✅ Success! Owner 919876500002 has been suspended.") {
		t.Fatalf("admin reply = %q", adminReplies[len(adminReplies)-1])
	}
	ownerReplies := recorder.MessagesTo(testOwnerPhone)
	if !strings.Contains(ownerReplies[len(ownerReplies)-1], "has been suspended") {
		t.Errorf("owner notification = %v", ownerReplies)
	}

	owner, _ := st.GetOwnerByPhone(context.Background(), testOwnerPhone)
	if owner.SubscriptionActive(time.Now()) {
		t.Error("owner subscription should no longer be active")
	}
}

func TestAdminListOwners(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{Intent: models.IntentAdminListOwners}}

	say(t, engine, testAdminPhone, "list owners")
	listing := recorder.LastMessage()
	if !strings.Contains(listing, "*--- Registered ParkEasy Owners ---*") {
		t.Fatalf("listing = %q, missing header", listing)
	}
	if !strings.Contains(listing, "1. *Asha*") || !strings.Contains(listing, "- Status: ✅ Active") {
		t.Errorf("listing = %q, missing owner row", listing)
	}
}

func TestAdminBroadcastToOwners(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{
		Intent:        models.IntentAdminBroadcast,
		TargetGroup:   "owners",
		BroadcastText: "Scheduled maintenance tonight at 11 PM.",
	}}

	say(t, engine, testAdminPhone, "broadcast to owners: maintenance tonight")
	ownerReplies := recorder.MessagesTo(testOwnerPhone)
	if len(ownerReplies) == 0 {
		t.Fatal("owner did not receive the broadcast")
	}
	got := ownerReplies[len(ownerReplies)-1]
	if !strings.HasPrefix(got, "*A Message from ParkEasy Admin:*\n\n") {
		t.Errorf("broadcast = %q, missing admin prefix", got)
	}
	wantLastContains(t, recorder, `✅ Broadcast sent successfully to 1 user(s) in group "owners".`)
}

func TestAdminSystemStatus(t *testing.T) {
	engine, _, recorder, classifier := newTestEngine(t)
	classifier.Results = []models.IntentResult{{Intent: models.IntentAdminSystemStatus}}

	say(t, engine, testAdminPhone, "system status")
	status := recorder.LastMessage()
	if !strings.Contains(status, "*--- ParkEasy System Status ---*") {
		t.Fatalf("status = %q, missing header", status)
	}
	if !strings.Contains(status, "*Database Connection:* ✅ Connected") {
		t.Errorf("status = %q, database should be connected", status)
	}
}

func TestAdminUnknownCommand(t *testing.T) {
	engine, _, recorder, _ := newTestEngine(t)

	say(t, engine, testAdminPhone, "make me a sandwich")
	wantLastContains(t, recorder, "I didn't recognize that admin command.")
}
