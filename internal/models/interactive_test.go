package models

import (
	"strings"
	"testing"
)

func TestButtonMenuRenderText(t *testing.T) {
	menu := ButtonMenu{
		Body: "How will the customer pay?",
		Buttons: []Button{
			{ID: "pay_cash", Title: "Cash"},
			{ID: "pay_upi", Title: "UPI"},
			{ID: "pay_later", Title: "Pay Later"},
		},
	}

	got := menu.RenderText()
	if !strings.HasPrefix(got, "How will the customer pay?") {
		t.Errorf("rendered menu should start with body, got %q", got)
	}
	for _, want := range []string{"\n1. Cash", "\n2. UPI", "\n3. Pay Later"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered menu missing %q in %q", want, got)
		}
	}
}

func TestButtonMenuOptionTitle(t *testing.T) {
	menu := ButtonMenu{Buttons: []Button{{Title: "Cash"}, {Title: "UPI"}}}

	if title, ok := menu.OptionTitle(2); !ok || title != "UPI" {
		t.Errorf("OptionTitle(2) = %q, %v; want UPI, true", title, ok)
	}
	if _, ok := menu.OptionTitle(0); ok {
		t.Error("OptionTitle(0) should be out of range")
	}
	if _, ok := menu.OptionTitle(3); ok {
		t.Error("OptionTitle(3) should be out of range")
	}
}

func TestListMenuNumberingAcrossSections(t *testing.T) {
	menu := ListMenu{
		Header: "Owner Menu",
		Body:   "Please select a primary action from the list below.",
		Sections: []ListSection{
			{Title: "Daily Operations", Rows: []ListRow{
				{Title: "List Vehicles", Description: "See all cars currently inside the lot."},
				{Title: "Get Report"},
			}},
			{Title: "Management", Rows: []ListRow{
				{Title: "View Passes"},
				{Title: "Manage Staff"},
			}},
		},
	}

	got := menu.RenderText()
	for _, want := range []string{"\n1. List Vehicles", "\n2. Get Report", "\n3. View Passes", "\n4. Manage Staff"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered list missing %q in %q", want, got)
		}
	}

	if title, ok := menu.OptionTitle(3); !ok || title != "View Passes" {
		t.Errorf("OptionTitle(3) = %q, %v; want View Passes, true", title, ok)
	}
	if title, ok := menu.OptionTitle(4); !ok || title != "Manage Staff" {
		t.Errorf("OptionTitle(4) = %q, %v; want Manage Staff, true", title, ok)
	}
	if _, ok := menu.OptionTitle(5); ok {
		t.Error("OptionTitle(5) should be out of range")
	}
}

func TestIntentRoleGates(t *testing.T) {
	if !IntentSetPricingModel.OwnerOnly() {
		t.Error("set_pricing_model should be owner-only")
	}
	if IntentListVehicles.OwnerOnly() {
		t.Error("list_vehicles should not be owner-only")
	}
	if !IntentAdminListOwners.AdminOnly() {
		t.Error("admin_list_owners should be admin-only")
	}
	if IntentGetReport.AdminOnly() {
		t.Error("get_report should not be admin-only")
	}
}
