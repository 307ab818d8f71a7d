package genai

import (
	"testing"

	"github.com/parkeasy/parkeasy/internal/models"
)

func TestParseIntentResult(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantIntent models.Intent
	}{
		{
			name:       "plain json",
			raw:        `{"intent":"vehicle_check_in","vehicle_number":"GJ05RT1234","language":"en"}`,
			wantIntent: models.IntentVehicleCheckIn,
		},
		{
			name:       "json fenced in markdown",
			raw:        "```json\n{\"intent\":\"get_status\",\"language\":\"hi\"}\n```",
			wantIntent: models.IntentGetStatus,
		},
		{
			name:       "bare fence",
			raw:        "```\n{\"intent\":\"list_vehicles\"}\n```",
			wantIntent: models.IntentListVehicles,
		},
		{
			name:       "model fallback envelope",
			raw:        `{"intent":"fallback","text":"gibberish"}`,
			wantIntent: models.IntentFallback,
		},
		{
			name:       "prose instead of json",
			raw:        "I could not understand that message.",
			wantIntent: models.IntentFallback,
		},
		{
			name:       "empty intent field",
			raw:        `{"language":"en"}`,
			wantIntent: models.IntentFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseIntentResult(tt.raw, "original message")
			if got.Intent != tt.wantIntent {
				t.Errorf("parseIntentResult intent = %q, want %q", got.Intent, tt.wantIntent)
			}
			if tt.wantIntent == models.IntentFallback && got.Text == "" {
				t.Error("fallback result should carry text")
			}
		})
	}
}

func TestParseIntentResultExtractsParams(t *testing.T) {
	raw := `{"intent":"vehicle_checkout","identifiers":["GJ05RT1234","2"],"language":"en"}`
	got := parseIntentResult(raw, "")
	if got.Intent != models.IntentVehicleCheckout {
		t.Fatalf("intent = %q", got.Intent)
	}
	if len(got.Identifiers) != 2 || got.Identifiers[0] != "GJ05RT1234" || got.Identifiers[1] != "2" {
		t.Errorf("identifiers = %v", got.Identifiers)
	}
	if got.Language != "en" {
		t.Errorf("language = %q, want en", got.Language)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without key should fail")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("NewClient with key option failed: %v", err)
	}
}
