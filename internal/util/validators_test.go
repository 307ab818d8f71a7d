package util

import "testing"

func TestIsValidVehicleNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"standard plate", "GJ05RT1234", true},
		{"lowercase accepted", "gj05rt1234", true},
		{"three letter series", "MH12ABC9876", true},
		{"single letter series", "DL01A0001", true},
		{"surrounding whitespace", "  KA03MN4321 ", true},
		{"missing series letters", "GJ051234", false},
		{"too many series letters", "GJ05ABCD1234", false},
		{"short number block", "GJ05RT123", false},
		{"long number block", "GJ05RT12345", false},
		{"internal space", "GJ 05 RT 1234", false},
		{"empty", "", false},
		{"free text", "check out my car", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidVehicleNumber(tt.input); got != tt.want {
				t.Errorf("IsValidVehicleNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalVehicleNumber(t *testing.T) {
	if got := CanonicalVehicleNumber("  gj05rt1234 "); got != "GJ05RT1234" {
		t.Errorf("CanonicalVehicleNumber() = %q, want GJ05RT1234", got)
	}
}

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"ten digits", "9876543210", "919876543210", true},
		{"ten digits with separators", "98765-43210", "919876543210", true},
		{"twelve digits with country code", "919876543210", "919876543210", true},
		{"plus prefixed", "+91 98765 43210", "919876543210", true},
		{"trunk zero", "09876543210", "919876543210", true},
		{"nine digits", "987654321", "", false},
		{"twelve digits wrong country", "129876543210", "", false},
		{"eleven digits no trunk zero", "19876543210", "", false},
		{"empty", "", "", false},
		{"letters only", "call me", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhoneNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("NormalizePhoneNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("NormalizePhoneNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
