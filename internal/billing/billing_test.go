package billing

import (
	"testing"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func hourlyLot(rate int) models.ParkingLot {
	return models.ParkingLot{LotID: 1, PricingModel: models.PricingHourly, HourlyRate: rate}
}

func blockLot(fee, hours int) models.ParkingLot {
	return models.ParkingLot{LotID: 1, PricingModel: models.PricingBlock, BlockRateFee: fee, BlockRateHours: hours}
}

func tieredLot() models.ParkingLot {
	return models.ParkingLot{LotID: 1, PricingModel: models.PricingTiered}
}

func standardTiers() []models.RateTier {
	return []models.RateTier{
		{DurationHours: 4, Fee: 30},
		{DurationHours: 12, Fee: 60},
		{DurationHours: 24, Fee: 100},
	}
}

func txnStarted(hoursAgo time.Duration, totalFee int) models.Transaction {
	return models.Transaction{
		VehicleNumber: "GJ05RT1234",
		StartTime:     fixedNow.Add(-hoursAgo),
		TotalFee:      totalFee,
		Status:        models.StatusParkedUnpaid,
		VehicleState:  models.VehicleInside,
	}
}

func TestElapsedHours(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want int
	}{
		{"zero duration", 0, 0},
		{"thirty minutes rounds up", 30 * time.Minute, 1},
		{"exactly one hour", time.Hour, 1},
		{"ninety minutes rounds up", 90 * time.Minute, 2},
		{"thirty hours", 30 * time.Hour, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ElapsedHours(fixedNow.Add(-tt.ago), fixedNow); got != tt.want {
				t.Errorf("ElapsedHours(%v ago) = %d, want %d", tt.ago, got, tt.want)
			}
		})
	}
}

func TestCalculateFeeBlock(t *testing.T) {
	// 60 per 12-hour block, parked 5 hours: one block.
	got := CalculateFee(blockLot(60, 12), nil, txnStarted(5*time.Hour, 0), fixedNow)
	if got != 60 {
		t.Errorf("block fee = %d, want 60", got)
	}

	// 13 hours crosses into a second block.
	got = CalculateFee(blockLot(60, 12), nil, txnStarted(13*time.Hour, 0), fixedNow)
	if got != 120 {
		t.Errorf("block fee for 13h = %d, want 120", got)
	}

	// Zero elapsed still charges one block.
	got = CalculateFee(blockLot(60, 12), nil, txnStarted(0, 0), fixedNow)
	if got != 60 {
		t.Errorf("block fee for 0h = %d, want 60", got)
	}
}

func TestCalculateFeeHourly(t *testing.T) {
	// 20/hour, parked 90 minutes: rounds up to 2 hours.
	got := CalculateFee(hourlyLot(20), nil, txnStarted(90*time.Minute, 0), fixedNow)
	if got != 40 {
		t.Errorf("hourly fee = %d, want 40", got)
	}

	// Zero elapsed still charges one hour.
	got = CalculateFee(hourlyLot(20), nil, txnStarted(0, 0), fixedNow)
	if got != 20 {
		t.Errorf("hourly fee for 0h = %d, want 20", got)
	}
}

func TestCalculateFeeTiered(t *testing.T) {
	tests := []struct {
		name     string
		ago      time.Duration
		alreadyPaid int
		want     int
	}{
		{"first tier", 3 * time.Hour, 0, 30},
		{"tier boundary inclusive", 4 * time.Hour, 0, 30},
		{"middle tier", 10 * time.Hour, 0, 60},
		{"top tier", 24 * time.Hour, 0, 100},
		// 30h exceeds the 24h tier by 6h: one extra started day at the top
		// tier fee again.
		{"overflow one day", 30 * time.Hour, 0, 200},
		{"overflow two days", 50 * time.Hour, 0, 300},
		{"already paid subtracted", 10 * time.Hour, 20, 40},
		{"overpaid clamps to zero", 3 * time.Hour, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFee(tieredLot(), standardTiers(), txnStarted(tt.ago, tt.alreadyPaid), fixedNow)
			if got != tt.want {
				t.Errorf("tiered fee = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalculateFeeDeterministic(t *testing.T) {
	txn := txnStarted(7*time.Hour, 20)
	first := CalculateFee(tieredLot(), standardTiers(), txn, fixedNow)
	for i := 0; i < 10; i++ {
		if got := CalculateFee(tieredLot(), standardTiers(), txn, fixedNow); got != first {
			t.Fatalf("CalculateFee not deterministic: %d then %d", first, got)
		}
	}
	if first < 0 {
		t.Errorf("fee must never be negative, got %d", first)
	}
}

func TestCalculateFeeMisconfiguration(t *testing.T) {
	// Missing configuration is a zero bill, never an error to the user.
	tests := []struct {
		name string
		lot  models.ParkingLot
	}{
		{"block without hours", models.ParkingLot{PricingModel: models.PricingBlock, BlockRateFee: 60}},
		{"hourly without rate", models.ParkingLot{PricingModel: models.PricingHourly}},
		{"tiered without card", tieredLot()},
		{"unset model without card", models.ParkingLot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateFee(tt.lot, nil, txnStarted(5*time.Hour, 0), fixedNow); got != 0 {
				t.Errorf("misconfigured lot fee = %d, want 0", got)
			}
		})
	}
}

func TestQuoteEntryFee(t *testing.T) {
	if got := QuoteEntryFee(hourlyLot(25), nil); got != 25 {
		t.Errorf("hourly entry fee = %d, want 25", got)
	}
	if got := QuoteEntryFee(blockLot(60, 12), nil); got != 60 {
		t.Errorf("block entry fee = %d, want 60", got)
	}
	if got := QuoteEntryFee(tieredLot(), standardTiers()); got != 30 {
		t.Errorf("tiered entry fee = %d, want 30", got)
	}
	if got := QuoteEntryFee(models.ParkingLot{}, nil); got != DefaultEntryFee {
		t.Errorf("misconfigured entry fee = %d, want default %d", got, DefaultEntryFee)
	}
}

func TestEntryQuoteMatchesExitBillForFirstPeriod(t *testing.T) {
	// The amount quoted at entry must equal the bill for the first
	// hour/block/tier so entry and exit math cannot drift.
	lots := []struct {
		name  string
		lot   models.ParkingLot
		tiers []models.RateTier
	}{
		{"hourly", hourlyLot(20), nil},
		{"block", blockLot(60, 12), nil},
		{"tiered", tieredLot(), standardTiers()},
	}
	for _, tt := range lots {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := StrategyFor(tt.lot, tt.tiers)
			if err != nil {
				t.Fatalf("StrategyFor failed: %v", err)
			}
			if entry, total := strategy.QuoteEntryFee(), strategy.QuoteTotalForDuration(1); entry != total {
				t.Errorf("entry quote %d != first-hour bill %d", entry, total)
			}
		})
	}
}
