// Package billing computes parking fees for ParkEasy lots.
//
// Each pricing model is a Strategy used by both the entry-fee preview and
// the exit billing, so the amount quoted at entry and the amount billed at
// exit always come from the same math.
package billing

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// DefaultEntryFee is quoted when a lot's pricing configuration is incomplete.
// Misconfiguration is logged and treated as recoverable, never surfaced as a
// hard failure to the attendant mid-flow.
const DefaultEntryFee = 20

// Strategy prices a single vehicle stay under one pricing model.
type Strategy interface {
	// QuoteEntryFee returns the fee for a vehicle that just entered.
	QuoteEntryFee() int
	// QuoteTotalForDuration returns the total bill for a stay of the given
	// whole number of hours.
	QuoteTotalForDuration(hours int) int
}

// HourlyPricing charges linearly per hour, minimum one hour.
type HourlyPricing struct {
	Rate int
}

func (p HourlyPricing) QuoteEntryFee() int { return p.Rate }

func (p HourlyPricing) QuoteTotalForDuration(hours int) int {
	if hours < 1 {
		hours = 1
	}
	return hours * p.Rate
}

// BlockPricing charges a fixed fee per block of hours, minimum one block.
type BlockPricing struct {
	Fee   int
	Hours int
}

func (p BlockPricing) QuoteEntryFee() int { return p.Fee }

func (p BlockPricing) QuoteTotalForDuration(hours int) int {
	blocks := (hours + p.Hours - 1) / p.Hours
	if blocks < 1 {
		blocks = 1
	}
	return blocks * p.Fee
}

// TieredPricing charges the fee of the first rate-card tier whose duration
// covers the stay. Stays longer than the largest tier are charged the top
// tier fee plus the top tier fee again per extra started day. That overflow
// policy is intentional and covered by tests.
type TieredPricing struct {
	Tiers []models.RateTier // ascending by DurationHours
}

func (p TieredPricing) QuoteEntryFee() int { return p.Tiers[0].Fee }

func (p TieredPricing) QuoteTotalForDuration(hours int) int {
	for _, tier := range p.Tiers {
		if hours <= tier.DurationHours {
			return tier.Fee
		}
	}
	maxTier := p.Tiers[len(p.Tiers)-1]
	if maxTier.DurationHours <= 0 {
		return maxTier.Fee
	}
	hoursOver := hours - maxTier.DurationHours
	daysOver := (hoursOver + 23) / 24
	return maxTier.Fee + daysOver*maxTier.Fee
}

// StrategyFor selects the pricing strategy for a lot. It returns an error
// when the configuration for the lot's model is incomplete; callers treat
// that as a zero bill and log it rather than failing the flow.
func StrategyFor(lot models.ParkingLot, tiers []models.RateTier) (Strategy, error) {
	switch lot.PricingModel {
	case models.PricingBlock:
		if lot.BlockRateFee <= 0 || lot.BlockRateHours <= 0 {
			return nil, fmt.Errorf("block rate not configured for lot %d", lot.LotID)
		}
		return BlockPricing{Fee: lot.BlockRateFee, Hours: lot.BlockRateHours}, nil
	case models.PricingHourly:
		if lot.HourlyRate <= 0 {
			return nil, fmt.Errorf("hourly rate not configured for lot %d", lot.LotID)
		}
		return HourlyPricing{Rate: lot.HourlyRate}, nil
	case models.PricingTiered:
		if len(tiers) == 0 {
			return nil, fmt.Errorf("tiered pricing set but no rate card for lot %d", lot.LotID)
		}
		return TieredPricing{Tiers: tiers}, nil
	default:
		// Unset model falls back to TIERED like the rate card editor assumes.
		if len(tiers) == 0 {
			return nil, fmt.Errorf("no pricing model configured for lot %d", lot.LotID)
		}
		return TieredPricing{Tiers: tiers}, nil
	}
}

// ElapsedHours returns the stay duration in whole hours, rounded up.
func ElapsedHours(start, now time.Time) int {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	hours := int(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

// CalculateFee returns the non-negative amount still due for a stay: the
// total bill for the elapsed duration minus whatever was already collected
// at entry. Deterministic given (lot config, transaction, now).
func CalculateFee(lot models.ParkingLot, tiers []models.RateTier, txn models.Transaction, now time.Time) int {
	strategy, err := StrategyFor(lot, tiers)
	if err != nil {
		slog.Error("Billing CalculateFee pricing not configured", "error", err, "lotID", lot.LotID, "vehicle", txn.VehicleNumber)
		return 0
	}

	elapsed := ElapsedHours(txn.StartTime, now)
	totalBill := strategy.QuoteTotalForDuration(elapsed)

	feeToCollect := totalBill - txn.TotalFee
	if feeToCollect < 0 {
		feeToCollect = 0
	}
	slog.Debug("Billing CalculateFee computed", "lotID", lot.LotID, "vehicle", txn.VehicleNumber,
		"elapsedHours", elapsed, "totalBill", totalBill, "alreadyPaid", txn.TotalFee, "due", feeToCollect)
	return feeToCollect
}

// QuoteEntryFee returns the fee to quote for a vehicle entering now, falling
// back to DefaultEntryFee when the lot's pricing is not configured.
func QuoteEntryFee(lot models.ParkingLot, tiers []models.RateTier) int {
	strategy, err := StrategyFor(lot, tiers)
	if err != nil {
		slog.Error("Billing QuoteEntryFee pricing not configured, using default", "error", err, "lotID", lot.LotID, "default", DefaultEntryFee)
		return DefaultEntryFee
	}
	return strategy.QuoteEntryFee()
}
