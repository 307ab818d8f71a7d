package flow

import (
	"fmt"
	"time"

	"github.com/parkeasy/parkeasy/internal/models"
)

// Window is a half-open-ish day range for report queries. Until is the last
// millisecond of the day so timestamp comparisons with <= stay inclusive.
type Window struct {
	From  time.Time
	Until time.Time
}

// ReportDay maps a report period ("today" or "yesterday") to the day it
// covers in the given location, plus the report title.
func ReportDay(period string, now time.Time, loc *time.Location) (time.Time, string) {
	day := now.In(loc)
	title := "Today's Report"
	if period == "yesterday" {
		day = day.AddDate(0, 0, -1)
		title = "Yesterday's Report"
	}
	return day, title
}

// DayWindow returns the full-day window containing the given instant.
func DayWindow(day time.Time, loc *time.Location) Window {
	day = day.In(loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	until := from.Add(24*time.Hour - time.Millisecond)
	return Window{From: from, Until: until}
}

// ReportText renders the daily collections report sent to owners.
func ReportText(title string, day time.Time, loc *time.Location, report models.DailyReport) string {
	return fmt.Sprintf(
		"*--- ParkEasy %s ---*\n*Date:* %s\n\n"+
			"*--- Collections Summary ---*\n"+
			"💰 *Total Collections:* ₹%d\n"+
			"💵 *Cash Logged:* ₹%d\n"+
			"📲 *UPI Logged:* ₹%d\n\n"+
			"*--- Vehicle Exits Summary ---*\n"+
			"🚗 *Paid Vehicle Exits:* %d\n"+
			"💳 *Pass Holder Exits:* %d\n"+
			"*Total Vehicle Exits:* %d\n\n"+
			"------------------------------------\n"+
			"_This is an automated report._",
		title, day.In(loc).Format("2 January 2006"),
		report.TotalCollections(), report.CashTotal, report.UPITotal,
		report.PaidExits(), report.PassExits, report.TotalExits,
	)
}
