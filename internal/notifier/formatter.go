package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"RialLedger/internal/calculator"
	"RialLedger/internal/model"
	"RialLedger/internal/recorder"
)

// maxListedWarnings caps the warnings quoted in one message.
const maxListedWarnings = 5

// FormatRunSummary formats a finished run into a Telegram message.
func FormatRunSummary(evt *recorder.RunEvent) string {
	var b strings.Builder

	status := "✅"
	if evt.Err != "" {
		status = "❌"
	}
	title := "USD/IRR update"
	if evt.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(&b, "%s <b>%s</b> | %s | %s\n\n", status, title, evt.Mode, evt.FinishedAt.Format("2006-01-02 15:04"))

	if evt.Err != "" {
		fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(evt.Err))
		return b.String()
	}

	fmt.Fprintf(&b, "Pages: %d | Fetched: %d | New: %d\n", evt.Pages, evt.Fetched, evt.New)
	if evt.StopReason != "" {
		fmt.Fprintf(&b, "Stopped: %s\n", evt.StopReason)
	}
	fmt.Fprintf(&b, "Total records: %d\n", evt.BaseTotal)
	if evt.FirstDate != "" {
		fmt.Fprintf(&b, "Range: %s → %s\n", evt.FirstDate, evt.LastDate)
	}

	if n := len(evt.Warnings); n > 0 {
		fmt.Fprintf(&b, "\n⚠️ <b>Warnings (%d):</b>\n", n)
		for i, w := range evt.Warnings {
			if i == maxListedWarnings {
				fmt.Fprintf(&b, "  … and %d more\n", n-maxListedWarnings)
				break
			}
			fmt.Fprintf(&b, "  %s\n", html.EscapeString(w.String()))
		}
	}
	return b.String()
}

// FormatNewRecords lists appended records next to their derived values.
// rial and toman must be aligned by index.
func FormatNewRecords(rial, toman model.Series) string {
	if len(rial) == 0 {
		return "No new records."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>New records (%d)</b>\n", len(rial))
	for i, r := range rial {
		fmt.Fprintf(&b, "%s (%s): close %s IRR", r.Key(), r.SecondaryDate, r.Close)
		if i < len(toman) {
			fmt.Fprintf(&b, " / %s Toman", toman[i].Close)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatLastRun formats the journaled state for the /status command.
func FormatLastRun(info *recorder.RunInfo) string {
	if info == nil {
		return "No runs recorded yet."
	}
	var b strings.Builder
	b.WriteString("📦 <b>Last run</b>\n\n")
	fmt.Fprintf(&b, "Mode: %s\n", info.Mode)
	fmt.Fprintf(&b, "Finished: %s\n", info.FinishedAt.Format("2006-01-02 15:04"))
	if info.Err != "" {
		fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(info.Err))
	}
	fmt.Fprintf(&b, "New records: %d\n", info.New)
	fmt.Fprintf(&b, "Total records: %d\n", info.BaseTotal)
	if info.LastDate != "" {
		fmt.Fprintf(&b, "Latest date: %s\n", info.LastDate)
	}
	if info.Warnings > 0 {
		fmt.Fprintf(&b, "Warnings: %d\n", info.Warnings)
	}
	return b.String()
}

// FormatMarket describes the latest close of the base series.
func FormatMarket(snap calculator.MarketSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💵 <b>USD/IRR %s</b>: %s", snap.Date, snap.Close)
	if snap.HasChange {
		fmt.Fprintf(&b, " (%s, %s%%)", signed(snap.Change), signedPct(snap.ChangePct))
	}
	b.WriteString("\n")
	if snap.HasMA7 {
		fmt.Fprintf(&b, "MA7: %s\n", model.FormatGrouped(snap.MA7, 0))
	}
	if snap.HasRange {
		fmt.Fprintf(&b, "30-record range: %s – %s (position %s)\n",
			model.FormatGrouped(snap.Low30, 0), model.FormatGrouped(snap.High30, 0), snap.Position30.StringFixed(2))
	}
	return b.String()
}

func signed(d decimal.Decimal) string {
	s := model.FormatGrouped(d, 0)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func signedPct(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}
