package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/amiengine/internal/model"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Report as a human-readable text timeline.
func FormatTimeline(r *Report) string {
	if len(r.Records) == 0 {
		return "No decisions found.\n"
	}

	var b strings.Builder

	first := formatDateTime(r.Summary.FirstTimestamp)
	last := formatTimeOnly(r.Summary.LastTimestamp)
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: %s | %s–%s UTC\n", r.RunID, first, last)
	} else {
		fmt.Fprintf(&b, "Decisions: %s–%s UTC\n", first, last)
	}
	b.WriteString(separator + "\n")

	for _, rec := range r.Records {
		tag := ""
		if rec.SoftClamp {
			tag = "  [clamped]"
		}
		if rec.HumanEscalation {
			tag += "  [human]"
		}
		fmt.Fprintf(&b, "%-10s L%d %-18s conf=%.3f cus=%.3f %-26s%s\n",
			formatTimeOnly(rec.Timestamp),
			int(rec.Level),
			strings.ToUpper(string(rec.Reason)),
			rec.Confidence,
			rec.CUS,
			formatAction(rec.FinalAction),
			tag)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(r.Summary))
	return b.String()
}

// FormatJSON renders a Report as indented JSON.
func FormatJSON(r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

func formatAction(a model.Action) string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", a[0], a[1], a[2], a[3])
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{}
	if s.Normal > 0 {
		parts = append(parts, fmt.Sprintf("%d normal", s.Normal))
	}
	if s.SoftSafe > 0 {
		parts = append(parts, fmt.Sprintf("%d soft-safe", s.SoftSafe))
	}
	if s.HardFailSafe > 0 {
		parts = append(parts, fmt.Sprintf("%d hard-fail-safe", s.HardFailSafe))
	}
	if s.FailSafe > 0 {
		parts = append(parts, fmt.Sprintf("%d fail-safe override", s.FailSafe))
	}
	if s.SoftClamps > 0 {
		parts = append(parts, fmt.Sprintf("%d clamped", s.SoftClamps))
	}
	return fmt.Sprintf("Summary: %s | Mean CUS: %.3f | Max level: %d (%s)\n",
		strings.Join(parts, ", "), s.MeanCUS, s.MaxLevel, model.LevelLabel(model.Level(s.MaxLevel)))
}
