package sim

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/amiengine/internal/model"
)

// DiffEntry represents one decision that changed under the new config.
type DiffEntry struct {
	Timestamp string       `json:"ts"`
	RunID     string       `json:"run_id"`
	OldLevel  model.Level  `json:"old_level"`
	NewLevel  model.Level  `json:"new_level"`
	OldReason model.Reason `json:"old_reason"`
	NewReason model.Reason `json:"new_reason"`
	OldAction model.Action `json:"old_action"`
	NewAction model.Action `json:"new_action"`
	OldHuman  bool         `json:"old_human_escalation"`
	NewHuman  bool         `json:"new_human_escalation"`
}

// escalated reports a stricter outcome: a higher level or a new human hand-off.
func (d DiffEntry) escalated() bool {
	return d.NewLevel > d.OldLevel || (!d.OldHuman && d.NewHuman)
}

// relaxed reports a looser outcome: a lower level or a dropped human hand-off.
func (d DiffEntry) relaxed() bool {
	return d.NewLevel < d.OldLevel || (d.OldHuman && !d.NewHuman)
}

// SimResult holds the complete simulation output.
type SimResult struct {
	Label            string      `json:"label"`
	TotalDecisions   int         `json:"total_decisions"`
	Skipped          int         `json:"skipped"`
	ChangedDecisions int         `json:"changed_decisions"`
	NewlyEscalated   int         `json:"newly_escalated"`
	NewlyRelaxed     int         `json:"newly_relaxed"`
	Changes          []DiffEntry `json:"changes"`
}

// FormatText renders the simulation result as human-readable text.
func FormatText(r *SimResult) string {
	var b strings.Builder

	label := r.Label
	if label == "" {
		label = "config"
	}
	fmt.Fprintf(&b, "Simulating %s against %d recorded decisions...\n", label, r.TotalDecisions)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "%d records skipped (no raw state).\n", r.Skipped)
	}

	if len(r.Changes) == 0 {
		b.WriteString("\nNo changes detected.\n")
		return b.String()
	}

	b.WriteString("\n")
	for _, d := range r.Changes {
		ts := d.Timestamp
		if len(ts) > 8 {
			// Extract HH:MM:SS from timestamp
			ts = ts[11:]
			if len(ts) > 8 {
				ts = ts[:8]
			}
		}
		fmt.Fprintf(&b, "  CHANGED  %s  L%d %-17s → L%d %-17s %s → %s",
			ts, d.OldLevel, d.OldReason, d.NewLevel, d.NewReason, d.OldAction, d.NewAction)
		if d.OldHuman != d.NewHuman {
			fmt.Fprintf(&b, "  human %t → %t", d.OldHuman, d.NewHuman)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%d of %d decisions changed.", r.ChangedDecisions, r.TotalDecisions)
	if r.NewlyEscalated > 0 || r.NewlyRelaxed > 0 {
		fmt.Fprintf(&b, " %d newly escalated, %d newly relaxed.", r.NewlyEscalated, r.NewlyRelaxed)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatJSON renders the simulation result as JSON.
func FormatJSON(r *SimResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sim result: %w", err)
	}
	return string(data), nil
}
