package policydiff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText renders the diff result as human-readable text.
func FormatText(r *DiffResult) string {
	if !r.HasChanges {
		return fmt.Sprintf("Config diff: %s → %s\n\nNo changes detected.\n", r.OldLabel, r.NewLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Config diff: %s → %s\n", r.OldLabel, r.NewLabel)

	// Changes arrive grouped by section
	current := ""
	for _, c := range r.Changes {
		if c.Section != current {
			current = c.Section
			fmt.Fprintf(&b, "\n  %s:\n", current)
		}
		fmt.Fprintf(&b, "    %-30s %s → %s", c.Field+":", c.Old, c.New)
		if c.Comment != "" {
			fmt.Fprintf(&b, "  (%s)", c.Comment)
		}
		b.WriteString("\n")
	}

	stricter, looser := r.Counts()
	fmt.Fprintf(&b, "\n%d changes: %d stricter, %d looser.\n", len(r.Changes), stricter, looser)

	return b.String()
}

// FormatJSON renders the diff result as JSON.
func FormatJSON(r *DiffResult) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diff result: %w", err)
	}
	return string(data), nil
}
