package sim

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatMonteCarloText renders a Monte Carlo report as human-readable text.
func FormatMonteCarloText(r *MonteCarloReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Monte Carlo: %d random states, seed %d\n\n", r.N, r.Seed)
	fmt.Fprintf(&b, "  fail-safe          %d (%.1f%%)\n", r.FailSafe, 100*r.FailSafeRate)
	if r.NoValidFallback > 0 {
		fmt.Fprintf(&b, "  no valid action    %d\n", r.NoValidFallback)
	}
	fmt.Fprintf(&b, "  levels             L0 %d  L1 %d  L2 %d\n", r.Levels[0], r.Levels[1], r.Levels[2])
	fmt.Fprintf(&b, "  soft clamps        %d\n", r.SoftClamps)
	fmt.Fprintf(&b, "  human escalations  %d\n\n", r.HumanEscalations)

	for _, row := range []struct {
		name string
		s    Stat
	}{
		{"W", r.W}, {"J", r.J}, {"H", r.H}, {"C", r.C},
		{"confidence", r.Confidence},
		{"CUS", r.CUS},
		{"divergence", r.Divergence},
		{"clamp distortion", r.ClampDistortion},
		{"delta confidence", r.DeltaConfidence},
	} {
		if row.s.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-18s mean %.4f  std %.4f  (n=%d)\n", row.name, row.s.Mean, row.s.Std, row.s.Count)
	}

	b.WriteString("\n  confidence histogram  ")
	writeHistogram(&b, r.ConfidenceHistogram)
	b.WriteString("  CUS histogram         ")
	writeHistogram(&b, r.CUSHistogram)

	return b.String()
}

func writeHistogram(b *strings.Builder, h [HistogramBins]int) {
	parts := make([]string, len(h))
	for i, n := range h {
		parts[i] = fmt.Sprint(n)
	}
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n")
}

// FormatChaosText renders a chaos report, one line per configuration.
func FormatChaosText(r *ChaosReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Chaos: %d configurations\n\n", len(r.Runs))
	for _, run := range r.Runs {
		status := "OK  "
		if len(run.Violations) > 0 {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  %s  %-60s fail-safe %5.1f%%  clamps %d (%d in envelope)\n",
			status, formatOverrides(run.Overrides), 100*run.FailSafeRate, run.SoftClamps, run.InEnvelope)
		for _, v := range run.Violations {
			fmt.Fprintf(&b, "        state %d: %s: %s\n", v.Index, v.Rule, v.Detail)
		}
	}

	if r.OK() {
		b.WriteString("\nAll invariants held.\n")
	} else {
		fmt.Fprintf(&b, "\n%d invariant violations.\n", r.Violations)
	}
	return b.String()
}

func formatOverrides(o map[string]float64) string {
	if len(o) == 0 {
		return "(base)"
	}
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, o[k])
	}
	return strings.Join(parts, " ")
}

// FormatReportJSON renders any simulation report as indented JSON.
func FormatReportJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}
