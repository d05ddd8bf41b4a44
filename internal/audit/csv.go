package audit

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVColumns is the header written by WriteCSV.
var CSVColumns = []string{
	"index", "ts", "run_id", "cus", "delta_cus", "cus_mean", "level", "reason",
	"soft_clamp", "human_escalation", "latency_ms", "profile", "J", "H", "confidence",
	"raw_severity", "raw_compassion", "raw_intervention", "raw_delay",
	"final_severity", "final_compassion", "final_intervention", "final_delay",
}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []DecisionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for i, r := range records {
		row := []string{
			strconv.Itoa(i),
			r.Timestamp,
			r.RunID,
			formatFloat(r.CUS),
			formatOptional(r.DeltaCUS),
			formatFloat(r.CUSMean),
			strconv.Itoa(int(r.Level)),
			string(r.Reason),
			strconv.FormatBool(r.SoftClamp),
			strconv.FormatBool(r.HumanEscalation),
			formatOptional(r.LatencyMS),
			r.Profile,
			formatFloat(r.J),
			formatFloat(r.H),
			formatFloat(r.Confidence),
		}
		for _, v := range r.RawAction {
			row = append(row, formatFloat(v))
		}
		for _, v := range r.FinalAction {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
