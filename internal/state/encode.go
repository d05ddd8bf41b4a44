// Package state normalizes raw situational input into a fixed-shape vector.
package state

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/numeric"
)

// DefaultUnknown is substituted for missing or non-numeric fields.
const DefaultUnknown = 0.5

// Encode normalizes raw into a State using DefaultUnknown.
func Encode(raw model.RawState) model.State {
	return EncodeWith(raw, DefaultUnknown)
}

// EncodeWith normalizes raw into a State. Missing or non-numeric fields
// become unknown; numeric fields are clamped to [0,1]. Never fails.
func EncodeWith(raw model.RawState, unknown float64) model.State {
	var s model.State
	for i, name := range model.ExternalFields {
		s.Ext[i] = field(raw, name, unknown)
	}
	for i, name := range model.MoralFields {
		s.Moral[i] = field(raw, name, unknown)
	}
	return s
}

func field(raw model.RawState, name string, unknown float64) float64 {
	v, ok := raw[name]
	if !ok {
		return unknown
	}
	f, ok := ToFloat(v)
	if !ok {
		return unknown
	}
	return numeric.Clamp01(f)
}

// ToFloat converts a float-like value. NaN is reported as not numeric;
// infinities are returned as-is for the caller to clamp.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case json.Number:
		p, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Snapshot returns a copy of raw that always serializes to JSON and
// re-encodes to the same State. Non-finite floats become their string
// form; values of other types become a type-tagged string that never
// parses as a number.
func Snapshot(raw model.RawState) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = snapshotValue(v)
	}
	return out
}

func snapshotValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case json.Number:
		f, ok := ToFloat(x)
		if !ok {
			return fmt.Sprintf("%T(%v)", x, x)
		}
		if json.Valid([]byte(x)) && !math.IsInf(f, 0) {
			return x
		}
		return snapshotValue(f)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'g', -1, 64)
		}
		return x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return f
	default:
		return fmt.Sprintf("%T(%v)", x, x)
	}
}
