package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// HashPrefix marks the digest algorithm in hash strings.
const HashPrefix = "sha256:"

// Canonical returns the byte-stable form of t: object keys sorted, no
// insignificant whitespace, non-ASCII left unescaped, and numbers written
// with the digits they were first serialized with. A trace read back with
// Parse canonicalizes to the same bytes as the trace that produced it.
func Canonical(t *Trace) ([]byte, error) {
	return CanonicalValue(t)
}

// CanonicalValue canonicalizes any JSON-serializable value.
func CanonicalValue(v any) ([]byte, error) {
	generic, err := Generic(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("trace: encode canonical form: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Generic converts v into maps, slices, strings, bools, nil and
// json.Number, the shape Parse produces.
func Generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("trace: marshal: %w", err)
	}
	return decodeGeneric(data)
}

func decodeGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("trace: decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trace: trailing data after document")
	}
	return out, nil
}

// Hash returns "sha256:<hex>" over the canonical bytes of t.
func Hash(t *Trace) (string, error) {
	data, err := Canonical(t)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes returns "sha256:<hex>" of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(h[:])
}

// Parse reads a trace document: either {"version":..,"steps":[..]} with an
// optional "history" or a legacy bare array of steps. Step numbers are
// kept as json.Number.
func Parse(data []byte) (*Trace, error) {
	doc, err := decodeGeneric(data)
	if err != nil {
		return nil, err
	}
	switch v := doc.(type) {
	case []any:
		steps, err := parseSteps(v)
		if err != nil {
			return nil, err
		}
		return &Trace{Steps: steps, Legacy: true}, nil
	case map[string]any:
		raw, ok := v["steps"].([]any)
		if !ok {
			return nil, fmt.Errorf("trace: document has no steps array")
		}
		steps, err := parseSteps(raw)
		if err != nil {
			return nil, err
		}
		version, _ := v["version"].(string)
		t := &Trace{Version: version, Steps: steps}
		if h, ok := v["history"]; ok && h != nil {
			if t.History, err = parseHistory(h); err != nil {
				return nil, err
			}
		}
		return t, nil
	default:
		return nil, fmt.Errorf("trace: expected object or array, got %T", doc)
	}
}

func parseHistory(v any) (*History, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("trace: history: %w", err)
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("trace: history: %w", err)
	}
	if h.CUSHistory == nil {
		h.CUSHistory = []float64{}
	}
	return &h, nil
}

func parseSteps(raw []any) ([]Step, error) {
	steps := make([]Step, 0, len(raw))
	for i, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("trace: step %d is not an object", i)
		}
		num, ok := m["step"].(json.Number)
		if !ok {
			return nil, fmt.Errorf("trace: step %d has no numeric step field", i)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("trace: step %d: step is not an integer: %w", i, err)
		}
		et, ok := m["event_type"].(string)
		if !ok {
			return nil, fmt.Errorf("trace: step %d has no event_type", i)
		}
		steps = append(steps, Step{Step: int(n), EventType: et, Data: m["data"]})
	}
	return steps, nil
}
