package trace

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/amiengine/internal/model"
)

// ExtractRawState returns the step 0 raw_state data as a map.
func ExtractRawState(t *Trace) (map[string]any, bool) {
	s, ok := t.Find(StepRawState, EventRawState)
	if !ok {
		return nil, false
	}
	m, ok := genericMap(s.Data)
	return m, ok
}

// ExtractSelection returns the step 6 selection data as a map.
func ExtractSelection(t *Trace) (map[string]any, bool) {
	s, ok := t.Find(StepSelection, EventSelection)
	if !ok {
		return nil, false
	}
	return genericMap(s.Data)
}

// ExtractFailSafe returns the step 5 fail_safe data as a map.
func ExtractFailSafe(t *Trace) (map[string]any, bool) {
	s, ok := t.Find(StepFailSafe, EventFailSafe)
	if !ok {
		return nil, false
	}
	return genericMap(s.Data)
}

// ExtractAction returns the selected action recorded at step 6.
func ExtractAction(t *Trace) (model.Action, bool) {
	sel, ok := ExtractSelection(t)
	if !ok {
		return model.Action{}, false
	}
	a, err := ToAction(sel["action"])
	if err != nil {
		return model.Action{}, false
	}
	return a, true
}

// ToAction converts a generic 4-element numeric array into an Action.
func ToAction(v any) (model.Action, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return model.Action{}, fmt.Errorf("trace: action must be a 4-element array")
	}
	var a model.Action
	for i, x := range arr {
		f, ok := Number(x)
		if !ok {
			return model.Action{}, fmt.Errorf("trace: action[%d] is not a number", i)
		}
		a[i] = f
	}
	return a, nil
}

// Number reads a float from a generic JSON value.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func genericMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	g, err := Generic(v)
	if err != nil {
		return nil, false
	}
	m, ok := g.(map[string]any)
	return m, ok
}
