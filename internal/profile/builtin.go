package profile

import _ "embed"

//go:embed profiles/base.yaml
var baseYAML []byte

//go:embed profiles/production_safe.yaml
var productionSafeYAML []byte

//go:embed profiles/high_critical.yaml
var highCriticalYAML []byte

//go:embed profiles/chaos_tuning.yaml
var chaosTuningYAML []byte

//go:embed profiles/scenario_test.yaml
var scenarioTestYAML []byte

//go:embed profiles/clamp_test.yaml
var clampTestYAML []byte

// builtinProfiles maps profile names to their embedded YAML content.
var builtinProfiles = map[string][]byte{
	"base":            baseYAML,
	"production_safe": productionSafeYAML,
	"high_critical":   highCriticalYAML,
	"chaos_tuning":    chaosTuningYAML,
	"scenario_test":   scenarioTestYAML,
	"clamp_test":      clampTestYAML,
}

// Builtin returns the sorted names of the embedded profiles.
func Builtin() []string {
	return []string{"base", "chaos_tuning", "clamp_test", "high_critical", "production_safe", "scenario_test"}
}
