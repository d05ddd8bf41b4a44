package certify

import (
	"fmt"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/scenario"
)

// CategoryResult holds pass/fail results for one category.
type CategoryResult struct {
	Name   string                `json:"name"`
	Total  int                   `json:"total"`
	Passed int                   `json:"passed"`
	Failed int                   `json:"failed"`
	Cases  []scenario.CaseResult `json:"cases"`
}

// CertResult holds the full certification outcome.
type CertResult struct {
	Suite      string           `json:"suite"`
	Version    string           `json:"version"`
	Profile    string           `json:"profile"`
	ConfigHash string           `json:"config_hash"`
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Categories []CategoryResult `json:"categories"`
}

// Certified reports whether every case passed.
func (r *CertResult) Certified() bool {
	return r.Failed == 0 && r.Total > 0
}

// Run executes a certification suite against a profile layered on the
// config at configPath and returns results. Every case is an independent
// decision.
func Run(suite *Suite, profileName, configPath string) (*CertResult, error) {
	base, err := policy.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return RunConfig(suite, profileName, base)
}

// RunConfig is Run with an already loaded base configuration.
func RunConfig(suite *Suite, profileName string, base *policy.Config) (*CertResult, error) {
	eng, err := scenario.Engine(&scenario.Scenario{Name: suite.Name, Profile: profileName}, base)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", profileName, err)
	}

	result := &CertResult{
		Suite:      suite.Name,
		Version:    suite.Version,
		Profile:    profileName,
		ConfigHash: eng.Config().Hash(),
	}

	for _, cat := range suite.Categories {
		cr, err := runCategory(cat, eng)
		if err != nil {
			return nil, err
		}
		result.Total += cr.Total
		result.Passed += cr.Passed
		result.Failed += cr.Failed
		result.Categories = append(result.Categories, cr)
	}

	return result, nil
}

func runCategory(cat Category, eng *engine.Engine) (CategoryResult, error) {
	cr := CategoryResult{
		Name:  cat.Name,
		Total: len(cat.Cases),
	}

	for i, c := range cat.Cases {
		caseResult, err := scenario.RunCase(eng, i+1, c, nil)
		if err != nil {
			return CategoryResult{}, fmt.Errorf("category %q: %w", cat.Name, err)
		}

		if caseResult.Passed {
			cr.Passed++
		} else {
			cr.Failed++
		}

		cr.Cases = append(cr.Cases, caseResult)
	}

	return cr, nil
}
