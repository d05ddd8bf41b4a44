// Package action builds and reshapes candidate actions.
package action

import (
	"github.com/ppiankov/amiengine/internal/model"
)

// DefaultGrid is used when Generate is called without a resolution.
var DefaultGrid = []float64{0.0, 0.5, 1.0}

// Generate returns the Cartesian product of grid over the four action
// components, nested severity, compassion, intervention, delay, followed
// by the no-op action. The state is accepted for future pruning and is
// not consulted. Order is significant: selection ties resolve to the
// first candidate.
func Generate(_ model.State, grid []float64) []model.Action {
	if len(grid) == 0 {
		grid = DefaultGrid
	}
	n := len(grid)
	out := make([]model.Action, 0, n*n*n*n+1)
	for _, severity := range grid {
		for _, compassion := range grid {
			for _, intervention := range grid {
				for _, delay := range grid {
					out = append(out, model.Action{severity, compassion, intervention, delay})
				}
			}
		}
	}
	return append(out, model.NoOpAction)
}

// Count returns the number of candidates Generate produces for grid.
func Count(grid []float64) int {
	n := len(grid)
	if n == 0 {
		n = len(DefaultGrid)
	}
	return n*n*n*n + 1
}
