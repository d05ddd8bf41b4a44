// Package amiengine embeds the decision engine in Go programs. A Client
// decides raw states, replays recorded traces, and guards functions that
// actuate a decision so that nothing runs when a human is required.
//
// Usage:
//
//	c, err := amiengine.New(amiengine.WithProfile("production_safe"))
//	act := c.Guard(func(ctx context.Context, d amiengine.Decision) (any, error) {
//	    return dispatch(ctx, d.Action)
//	})
//	out, err := act(ctx, amiengine.State{"risk": 0.4, "justice": 0.9})
//	var esc *amiengine.EscalationError
//	if errors.As(err, &esc) {
//	    // hand off to a human with esc.Decision.TraceHash
//	}
//
// The SDK links directly against internal packages. External users import
// github.com/ppiankov/amiengine/sdk/go/amiengine.
package amiengine
