package amiengine

import (
	"context"
	"errors"
)

// ActFunc actuates a decision.
type ActFunc func(ctx context.Context, d Decision) (any, error)

// GuardedFunc decides a state and, unless a human is required, actuates it.
type GuardedFunc func(ctx context.Context, s State) (any, error)

// Guard returns a GuardedFunc that decides before calling fn.
// If the decision needs a human, returns an *EscalationError without
// calling fn.
func (c *Client) Guard(fn ActFunc) GuardedFunc {
	return func(ctx context.Context, s State) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := c.Decide(s)
		if err != nil {
			return nil, err
		}
		if d.NeedsHuman() {
			return nil, &EscalationError{Decision: d}
		}
		return fn(ctx, d)
	}
}

// IsEscalation reports whether err is an *EscalationError.
func IsEscalation(err error) bool {
	var esc *EscalationError
	return errors.As(err, &esc)
}
