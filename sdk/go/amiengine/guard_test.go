package amiengine

import (
	"context"
	"errors"
	"testing"
)

func TestGuardBlocksEscalation(t *testing.T) {
	c := newTestClient(t)
	called := false
	guarded := c.Guard(func(ctx context.Context, d Decision) (any, error) {
		called = true
		return nil, nil
	})

	_, err := guarded(context.Background(), fairState())
	var esc *EscalationError
	if !errors.As(err, &esc) {
		t.Fatalf("expected *EscalationError, got %T: %v", err, err)
	}
	if !IsEscalation(err) {
		t.Error("IsEscalation should match")
	}
	if esc.Decision.Level != HardFailSafe {
		t.Errorf("expected level 2, got %d", esc.Decision.Level)
	}
	if called {
		t.Error("function should not be called when a human is required")
	}
}

func TestGuardActuatesSoftSafe(t *testing.T) {
	c := newTestClient(t, WithProfile("scenario_test"))
	guarded := c.Guard(func(ctx context.Context, d Decision) (any, error) {
		return d.Action, nil
	})

	out, err := guarded(context.Background(), fairState())
	if err != nil {
		t.Fatalf("expected actuation, got %v", err)
	}
	action, ok := out.([4]float64)
	if !ok || action[1] != 1 {
		t.Errorf("unexpected result %v", out)
	}
}

func TestGuardPropagatesError(t *testing.T) {
	c := newTestClient(t, WithProfile("scenario_test"))
	boom := errors.New("boom")
	guarded := c.Guard(func(ctx context.Context, d Decision) (any, error) {
		return nil, boom
	})
	if _, err := guarded(context.Background(), fairState()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestGuardCanceledContext(t *testing.T) {
	c := newTestClient(t, WithProfile("scenario_test"))
	guarded := c.Guard(func(ctx context.Context, d Decision) (any, error) {
		t.Fatal("should not be called")
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := guarded(ctx, fairState()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
