package amiengine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
	"github.com/ppiankov/amiengine/internal/trace"
)

// Client holds a configured engine. Safe for concurrent use; in stream
// mode decisions are serialized.
type Client struct {
	cfg     clientConfig
	eng     *engine.Engine
	mu      sync.Mutex
	history *engine.History
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o(&cfg)
	}

	base := policy.DefaultConfig()
	if cfg.configPath != "" {
		loaded, err := policy.LoadConfig(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("amiengine: failed to load config: %w", err)
		}
		base = loaded
	}

	resolved, err := profile.Resolve(cfg.profileName, base)
	if err != nil {
		return nil, fmt.Errorf("amiengine: failed to load profile %q: %w", cfg.profileName, err)
	}

	if len(cfg.overrides) > 0 {
		ov, err := policy.ParseOverrides(cfg.overrides)
		if err != nil {
			return nil, fmt.Errorf("amiengine: %w", err)
		}
		if resolved, err = ov.Apply(resolved); err != nil {
			return nil, fmt.Errorf("amiengine: invalid overrides: %w", err)
		}
	}

	eng, err := engine.New(resolved, engine.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("amiengine: %w", err)
	}

	c := &Client{cfg: cfg, eng: eng}
	if cfg.stream {
		c.history = &engine.History{Hysteresis: true}
	}
	return c, nil
}

// Decide evaluates one raw state.
func (c *Client) Decide(s State) (Decision, error) {
	var res *engine.Result
	var err error
	if c.cfg.stream {
		c.mu.Lock()
		res, err = c.eng.Decide(model.RawState(s), c.history)
		c.mu.Unlock()
	} else {
		res, err = c.eng.Decide(model.RawState(s), nil)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("amiengine: %w", err)
	}
	return decision(res)
}

// Replay re-decides a trace document produced by Decide and checks that the
// action, trace hash and ethics values reproduce. Stream decisions replay
// from the history recorded in their trace; the client's own is untouched.
func (c *Client) Replay(doc []byte) (Decision, error) {
	res, err := c.eng.ReplayDocument(doc, engine.StrictReplayOptions())
	if err != nil {
		return Decision{}, fmt.Errorf("amiengine: %w", err)
	}
	return decision(res)
}

// Reset clears the drift history of a stream client.
func (c *Client) Reset() {
	if !c.cfg.stream {
		return
	}
	c.mu.Lock()
	c.history = &engine.History{Hysteresis: true}
	c.mu.Unlock()
}

// ConfigHash identifies the effective thresholds.
func (c *Client) ConfigHash() string {
	return c.eng.Config().Hash()
}

func decision(res *engine.Result) (Decision, error) {
	doc, err := trace.Canonical(res.Trace)
	if err != nil {
		return Decision{}, fmt.Errorf("amiengine: encode trace: %w", err)
	}
	return toDecision(res, doc), nil
}
