package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/amiengine/internal/model"
)

// defaultTTL is the default time a decision waits for human review.
const defaultTTL = 24 * time.Hour

// Gateway manages human review of escalated decisions in the outbox.
// Approved decisions move to state/approved, rejected and expired ones to
// state/rejected.
type Gateway struct {
	outbox   string
	stateDir string
	ttl      time.Duration
	mu       sync.Mutex
}

// PendingReview summarizes an escalated decision for the review queue.
type PendingReview struct {
	ID              string       `json:"id"`
	RunID           string       `json:"run_id,omitempty"`
	Reason          model.Reason `json:"reason"`
	Level           model.Level  `json:"level"`
	HumanEscalation bool         `json:"human_escalation"`
	Action          model.Action `json:"action"`
	CreatedAt       time.Time    `json:"created_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// NewGateway creates a review gateway.
func NewGateway(outbox, stateDir string, ttl time.Duration) *Gateway {
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Gateway{
		outbox:   outbox,
		stateDir: stateDir,
		ttl:      ttl,
	}
}

// Pending returns all results in the outbox with status "pending_review".
func (g *Gateway) Pending() ([]PendingReview, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := os.ReadDir(g.outbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var pending []PendingReview
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		r, err := g.readResult(filepath.Join(g.outbox, e.Name()))
		if err != nil || r.Status != ResultPendingReview {
			continue
		}

		info, _ := e.Info()
		createdAt := r.CompletedAt
		if info != nil {
			createdAt = info.ModTime()
		}

		pr := PendingReview{
			ID:        r.ID,
			RunID:     r.RunID,
			CreatedAt: createdAt,
			ExpiresAt: createdAt.Add(g.ttl),
		}
		if d := r.Decision; d != nil {
			pr.Reason = d.Reason
			pr.Level = d.Level
			pr.HumanEscalation = d.HumanEscalation
			pr.Action = d.Action
		}
		pending = append(pending, pr)
	}
	return pending, nil
}

// Approve moves a pending decision from outbox to state/approved/.
func (g *Gateway) Approve(id string) error {
	if err := validateReviewID(id); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	src := filepath.Join(g.outbox, id+".json")
	r, err := g.readResult(src)
	if err != nil {
		return fmt.Errorf("decision %q not found in outbox: %w", id, err)
	}
	if r.Status != ResultPendingReview {
		return fmt.Errorf("decision %q status is %q, not %s", id, r.Status, ResultPendingReview)
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if time.Since(info.ModTime()) > g.ttl {
		return fmt.Errorf("decision %q has expired", id)
	}

	dst := filepath.Join(g.stateDir, "approved", id+".json")
	return moveFile(src, dst)
}

// Reject moves a pending decision from outbox to state/rejected/ with a reason.
func (g *Gateway) Reject(id, reason string) error {
	if err := validateReviewID(id); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	src := filepath.Join(g.outbox, id+".json")
	r, err := g.readResult(src)
	if err != nil {
		return fmt.Errorf("decision %q not found in outbox: %w", id, err)
	}
	if r.Status != ResultPendingReview {
		return fmt.Errorf("decision %q status is %q, not %s", id, r.Status, ResultPendingReview)
	}

	return g.reject(src, r, reason)
}

// CheckExpired scans pending decisions and moves expired ones to rejected.
// Returns the number of decisions expired.
func (g *Gateway) CheckExpired() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := os.ReadDir(g.outbox)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var expired int
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		src := filepath.Join(g.outbox, e.Name())
		r, err := g.readResult(src)
		if err != nil || r.Status != ResultPendingReview {
			continue
		}

		info, err := e.Info()
		if err != nil || time.Since(info.ModTime()) <= g.ttl {
			continue
		}

		if err := g.reject(src, r, "expired"); err != nil {
			continue
		}
		expired++
	}
	return expired, nil
}

// reject writes r with status rejected to state/rejected and removes src.
func (g *Gateway) reject(src string, r *Result, reason string) error {
	r.Status = ResultRejected
	r.Error = reason

	dst := filepath.Join(g.stateDir, "rejected", r.ID+".json")
	tmpPath := dst + ".tmp"
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// readResult reads and parses a result JSON file.
func (g *Gateway) readResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// validateReviewID checks for path traversal and invalid characters.
func validateReviewID(id string) error {
	if id == "" {
		return fmt.Errorf("decision ID is required")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("decision ID must not contain '..'")
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("decision ID contains invalid characters")
	}
	return nil
}
