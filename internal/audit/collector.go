package audit

import "sync"

// DefaultCollectorSize is the ring buffer capacity used when none is given.
const DefaultCollectorSize = 1000

// Collector is a bounded in-memory ring buffer of recent records,
// optionally mirrored to a Log. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	buf   []DecisionRecord
	start int
	n     int
	log   *Log
}

// NewCollector returns a collector holding at most size records. A nil
// log keeps records in memory only.
func NewCollector(size int, log *Log) *Collector {
	if size < 1 {
		size = DefaultCollectorSize
	}
	return &Collector{buf: make([]DecisionRecord, size), log: log}
}

// Push adds rec, evicting the oldest record when full. When a log is
// attached the record is appended to it first.
func (c *Collector) Push(rec DecisionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log != nil {
		if err := c.log.Record(rec); err != nil {
			return err
		}
	}
	if c.n < len(c.buf) {
		c.buf[(c.start+c.n)%len(c.buf)] = rec
		c.n++
		return nil
	}
	c.buf[c.start] = rec
	c.start = (c.start + 1) % len(c.buf)
	return nil
}

// Recent returns up to n most recent records, oldest first.
func (c *Collector) Recent(n int) []DecisionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil
	}
	n = min(n, c.n)
	out := make([]DecisionRecord, n)
	for i := range n {
		out[i] = c.buf[(c.start+c.n-n+i)%len(c.buf)]
	}
	return out
}

// All returns every buffered record, oldest first.
func (c *Collector) All() []DecisionRecord {
	return c.Recent(c.Len())
}

// Len returns the number of buffered records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
