package labbot

import "sync"

// collector is the append-only result list shared by a phase's workers.
// Once sealed it ignores further appends.
type collector struct {
	mu      sync.Mutex
	results []UserResult
	sealed  bool
}

func newCollector(capacity int) *collector {
	return &collector{results: make([]UserResult, 0, capacity)}
}

// add appends r and reports whether it was kept.
func (c *collector) add(r UserResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	c.results = append(c.results, r)
	return true
}

func (c *collector) isSealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}

// seal stops accepting results and returns a copy of what was collected.
func (c *collector) seal() []UserResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return append([]UserResult(nil), c.results...)
}
