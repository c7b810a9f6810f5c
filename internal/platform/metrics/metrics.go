package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps process-local counters for HTTP traffic and workflow
// transitions. It implements approval.Recorder.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	clientErrors    uint64
	totalDurationMs uint64
	leaveUsed       uint64
	leaveRestored   uint64

	mu          sync.Mutex
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	} else if status >= 400 {
		atomic.AddUint64(&c.clientErrors, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) IncTransition(name string) {
	c.mu.Lock()
	c.transitions[name]++
	c.mu.Unlock()
}

func (c *Collector) IncLeaveUsed() {
	atomic.AddUint64(&c.leaveUsed, 1)
}

func (c *Collector) IncLeaveRestored() {
	atomic.AddUint64(&c.leaveRestored, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	clientErrs := atomic.LoadUint64(&c.clientErrors)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]uint64, len(c.transitions))
	for k, v := range c.transitions {
		transitions[k] = v
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":      total,
		"errorsTotal":        errs,
		"clientErrorsTotal":  clientErrs,
		"avgDurationMs":      avg,
		"totalDurationMs":    totalMs,
		"transitions":        transitions,
		"leaveUsedTotal":     atomic.LoadUint64(&c.leaveUsed),
		"leaveRestoredTotal": atomic.LoadUint64(&c.leaveRestored),
	}
}
