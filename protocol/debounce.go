package protocol

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// debouncer coalesces parameterless notifications of the same method that are
// sent within one interval into a single message.
type debouncer struct {
	clock    clock.Clock
	interval time.Duration
	methods  map[string]struct{}

	mu      sync.Mutex
	pending map[string]struct{}
	// gen changes on reset so that flushes scheduled before a close are dropped.
	gen uint64
}

func newDebouncer(clk clock.Clock, interval time.Duration, methods []string) *debouncer {
	d := &debouncer{
		clock:    clk,
		interval: interval,
		methods:  make(map[string]struct{}, len(methods)),
		pending:  make(map[string]struct{}),
	}
	for _, m := range methods {
		d.methods[m] = struct{}{}
	}
	return d
}

func (d *debouncer) eligible(method string, hasParams, hasRelated bool) bool {
	if hasParams || hasRelated {
		return false
	}
	_, ok := d.methods[method]
	return ok
}

// schedule queues a flush for method. It reports false when one is already
// pending, in which case the call is a no-op.
func (d *debouncer) schedule(method string, flush func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[method]; ok {
		return false
	}
	d.pending[method] = struct{}{}
	gen := d.gen

	d.clock.AfterFunc(d.interval, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, method)
		d.mu.Unlock()
		flush()
	})
	return true
}

func (d *debouncer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.pending = make(map[string]struct{})
}
