package protocol

import (
	"time"

	"github.com/benbjohnson/clock"
)

type timeoutState struct {
	start           time.Time
	timeout         time.Duration
	maxTotal        time.Duration
	resetOnProgress bool
	timer           *clock.Timer
	gen             uint64
}

// timeouts tracks one single-shot timer per outbound request. It is not
// safe for concurrent use; callTable serializes access under its mutex.
//
// The quiet-period timer is never scheduled past the cumulative cap, so the
// cap fires on time even while progress keeps resetting the timer.
type timeouts struct {
	clock clock.Clock
	byID  map[int64]*timeoutState
	// fire is invoked from the timer goroutine. gen identifies the schedule
	// that produced the firing so stale timers can be ignored.
	fire func(id int64, gen uint64)
}

func newTimeouts(clk clock.Clock, fire func(id int64, gen uint64)) *timeouts {
	return &timeouts{clock: clk, byID: make(map[int64]*timeoutState), fire: fire}
}

func (t *timeouts) arm(id int64, timeout, maxTotal time.Duration, resetOnProgress bool) {
	t.clear(id)
	st := &timeoutState{
		start:           t.clock.Now(),
		timeout:         timeout,
		maxTotal:        maxTotal,
		resetOnProgress: resetOnProgress,
	}
	t.byID[id] = st
	t.schedule(id, st, capDuration(timeout, maxTotal))
}

// reset re-arms the quiet-period timer after progress. It reports whether a
// reset happened. When the cumulative cap has already elapsed the timer is
// cleared and a *TimeoutError is returned instead.
func (t *timeouts) reset(id int64) (bool, error) {
	st, ok := t.byID[id]
	if !ok || !st.resetOnProgress {
		return false, nil
	}

	elapsed := t.clock.Since(st.start)
	if st.maxTotal > 0 && elapsed >= st.maxTotal {
		t.clear(id)
		return false, &TimeoutError{
			RequestID:        id,
			Timeout:          st.timeout,
			MaxTotalTimeout:  st.maxTotal,
			Elapsed:          elapsed,
			MaxTotalExceeded: true,
		}
	}

	d := st.timeout
	if st.maxTotal > 0 {
		d = capDuration(d, st.maxTotal-elapsed)
	}
	t.schedule(id, st, d)
	return true, nil
}

func (t *timeouts) clear(id int64) {
	st, ok := t.byID[id]
	if !ok {
		return
	}
	st.gen++
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(t.byID, id)
}

// expire consumes a timer firing. It returns the error to settle the call with,
// or nil when the firing is stale.
func (t *timeouts) expire(id int64, gen uint64) *TimeoutError {
	st, ok := t.byID[id]
	if !ok || st.gen != gen {
		return nil
	}
	delete(t.byID, id)

	elapsed := t.clock.Since(st.start)
	return &TimeoutError{
		RequestID:        id,
		Timeout:          st.timeout,
		MaxTotalTimeout:  st.maxTotal,
		Elapsed:          elapsed,
		MaxTotalExceeded: st.maxTotal > 0 && elapsed >= st.maxTotal,
	}
}

func (t *timeouts) clearAll() {
	for id := range t.byID {
		t.clear(id)
	}
}

func (t *timeouts) schedule(id int64, st *timeoutState, d time.Duration) {
	st.gen++
	gen := st.gen
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = t.clock.AfterFunc(d, func() { t.fire(id, gen) })
}

func capDuration(d, limit time.Duration) time.Duration {
	if limit > 0 && (d <= 0 || limit < d) {
		return limit
	}
	return d
}
