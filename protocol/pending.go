package protocol

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ggoodman/mcp-protocol-go/mcp"
)

// ProgressFunc receives progress updates for an outbound request. It runs
// on the transport's delivery goroutine and must not block.
type ProgressFunc func(mcp.ProgressNotificationParams)

type pendingCall struct {
	id         int64
	method     string
	onProgress ProgressFunc
	// done has capacity one and receives exactly one value: the goroutine
	// that removes the call from the table is the only sender.
	done chan callResult
}

type callResult struct {
	result json.RawMessage
	err    error
}

// callTable is the pending-call table together with its timeouts. A single
// mutex guards both.
type callTable struct {
	mu       sync.Mutex
	nextID   int64
	calls    map[int64]*pendingCall
	timeouts *timeouts

	// onExpire runs outside the lock after a call timed out.
	onExpire func(call *pendingCall, err *TimeoutError)
}

func newCallTable(clk clock.Clock, onExpire func(*pendingCall, *TimeoutError)) *callTable {
	t := &callTable{
		calls:    make(map[int64]*pendingCall),
		onExpire: onExpire,
	}
	t.timeouts = newTimeouts(clk, t.expire)
	return t
}

// register allocates the next id and records a pending call for it.
func (t *callTable) register(method string, onProgress ProgressFunc) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	call := &pendingCall{
		id:         t.nextID,
		method:     method,
		onProgress: onProgress,
		done:       make(chan callResult, 1),
	}
	t.calls[call.id] = call
	return call
}

func (t *callTable) arm(id int64, timeout, maxTotal time.Duration, resetOnProgress bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[id]; !ok {
		return
	}
	t.timeouts.arm(id, timeout, maxTotal, resetOnProgress)
}

// remove forgets the call without settling it. It returns nil when the call
// was already removed by someone else.
func (t *callTable) remove(id int64) *pendingCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(id)
}

func (t *callTable) removeLocked(id int64) *pendingCall {
	call, ok := t.calls[id]
	if !ok {
		return nil
	}
	delete(t.calls, id)
	t.timeouts.clear(id)
	return call
}

// settle removes the call and delivers res to its waiter. It reports false
// when no call with that id is pending.
func (t *callTable) settle(id int64, res callResult) bool {
	call := t.remove(id)
	if call == nil {
		return false
	}
	call.done <- res
	return true
}

// progress looks up the call that asked for progress under id and resets its
// timer when the call asked for that. It returns nil for unknown tokens. A
// cumulative timeout breach settles the call with the timeout error, which
// is also returned.
func (t *callTable) progress(id int64) (*pendingCall, error) {
	t.mu.Lock()
	call, ok := t.calls[id]
	if !ok || call.onProgress == nil {
		t.mu.Unlock()
		return nil, nil
	}
	_, err := t.timeouts.reset(id)
	if err != nil {
		t.removeLocked(id)
	}
	t.mu.Unlock()

	if err != nil {
		te := err.(*TimeoutError)
		te.Method = call.method
		call.done <- callResult{err: te}
		return call, te
	}
	return call, nil
}

func (t *callTable) expire(id int64, gen uint64) {
	t.mu.Lock()
	te := t.timeouts.expire(id, gen)
	if te == nil {
		t.mu.Unlock()
		return
	}
	call, ok := t.calls[id]
	if ok {
		delete(t.calls, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	te.Method = call.method
	call.done <- callResult{err: te}
	if t.onExpire != nil {
		t.onExpire(call, te)
	}
}

// closeAll rejects every pending call with err and clears all timers.
func (t *callTable) closeAll(err error) {
	t.mu.Lock()
	calls := t.calls
	t.calls = make(map[int64]*pendingCall)
	t.timeouts.clearAll()
	t.mu.Unlock()

	for _, call := range calls {
		call.done <- callResult{err: err}
	}
}

func (t *callTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
