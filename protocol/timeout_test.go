package protocol

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

type firing struct {
	id  int64
	gen uint64
}

func newTestTimeouts() (*clock.Mock, *timeouts, chan firing) {
	mock := clock.NewMock()
	fired := make(chan firing, 8)
	tm := newTimeouts(mock, func(id int64, gen uint64) { fired <- firing{id, gen} })
	return mock, tm, fired
}

func requireNoFiring(t *testing.T, fired chan firing) {
	t.Helper()
	select {
	case f := <-fired:
		t.Fatalf("unexpected firing for %d", f.id)
	case <-time.After(20 * time.Millisecond):
	}
}

func requireFiring(t *testing.T, fired chan firing) firing {
	t.Helper()
	select {
	case f := <-fired:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
		return firing{}
	}
}

func TestTimeouts_ResetIsCappedByMaxTotal(t *testing.T) {
	mock, tm, fired := newTestTimeouts()
	tm.arm(1, 100*time.Millisecond, 250*time.Millisecond, true)

	for i := 0; i < 3; i++ {
		mock.Add(80 * time.Millisecond)
		requireNoFiring(t, fired)
		ok, err := tm.reset(1)
		require.NoError(t, err)
		require.True(t, ok)
	}

	mock.Add(9 * time.Millisecond)
	requireNoFiring(t, fired)
	mock.Add(time.Millisecond)

	f := requireFiring(t, fired)
	te := tm.expire(f.id, f.gen)
	require.NotNil(t, te)
	require.True(t, te.MaxTotalExceeded)
	require.Equal(t, 250*time.Millisecond, te.Elapsed)
}

func TestTimeouts_ResetAfterBreach(t *testing.T) {
	mock, tm, _ := newTestTimeouts()
	tm.arm(1, 100*time.Millisecond, 250*time.Millisecond, true)
	tm.byID[1].start = mock.Now().Add(-300 * time.Millisecond)

	ok, err := tm.reset(1)
	require.False(t, ok)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	require.True(t, te.MaxTotalExceeded)
	require.Equal(t, 300*time.Millisecond, te.Elapsed)
	require.Equal(t, int64(250), te.Data()["maxTotalTimeout"])
	_, exists := tm.byID[1]
	require.False(t, exists)
}

func TestTimeouts_ResetWithoutOptIn(t *testing.T) {
	_, tm, _ := newTestTimeouts()
	tm.arm(1, 100*time.Millisecond, 0, false)

	ok, err := tm.reset(1)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tm.reset(42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTimeouts_StaleFiringIgnored(t *testing.T) {
	mock, tm, fired := newTestTimeouts()
	tm.arm(1, 100*time.Millisecond, 0, true)
	staleGen := tm.byID[1].gen

	mock.Add(50 * time.Millisecond)
	ok, err := tm.reset(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, tm.expire(1, staleGen))

	mock.Add(100 * time.Millisecond)
	f := requireFiring(t, fired)
	te := tm.expire(f.id, f.gen)
	require.NotNil(t, te)
	require.False(t, te.MaxTotalExceeded)
	require.Equal(t, 100*time.Millisecond, te.Timeout)
}

func TestTimeouts_ClearIsIdempotent(t *testing.T) {
	mock, tm, fired := newTestTimeouts()
	tm.arm(1, 10*time.Millisecond, 0, false)
	tm.arm(2, 10*time.Millisecond, 0, false)

	tm.clear(1)
	tm.clear(1)
	tm.clearAll()
	require.Empty(t, tm.byID)

	mock.Add(time.Second)
	requireNoFiring(t, fired)
}

func TestCapDuration(t *testing.T) {
	require.Equal(t, 50*time.Millisecond, capDuration(100*time.Millisecond, 50*time.Millisecond))
	require.Equal(t, 100*time.Millisecond, capDuration(100*time.Millisecond, 0))
	require.Equal(t, 100*time.Millisecond, capDuration(100*time.Millisecond, 200*time.Millisecond))
}
