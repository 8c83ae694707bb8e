package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var errFetch = errors.New("connection reset")

func fail() (string, error)    { return "", errFetch }
func succeed() (string, error) { return "ok", nil }

func tripAfter(n uint32) func(Counts) bool {
	return func(counts Counts) bool { return counts.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success, false = failure
		advance       time.Duration
		expectedState State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, expectedState: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false, false}, expectedState: StateOpen},
		{name: "success resets the streak", requests: []bool{false, false, true, false, false}, expectedState: StateClosed},
		{name: "half-open after timeout", requests: []bool{false, false, false}, advance: 31 * time.Second, expectedState: StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
			breaker := New("origin", Settings{
				MaxRequests: 1,
				Interval:    time.Minute,
				Timeout:     30 * time.Second,
				ReadyToTrip: tripAfter(3),
				Now:         clock.Now,
			})

			for _, ok := range tt.requests {
				req := fail
				if ok {
					req = succeed
				}
				_, _ = Do(breaker, req)
			}
			clock.Advance(tt.advance)

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("origin", Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute})

	v, err := Do(breaker, succeed)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Do(breaker, fail)
	assert.ErrorIs(t, err, errFetch)

	counts := breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerRejectsWhenOpen(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	breaker := New("origin", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(2),
		Now:         clock.Now,
	})

	_, _ = Do(breaker, fail)
	_, _ = Do(breaker, fail)
	require.Equal(t, StateOpen, breaker.State())
	assert.ErrorIs(t, breaker.Allow(), ErrCircuitOpen)

	called := false
	_, err := Do(breaker, func() (string, error) { called = true; return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock.Advance(2 * time.Second)
	require.NoError(t, breaker.Allow())

	for i := 0; i < 2; i++ {
		_, err := Do(breaker, succeed)
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	breaker := New("origin", Settings{
		MaxRequests: 1,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(1),
		Now:         clock.Now,
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = Do(breaker, fail)
	clock.Advance(2 * time.Second)
	_, _ = Do(breaker, fail)

	assert.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->open"}, transitions)
}

func TestBreakerIsSuccessful(t *testing.T) {
	breaker := New("origin", Settings{
		ReadyToTrip: tripAfter(1),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	_, err := Do(breaker, func() (string, error) { return "", context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State(), "caller cancellation is not an origin failure")

	_, _ = Do(breaker, fail)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerIgnoresStaleOutcomes(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	breaker := New("origin", Settings{
		Interval:    time.Minute,
		ReadyToTrip: tripAfter(1),
		Now:         clock.Now,
	})

	_, err := Do(breaker, func() (string, error) {
		clock.Advance(2 * time.Minute)
		return "", errFetch
	})
	assert.ErrorIs(t, err, errFetch)
	assert.Equal(t, StateClosed, breaker.State(), "failure admitted in an expired interval")
	assert.Equal(t, Counts{}, breaker.Counts())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("origin", Settings{ReadyToTrip: tripAfter(1)})
	assert.Panics(t, func() {
		_, _ = Do(breaker, func() (string, error) { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestGroupIsolatesKeys(t *testing.T) {
	g := NewGroup("fetch", Settings{ReadyToTrip: tripAfter(1)})

	_, _ = Do(g.Get("a.test"), fail)
	_, err := Do(g.Get("b.test"), succeed)
	require.NoError(t, err)

	assert.Same(t, g.Get("a.test"), g.Get("a.test"))
	assert.Equal(t, "fetch:a.test", g.Get("a.test").Name())
	assert.Equal(t, map[string]State{"a.test": StateOpen, "b.test": StateClosed}, g.States())
}
