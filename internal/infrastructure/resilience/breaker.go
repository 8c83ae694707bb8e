package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State is a breaker position
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker. Zero values take defaults.
type Settings struct {
	// MaxRequests admitted while half-open, and successes needed to close
	MaxRequests uint32
	// Interval after which closed-state counts are cleared
	Interval time.Duration
	// Timeout spent open before probing again
	Timeout time.Duration
	// ReadyToTrip decides, after a closed-state failure, whether to open
	ReadyToTrip func(counts Counts) bool

	OnStateChange func(name string, from State, to State)

	// IsSuccessful classifies a request's error. Nil means err == nil.
	IsSuccessful func(err error) bool

	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = time.Minute
	}
	if s.ReadyToTrip == nil {
		s.ReadyToTrip = func(counts Counts) bool { return counts.ConsecutiveFailures > 5 }
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool { return err == nil }
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Counts are the requests seen in the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker fails calls fast while a dependency keeps failing
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	gen    uint64 // bumped whenever counts are cleared
	counts Counts
	expiry time.Time // zero while half-open
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	settings = settings.withDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		expiry:   settings.Now().Add(settings.Interval),
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the position after applying any elapsed timeout
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.settings.Now())
	return b.state
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reports whether a call would be admitted now without reserving a slot
func (b *Breaker) Allow() error {
	_, err := b.admit(false)
	return err
}

// Do runs req if b admits it and records the outcome. A panic in req counts
// as a failure and is re-raised.
func Do[T any](b *Breaker, req func() (T, error)) (T, error) {
	var zero T
	gen, err := b.admit(true)
	if err != nil {
		return zero, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.record(gen, false)
			panic(e)
		}
	}()

	result, err := req()
	b.record(gen, b.settings.IsSuccessful(err))
	return result, err
}

func (b *Breaker) admit(reserve bool) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.settings.Now())
	switch {
	case b.state == StateOpen:
		return b.gen, ErrCircuitOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return b.gen, ErrTooManyRequests
	}
	if reserve {
		b.counts.Requests++
	}
	return b.gen, nil
}

// record applies an outcome unless the generation it was admitted in has ended
func (b *Breaker) record(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	b.advance(now)
	if gen != b.gen {
		return
	}

	if success {
		b.counts.success()
		if b.state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.moveTo(StateClosed, now)
		}
		return
	}

	b.counts.failure()
	if b.state == StateHalfOpen || b.settings.ReadyToTrip(b.counts) {
		b.moveTo(StateOpen, now)
	}
}

// advance rolls the closed interval and ends an elapsed open period
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateClosed:
		if now.After(b.expiry) {
			b.reset(now.Add(b.settings.Interval))
		}
	case StateOpen:
		if now.After(b.expiry) {
			b.moveTo(StateHalfOpen, now)
		}
	}
}

func (b *Breaker) moveTo(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state

	switch state {
	case StateClosed:
		b.reset(now.Add(b.settings.Interval))
	case StateOpen:
		b.reset(now.Add(b.settings.Timeout))
	case StateHalfOpen:
		b.reset(time.Time{})
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

func (b *Breaker) reset(expiry time.Time) {
	b.gen++
	b.counts = Counts{}
	b.expiry = expiry
}
