package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// ErrIllegalTransition is returned when a transition is not permitted from the current state
var ErrIllegalTransition = errors.New("illegal state transition")

// Observer is notified after every transition
type Observer func(from, to types.State)

var transitions = map[types.State][]types.State{
	types.StateUninitialized: {types.StatePreloading, types.StateDestroyed},
	types.StatePreloading:    {types.StateLoaded, types.StateDestroyed},
	types.StateLoaded:        {types.StateVisible, types.StateHidden, types.StateDestroyed},
	types.StateVisible:       {types.StateHidden, types.StateDestroyed},
	types.StateHidden:        {types.StateVisible, types.StateDestroyed},
}

// CanTransition reports whether from -> to is a legal transition
func CanTransition(from, to types.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine tracks one instance's lifecycle
type Machine struct {
	mu        sync.Mutex
	state     atomic.Value // types.State
	intent    atomic.Bool  // desired visibility
	intentSet bool         // Protected by mu
	loadErr   error        // Protected by mu
	loaded    chan struct{}
	observers []Observer
}

// New creates a machine in the uninitialized state. A true visible flag
// records a pending show.
func New(visible bool, observers ...Observer) *Machine {
	m := &Machine{
		loaded:    make(chan struct{}),
		observers: observers,
		intentSet: visible,
	}
	m.state.Store(types.StateUninitialized)
	m.intent.Store(visible)
	return m
}

// State returns the current state
func (m *Machine) State() types.State {
	return m.state.Load().(types.State)
}

// IsLoaded reports whether load has completed and the instance is live
func (m *Machine) IsLoaded() bool {
	return m.State().IsLoaded()
}

// IsVisible reports the visibility. Before load it reports the intended visibility.
func (m *Machine) IsVisible() bool {
	switch s := m.State(); s {
	case types.StateDestroyed:
		return false
	case types.StateUninitialized, types.StatePreloading:
		return m.intent.Load()
	default:
		return s == types.StateVisible
	}
}

// Loaded is closed exactly once, when the load completes or the machine is destroyed
func (m *Machine) Loaded() <-chan struct{} {
	return m.loaded
}

// LoadErr returns the failure recorded by CompleteLoad, if any
func (m *Machine) LoadErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadErr
}

// BeginPreload moves uninitialized -> preloading
func (m *Machine) BeginPreload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(types.StatePreloading)
}

// CompleteLoad moves preloading -> loaded and applies any pending visibility intent.
// A non-nil err is recorded but does not prevent the transition.
func (m *Machine) CompleteLoad(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transition(types.StateLoaded); err != nil {
		return err
	}
	m.loadErr = err
	close(m.loaded)

	if !m.intentSet {
		return nil
	}
	if m.intent.Load() {
		return m.transition(types.StateVisible)
	}
	return m.transition(types.StateHidden)
}

// Show forces the visible state, or records the intent before load
func (m *Machine) Show() error {
	return m.setVisible(true)
}

// Hide forces the hidden state, or records the intent before load
func (m *Machine) Hide() error {
	return m.setVisible(false)
}

func (m *Machine) setVisible(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.State()
	if current == types.StateDestroyed {
		return types.ErrInstanceDestroyed
	}

	m.intent.Store(visible)
	m.intentSet = true

	if !current.IsLoaded() {
		return nil
	}

	target := types.StateHidden
	if visible {
		target = types.StateVisible
	}
	if current == target {
		return nil
	}
	return m.transition(target)
}

// Destroy moves to the terminal state. It returns true only on the first call.
func (m *Machine) Destroy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.State()
	if from == types.StateDestroyed {
		return false
	}
	if from == types.StateUninitialized || from == types.StatePreloading {
		close(m.loaded)
	}
	m.set(from, types.StateDestroyed)
	return true
}

// transition must be called with mu held
func (m *Machine) transition(to types.State) error {
	from := m.State()
	if from == types.StateDestroyed {
		return types.ErrInstanceDestroyed
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	m.set(from, to)
	return nil
}

func (m *Machine) set(from, to types.State) {
	m.state.Store(to)
	for _, obs := range m.observers {
		obs(from, to)
	}
}
