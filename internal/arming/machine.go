package arming

import (
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
)

// StallSource reports whether each transmitter has lost signal.
type StallSource interface {
	Stalled() (drive bool, weapon bool)
}

type Transition struct {
	From   models.ArmState
	To     models.ArmState
	Reason string
	At     time.Time
}

// Machine owns the arm state. Every transition samples the stall source under the write
// lock and runs its result through the failsafe table before committing.
type Machine struct {
	lock   sync.RWMutex
	state  models.ArmState
	stalls StallSource
	last   Transition
	count  uint64
}

func NewMachine(stalls StallSource) *Machine {
	return &Machine{
		state:  models.Disarmed,
		stalls: stalls,
	}
}

func (m *Machine) State() models.ArmState {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.state
}

// View runs fn with the state held stable for its whole duration.
func (m *Machine) View(fn func(state models.ArmState)) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	fn(m.state)
}

// LastTransition returns the most recent committed change and the total number of changes.
func (m *Machine) LastTransition() (Transition, uint64) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.last, m.count
}

// Evaluate applies the arm switch table to frame.
func (m *Machine) Evaluate(frame models.ControlFrame) models.ArmState {
	m.lock.Lock()
	defer m.lock.Unlock()

	driveStalled, weaponStalled := m.stalls.Stalled()
	candidate := AutomaticTransition(m.state, InputsFromFrame(frame, driveStalled, weaponStalled))
	next, _ := m.commit(candidate, driveStalled, weaponStalled, "switch")
	return next
}

// Failsafe drops authorization for stalled transmitters and returns the state before and after.
func (m *Machine) Failsafe() (models.ArmState, models.ArmState) {
	m.lock.Lock()
	defer m.lock.Unlock()

	driveStalled, weaponStalled := m.stalls.Stalled()
	before := m.state
	next, _ := m.commit(m.state, driveStalled, weaponStalled, "failsafe")
	return before, next
}

// Apply executes an operator command. When a stalled transmitter blocks the requested state
// the downgraded state is committed and ErrFailsafeOverride returned.
func (m *Machine) Apply(kind models.CommandKind) (models.ArmState, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	candidate, err := CommandTransition(m.state, kind)
	if err != nil {
		return m.state, err
	}

	driveStalled, weaponStalled := m.stalls.Stalled()
	next, overridden := m.commit(candidate, driveStalled, weaponStalled, "command")
	if overridden {
		return next, ErrFailsafeOverride
	}
	return next, nil
}

// commit must be called with the write lock held.
func (m *Machine) commit(candidate models.ArmState, driveStalled, weaponStalled bool, reason string) (models.ArmState, bool) {
	next := FailsafeTransition(candidate, driveStalled, weaponStalled)
	overridden := next != candidate
	if overridden {
		reason = reason + "+failsafe"
	}

	if next != m.state {
		log.Printf("arm state change: %s --> %s (%s)\n", m.state, next, reason)
		m.last = Transition{
			From:   m.state,
			To:     next,
			Reason: reason,
			At:     time.Now(),
		}
		m.count++
		m.state = next
	}
	return next, overridden
}
