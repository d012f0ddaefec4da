package arming

import (
	"log"
	"sync/atomic"

	"github.com/Speshl/gorrc_bot/internal/models"
)

// FailsafeMonitor runs the failsafe table on a fixed period.
type FailsafeMonitor struct {
	machine *Machine
	trips   atomic.Uint64
}

func NewFailsafeMonitor(machine *Machine) *FailsafeMonitor {
	return &FailsafeMonitor{
		machine: machine,
	}
}

// Check is one monitor cycle. It returns the state after the check.
func (f *FailsafeMonitor) Check() models.ArmState {
	before, after := f.machine.Failsafe()
	if after != before {
		f.trips.Add(1)
		log.Printf("failsafe tripped: %s --> %s\n", before, after)
	}
	return after
}

// Trips counts the checks that downgraded the state.
func (f *FailsafeMonitor) Trips() uint64 {
	return f.trips.Load()
}
