package omnibot

import (
	"log"
	"sync"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

// Dispatcher sends mixer output to the escs the current arm state authorizes.
// Escs are commanded while the arm state is held, so a weapon esc is never driven outside
// WeaponOnly or FullyArmed.
type Dispatcher struct {
	machine *arming.Machine
	drive   Group
	weapon  Group

	failsafeEveryCycle bool

	lock       sync.Mutex
	lastDrive  bool
	lastWeapon bool
	stats      models.DispatchStats
}

func NewDispatcher(machine *arming.Machine, drive []vehicle.ESC, weapon []vehicle.ESC, failsafeEveryCycle bool) *Dispatcher {
	return &Dispatcher{
		machine:            machine,
		drive:              Group{name: "drive", escs: drive},
		weapon:             Group{name: "weapon", escs: weapon},
		failsafeEveryCycle: failsafeEveryCycle,
	}
}

// Dispatch runs one esc cycle and returns the arm state it was run under.
func (d *Dispatcher) Dispatch(output models.MixerOutput) models.ArmState {
	d.lock.Lock()
	defer d.lock.Unlock()

	var dispatched models.ArmState
	d.machine.View(func(state models.ArmState) {
		dispatched = state
		d.stats.Cycles++

		if state == models.Disarmed {
			d.failsafeGroup(&d.drive, &d.stats.DriveFailsafes)
			d.failsafeGroup(&d.weapon, &d.stats.WeaponFailsafes)
		} else {
			if state.DriveEnabled() {
				d.setGroup(&d.drive, output.Wheel[:])
			} else if d.lastDrive || d.failsafeEveryCycle {
				d.failsafeGroup(&d.drive, &d.stats.DriveFailsafes)
			}

			if state.WeaponEnabled() {
				d.setGroup(&d.weapon, output.WeaponMotor[:])
			} else if d.lastWeapon || d.failsafeEveryCycle {
				d.failsafeGroup(&d.weapon, &d.stats.WeaponFailsafes)
			}
		}

		d.lastDrive = state.DriveEnabled()
		d.lastWeapon = state.WeaponEnabled()
	})
	return dispatched
}

// FailsafeAll sends failsafe to every esc regardless of the arm state.
func (d *Dispatcher) FailsafeAll() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.failsafeGroup(&d.drive, &d.stats.DriveFailsafes)
	d.failsafeGroup(&d.weapon, &d.stats.WeaponFailsafes)
	d.lastDrive = false
	d.lastWeapon = false
}

func (d *Dispatcher) Stats() models.DispatchStats {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stats
}

func (d *Dispatcher) setGroup(group *Group, values []float64) {
	for i := range group.escs {
		if i >= len(values) {
			break
		}
		err := group.escs[i].SetThrottle(values[i])
		if err != nil {
			d.stats.Errors++
			log.Printf("failed setting %s esc %d: %s\n", group.name, i, err.Error())
		}
	}
}

func (d *Dispatcher) failsafeGroup(group *Group, counter *uint64) {
	*counter++
	for i := range group.escs {
		err := group.escs[i].Failsafe()
		if err != nil {
			d.stats.Errors++
			log.Printf("failed failsafe on %s esc %d: %s\n", group.name, i, err.Error())
		}
	}
}
