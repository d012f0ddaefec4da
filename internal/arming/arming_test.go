package arming

import (
	"fmt"
	"sync"
	"testing"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStalls struct {
	lock   sync.Mutex
	drive  bool
	weapon bool
}

func (f *fakeStalls) Stalled() (bool, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.drive, f.weapon
}

func (f *fakeStalls) set(drive, weapon bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.drive = drive
	f.weapon = weapon
}

// safeFrame returns a frame with both transmitters at rest and the given switch positions.
func safeFrame(driveSwitch, weaponSwitch bool) models.ControlFrame {
	frame := models.ControlFrame{}
	for controller := 0; controller < models.NumControllers; controller++ {
		frame.Channels[controller][models.ChannelAileron] = 50
		frame.Channels[controller][models.ChannelElevation] = 50
		frame.Channels[controller][models.ChannelRudder] = 50
		frame.Channels[controller][models.ChannelThrottle] = 0
	}
	if driveSwitch {
		frame.Channels[models.DriveController][models.ChannelArmSwitch] = 100
	}
	if weaponSwitch {
		frame.Channels[models.WeaponController][models.ChannelArmSwitch] = 100
	}
	return frame
}

func allInputs() []Inputs {
	inputs := make([]Inputs, 0, 16)
	for i := 0; i < 16; i++ {
		inputs = append(inputs, Inputs{
			DriveSwitch:  i&1 != 0,
			WeaponSwitch: i&2 != 0,
			DriveArm:     i&4 != 0,
			WeaponArm:    i&8 != 0,
		})
	}
	return inputs
}

func TestAutomaticTransitionTable(t *testing.T) {
	tests := []struct {
		from     models.ArmState
		in       Inputs
		expected models.ArmState
	}{
		{models.Disarmed, Inputs{DriveSwitch: true, WeaponSwitch: true, DriveArm: true, WeaponArm: true}, models.FullyArmed},
		{models.Disarmed, Inputs{DriveSwitch: true, DriveArm: true}, models.DriveOnly},
		{models.Disarmed, Inputs{WeaponSwitch: true, WeaponArm: true}, models.WeaponOnly},
		{models.Disarmed, Inputs{DriveSwitch: true, WeaponSwitch: true}, models.Disarmed},
		{models.DriveOnly, Inputs{WeaponSwitch: true, WeaponArm: true}, models.Disarmed},
		{models.DriveOnly, Inputs{DriveSwitch: true, WeaponSwitch: true, WeaponArm: true}, models.FullyArmed},
		{models.DriveOnly, Inputs{DriveSwitch: true}, models.DriveOnly},
		{models.WeaponOnly, Inputs{DriveSwitch: true, DriveArm: true}, models.Disarmed},
		{models.WeaponOnly, Inputs{DriveSwitch: true, WeaponSwitch: true, DriveArm: true}, models.FullyArmed},
		{models.FullyArmed, Inputs{}, models.Disarmed},
		{models.FullyArmed, Inputs{DriveSwitch: true}, models.DriveOnly},
		{models.FullyArmed, Inputs{WeaponSwitch: true}, models.WeaponOnly},
		{models.FullyArmed, Inputs{DriveSwitch: true, WeaponSwitch: true}, models.FullyArmed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%+v", tt.from, tt.in), func(t *testing.T) {
			assert.Equal(t, tt.expected, AutomaticTransition(tt.from, tt.in))
		})
	}
}

func TestTransitionTablesAreTotal(t *testing.T) {
	valid := map[models.ArmState]bool{}
	for _, state := range models.AllArmStates() {
		valid[state] = true
	}

	for _, state := range models.AllArmStates() {
		for _, in := range allInputs() {
			assert.True(t, valid[AutomaticTransition(state, in)], "automatic %s %+v", state, in)
		}
		for _, drive := range []bool{false, true} {
			for _, weapon := range []bool{false, true} {
				next := FailsafeTransition(state, drive, weapon)
				assert.True(t, valid[next])
				assert.LessOrEqual(t, int(next), int(state), "failsafe only downgrades")
				if drive {
					assert.False(t, next.DriveEnabled())
				}
				if weapon {
					assert.False(t, next.WeaponEnabled())
				}
			}
		}
	}
}

func TestFailsafeTransitionTable(t *testing.T) {
	assert.Equal(t, models.Disarmed, FailsafeTransition(models.FullyArmed, true, true))
	assert.Equal(t, models.WeaponOnly, FailsafeTransition(models.FullyArmed, true, false))
	assert.Equal(t, models.DriveOnly, FailsafeTransition(models.FullyArmed, false, true))
	assert.Equal(t, models.FullyArmed, FailsafeTransition(models.FullyArmed, false, false))
	assert.Equal(t, models.Disarmed, FailsafeTransition(models.DriveOnly, true, false))
	assert.Equal(t, models.DriveOnly, FailsafeTransition(models.DriveOnly, false, true))
	assert.Equal(t, models.Disarmed, FailsafeTransition(models.WeaponOnly, false, true))
	assert.Equal(t, models.WeaponOnly, FailsafeTransition(models.WeaponOnly, true, false))
	assert.Equal(t, models.Disarmed, FailsafeTransition(models.Disarmed, true, true))
}

func TestCommandTransitions(t *testing.T) {
	tests := []struct {
		kind     models.CommandKind
		from     models.ArmState
		expected models.ArmState
		err      error
	}{
		{models.FullyDisarm, models.FullyArmed, models.Disarmed, nil},
		{models.FullyDisarm, models.Disarmed, models.Disarmed, ErrAlreadyDisarmed},
		{models.PartialDisarm, models.FullyArmed, models.WeaponOnly, nil},
		{models.PartialDisarm, models.WeaponOnly, models.DriveOnly, nil},
		{models.PartialDisarm, models.DriveOnly, models.Disarmed, nil},
		{models.PartialDisarm, models.Disarmed, models.Disarmed, ErrAlreadyDisarmed},
		{models.PartialArm, models.Disarmed, models.DriveOnly, nil},
		{models.PartialArm, models.DriveOnly, models.WeaponOnly, nil},
		{models.PartialArm, models.WeaponOnly, models.FullyArmed, nil},
		{models.PartialArm, models.FullyArmed, models.FullyArmed, ErrAlreadyArmed},
		{models.FullyArm, models.Disarmed, models.FullyArmed, nil},
		{models.FullyArm, models.FullyArmed, models.FullyArmed, ErrAlreadyArmed},
		{models.Status, models.WeaponOnly, models.WeaponOnly, nil},
	}

	for _, tt := range tests {
		next, err := CommandTransition(tt.from, tt.kind)
		assert.Equal(t, tt.expected, next, "%d from %s", tt.kind, tt.from)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err)
		} else {
			assert.NoError(t, err)
		}
	}

	_, err := CommandTransition(models.Disarmed, models.CommandKind(42))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestFullyDisarmAlwaysDisarms(t *testing.T) {
	for _, state := range models.AllArmStates() {
		next, _ := CommandTransition(state, models.FullyDisarm)
		assert.Equal(t, models.Disarmed, next)

		again, err := CommandTransition(next, models.FullyDisarm)
		assert.Equal(t, models.Disarmed, again)
		assert.ErrorIs(t, err, ErrAlreadyDisarmed)
	}
}

func TestEscalationNeedsEveryGate(t *testing.T) {
	stalls := &fakeStalls{}
	gates := []struct {
		channel int
		value   float64
	}{
		{models.ChannelThrottle, 3},
		{models.ChannelElevation, 44},
		{models.ChannelRudder, 56},
		{models.ChannelAileron, 30},
	}

	for _, gate := range gates {
		machine := NewMachine(stalls)
		frame := safeFrame(true, false)
		frame.Channels[models.DriveController][gate.channel] = gate.value
		assert.Equal(t, models.Disarmed, machine.Evaluate(frame), "channel %d at %.0f must block arming", gate.channel, gate.value)
	}

	machine := NewMachine(stalls)
	frame := safeFrame(true, false)
	frame.Channels[models.DriveController][models.ChannelThrottle] = 2
	frame.Channels[models.DriveController][models.ChannelElevation] = 45
	frame.Channels[models.DriveController][models.ChannelRudder] = 55
	assert.Equal(t, models.DriveOnly, machine.Evaluate(frame), "gate bounds are inclusive")
}

func TestSwitchAtMidpointIsOff(t *testing.T) {
	frame := safeFrame(false, false)
	frame.Channels[models.DriveController][models.ChannelArmSwitch] = 50
	in := InputsFromFrame(frame, false, false)
	assert.False(t, in.DriveSwitch)
	assert.False(t, in.DriveArm)
}

func TestMachineStalledTransmitterCannotArm(t *testing.T) {
	stalls := &fakeStalls{drive: true}
	machine := NewMachine(stalls)

	assert.Equal(t, models.Disarmed, machine.Evaluate(safeFrame(true, false)))
	assert.Equal(t, models.WeaponOnly, machine.Evaluate(safeFrame(true, true)))
}

func TestMachineApply(t *testing.T) {
	machine := NewMachine(&fakeStalls{})

	state, err := machine.Apply(models.PartialArm)
	require.NoError(t, err)
	assert.Equal(t, models.DriveOnly, state)

	state, err = machine.Apply(models.FullyArm)
	require.NoError(t, err)
	assert.Equal(t, models.FullyArmed, state)

	_, err = machine.Apply(models.FullyArm)
	assert.ErrorIs(t, err, ErrAlreadyArmed)

	state, err = machine.Apply(models.FullyDisarm)
	require.NoError(t, err)
	assert.Equal(t, models.Disarmed, state)

	last, count := machine.LastTransition()
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, models.FullyArmed, last.From)
	assert.Equal(t, models.Disarmed, last.To)
	assert.Equal(t, "command", last.Reason)
}

func TestMachineFailsafeOverridesCommand(t *testing.T) {
	stalls := &fakeStalls{weapon: true}
	machine := NewMachine(stalls)

	state, err := machine.Apply(models.FullyArm)
	assert.ErrorIs(t, err, ErrFailsafeOverride)
	assert.Equal(t, models.DriveOnly, state)
	assert.Equal(t, models.DriveOnly, machine.State())

	stalls.set(true, true)
	state, err = machine.Apply(models.PartialArm)
	assert.ErrorIs(t, err, ErrFailsafeOverride)
	assert.Equal(t, models.Disarmed, state)
}

func TestFailsafeMonitor(t *testing.T) {
	stalls := &fakeStalls{}
	machine := NewMachine(stalls)
	monitor := NewFailsafeMonitor(machine)

	_, err := machine.Apply(models.FullyArm)
	require.NoError(t, err)

	assert.Equal(t, models.FullyArmed, monitor.Check())
	assert.Equal(t, uint64(0), monitor.Trips())

	stalls.set(false, true)
	assert.Equal(t, models.DriveOnly, monitor.Check())
	assert.Equal(t, models.DriveOnly, monitor.Check())
	assert.Equal(t, uint64(1), monitor.Trips())

	stalls.set(true, true)
	assert.Equal(t, models.Disarmed, monitor.Check())
	assert.Equal(t, uint64(2), monitor.Trips())
}

func TestMachineConcurrentDisarmWins(t *testing.T) {
	stalls := &fakeStalls{}
	machine := NewMachine(stalls)
	_, err := machine.Apply(models.FullyArm)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			machine.Evaluate(safeFrame(true, true))
		}()
		go func() {
			defer wg.Done()
			machine.View(func(state models.ArmState) {
				assert.Contains(t, models.AllArmStates(), state)
			})
		}()
	}
	wg.Wait()

	_, err = machine.Apply(models.FullyDisarm)
	require.NoError(t, err)
	assert.Equal(t, models.Disarmed, machine.State())
}
