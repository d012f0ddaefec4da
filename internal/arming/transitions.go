package arming

import (
	"errors"
	"fmt"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

var (
	ErrAlreadyDisarmed  = errors.New("already disarmed")
	ErrAlreadyArmed     = errors.New("already armed")
	ErrFailsafeOverride = errors.New("overridden by failsafe")
	ErrUnknownCommand   = errors.New("unknown arming command")
)

const (
	maxArmThrottle = 2.0
	minArmCenter   = 45.0
	maxArmCenter   = 55.0
)

// Inputs are the switch and gate conditions computed from one control frame.
type Inputs struct {
	DriveSwitch  bool
	WeaponSwitch bool
	DriveArm     bool
	WeaponArm    bool
}

func InputsFromFrame(frame models.ControlFrame, driveStalled, weaponStalled bool) Inputs {
	in := Inputs{
		DriveSwitch:  frame.Value(models.DriveController, models.ChannelArmSwitch) > models.SwitchMidpoint,
		WeaponSwitch: frame.Value(models.WeaponController, models.ChannelArmSwitch) > models.SwitchMidpoint,
	}
	in.DriveArm = in.DriveSwitch && !driveStalled && SticksSafe(frame, models.DriveController)
	in.WeaponArm = in.WeaponSwitch && !weaponStalled && SticksSafe(frame, models.WeaponController)
	return in
}

// SticksSafe reports whether a transmitter has its throttle down and every other stick centered.
func SticksSafe(frame models.ControlFrame, controller int) bool {
	return vehicle.Between(frame.Value(controller, models.ChannelThrottle), models.MinControl, maxArmThrottle) &&
		vehicle.Between(frame.Value(controller, models.ChannelElevation), minArmCenter, maxArmCenter) &&
		vehicle.Between(frame.Value(controller, models.ChannelRudder), minArmCenter, maxArmCenter) &&
		vehicle.Between(frame.Value(controller, models.ChannelAileron), minArmCenter, maxArmCenter)
}

// AutomaticTransition applies the arm switch table. Pairs not in the table keep the state.
func AutomaticTransition(state models.ArmState, in Inputs) models.ArmState {
	switch state {
	case models.Disarmed:
		if in.DriveArm && in.WeaponArm {
			return models.FullyArmed
		} else if in.DriveArm {
			return models.DriveOnly
		} else if in.WeaponArm {
			return models.WeaponOnly
		}
	case models.DriveOnly:
		if !in.DriveSwitch {
			return models.Disarmed
		} else if in.WeaponArm {
			return models.FullyArmed
		}
	case models.WeaponOnly:
		if !in.WeaponSwitch {
			return models.Disarmed
		} else if in.DriveArm {
			return models.FullyArmed
		}
	case models.FullyArmed:
		// only downgrades from here, stick positions do not matter
		if !in.DriveSwitch && !in.WeaponSwitch {
			return models.Disarmed
		} else if in.DriveSwitch && !in.WeaponSwitch {
			return models.DriveOnly
		} else if !in.DriveSwitch && in.WeaponSwitch {
			return models.WeaponOnly
		}
	}
	return state
}

// FailsafeTransition removes authorization from every stalled subsystem.
func FailsafeTransition(state models.ArmState, driveStalled, weaponStalled bool) models.ArmState {
	switch state {
	case models.FullyArmed:
		if driveStalled && weaponStalled {
			return models.Disarmed
		} else if driveStalled {
			return models.WeaponOnly
		} else if weaponStalled {
			return models.DriveOnly
		}
	case models.DriveOnly:
		if driveStalled {
			return models.Disarmed
		}
	case models.WeaponOnly:
		if weaponStalled {
			return models.Disarmed
		}
	}
	return state
}

// CommandTransition returns the state an operator command leads to.
func CommandTransition(state models.ArmState, kind models.CommandKind) (models.ArmState, error) {
	switch kind {
	case models.FullyDisarm:
		if state == models.Disarmed {
			return state, ErrAlreadyDisarmed
		}
		return models.Disarmed, nil
	case models.PartialDisarm:
		switch state {
		case models.FullyArmed:
			return models.WeaponOnly, nil
		case models.WeaponOnly:
			return models.DriveOnly, nil
		case models.DriveOnly:
			return models.Disarmed, nil
		default:
			return state, ErrAlreadyDisarmed
		}
	case models.PartialArm:
		switch state {
		case models.Disarmed:
			return models.DriveOnly, nil
		case models.DriveOnly:
			return models.WeaponOnly, nil
		case models.WeaponOnly:
			return models.FullyArmed, nil
		default:
			return state, ErrAlreadyArmed
		}
	case models.FullyArm:
		if state == models.FullyArmed {
			return state, ErrAlreadyArmed
		}
		return models.FullyArmed, nil
	case models.Status:
		return state, nil
	default:
		return state, fmt.Errorf("%w: %d", ErrUnknownCommand, kind)
	}
}
