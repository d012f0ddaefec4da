package omnibot

import (
	"math"
	"sync"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

// Mixer turns the drive transmitter sticks into three omni wheel speeds. Wheel speeds
// accumulate across cycles, so the mixer keeps the previous output.
type Mixer struct {
	lock   sync.RWMutex
	output models.MixerOutput
}

func NewMixer() *Mixer {
	m := &Mixer{}
	for i := range m.output.Wheel {
		m.output.Wheel[i] = models.CenterControl
	}
	return m
}

func (m *Mixer) Mix(frame models.ControlFrame) models.MixerOutput {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.output.Wheel = MixWheels(m.output.Wheel,
		frame.Value(models.DriveController, models.ChannelAileron),
		frame.Value(models.DriveController, models.ChannelElevation),
		frame.Value(models.DriveController, models.ChannelRudder),
	)

	weapon := frame.Value(models.WeaponController, models.ChannelThrottle)
	for i := range m.output.WeaponMotor {
		m.output.WeaponMotor[i] = weapon
	}
	return m.output
}

func (m *Mixer) Output() models.MixerOutput {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.output
}

// MixWheels computes the next wheel speeds from the previous ones and the stick positions.
func MixWheels(previous [models.NumWheels]float64, aileron, elevation, rudder float64) [models.NumWheels]float64 {
	wheels := previous

	x := aileron - models.CenterControl
	y := elevation - models.CenterControl
	theta := math.Atan2(x, y)
	magnitude := math.Sqrt(x*x + y*y)

	if magnitude > Deadzone {
		vx := magnitude * math.Sin(theta)
		vy := magnitude * math.Cos(theta)

		speeds := [models.NumWheels]float64{
			-vx,
			0.5*vx - sqrt3o2*vy,
			0.5*vx + sqrt3o2*vy,
		}
		for i := range wheels {
			wheels[i] += vehicle.MapUnclamped(speeds[i], -MaxWheelVector, MaxWheelVector, models.MinControl, models.MaxControl) - models.CenterControl
		}
	} else {
		for i := range wheels {
			wheels[i] = models.CenterControl
		}
	}

	// rotation
	for i := range wheels {
		wheels[i] += rudder - models.CenterControl
	}

	for i := range wheels {
		wheels[i] = vehicle.Clamp(wheels[i], models.MinControl, models.MaxControl)
	}
	return wheels
}
