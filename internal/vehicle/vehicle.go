package vehicle

import (
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/task"
)

// ESC is a single speed controller output. Throttle values are 0-100.
type ESC interface {
	SetThrottle(float64) error
	Failsafe() error
}

type EscDriverIFace interface {
	Init() error
	Stop() error
	Esc(name string) (ESC, error)
}

// Receiver exposes the captured RC pulse widths (in microseconds) and a per channel
// liveness signal. The driver owns the stall timeout policy.
type Receiver interface {
	PulseWidth(controller, channel int) float64
	Stalled(controller, channel int) bool
}

type OrientationSensor interface {
	ReadEulerAngles() (models.Euler, error)
	ReadAccel() (models.Vector, error)
	Healthy() bool
}

// TempSensor is implemented by orientation sensors that also report temperature.
type TempSensor interface {
	ReadTemp() (int, error)
}

// Vehicle owns the hardware outputs and registers its control loops with the supervisor.
type Vehicle interface {
	Init() error
	Stop() error
	Register(supervisor *task.Supervisor)
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}

// MapUnclamped is the linear map without the output clamp.
func MapUnclamped(value, min, max, minReturn, maxReturn float64) float64 {
	return (maxReturn-minReturn)*(value-min)/(max-min) + minReturn
}

func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	} else if value > max {
		return max
	}
	return value
}

// Between is inclusive on both ends.
func Between(value, low, high float64) bool {
	return value >= low && value <= high
}
