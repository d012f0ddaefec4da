package orientation

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

const (
	TaskName = "orientation"

	// the sensor reads about -60 degrees of roll when upside down
	invertedRollMin = -90.0
	invertedRollMax = -30.0
)

var ErrSensorFault = errors.New("orientation sensor fault")

func IsInverted(roll float64) bool {
	return roll > invertedRollMin && roll < invertedRollMax
}

// ParseMode reads an override setting. Anything unrecognised means no override.
func ParseMode(mode string) models.OrientationMode {
	switch models.OrientationMode(strings.ToLower(strings.TrimSpace(mode))) {
	case models.OrientationUpright:
		return models.OrientationUpright
	case models.OrientationInverted:
		return models.OrientationInverted
	default:
		return models.OrientationUnknown
	}
}

// Tracker keeps the latest good orientation. On a sensor fault the last good values are
// kept so control does not flip.
type Tracker struct {
	sensor vehicle.OrientationSensor

	lock    sync.RWMutex
	current models.Orientation
	faulted bool
}

func NewTracker(sensor vehicle.OrientationSensor, override models.OrientationMode) *Tracker {
	return &Tracker{
		sensor: sensor,
		current: models.Orientation{
			Detected: models.OrientationUnknown,
			Override: override,
		},
	}
}

func (t *Tracker) Orientation() models.Orientation {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.current
}

func (t *Tracker) SetOverride(mode models.OrientationMode) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.current.Override = mode
}

// Inverted uses the override when one is set.
func (t *Tracker) Inverted() bool {
	t.lock.RLock()
	defer t.lock.RUnlock()
	switch t.current.Override {
	case models.OrientationInverted:
		return true
	case models.OrientationUpright:
		return false
	default:
		return t.current.Inverted
	}
}

// Update reads the sensor once.
func (t *Tracker) Update() error {
	if t.sensor == nil {
		return fmt.Errorf("%w: no sensor", ErrSensorFault)
	}

	if !t.sensor.Healthy() {
		return t.fault(fmt.Errorf("%w: sensor reports an error status", ErrSensorFault))
	}

	euler, err := t.sensor.ReadEulerAngles()
	if err != nil {
		return t.fault(fmt.Errorf("%w: %w", ErrSensorFault, err))
	}
	accel, err := t.sensor.ReadAccel()
	if err != nil {
		return t.fault(fmt.Errorf("%w: %w", ErrSensorFault, err))
	}
	temp, hasTemp := t.readTemp()

	t.lock.Lock()
	defer t.lock.Unlock()
	if t.faulted {
		log.Println("orientation sensor recovered")
		t.faulted = false
	}

	inverted := IsInverted(euler.Roll)
	t.current.Euler = euler
	t.current.Accel = accel
	if hasTemp {
		t.current.Temperature = temp
	}
	t.current.Inverted = inverted
	t.current.Healthy = true
	t.current.Updated = time.Now()
	if inverted {
		t.current.Detected = models.OrientationInverted
	} else {
		t.current.Detected = models.OrientationUpright
	}
	return nil
}

// readTemp is best effort, a failed read keeps the last temperature.
func (t *Tracker) readTemp() (int, bool) {
	sensor, ok := t.sensor.(vehicle.TempSensor)
	if !ok {
		return 0, false
	}
	temp, err := sensor.ReadTemp()
	if err != nil {
		log.Printf("failed reading sensor temperature: %s\n", err.Error())
		return 0, false
	}
	return temp, true
}

func (t *Tracker) fault(err error) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.faulted {
		log.Printf("error: %s\n", err.Error())
		t.faulted = true
	}
	t.current.Healthy = false
	return err
}

// Poll is the periodic task body.
func (t *Tracker) Poll() {
	t.Update()
}
