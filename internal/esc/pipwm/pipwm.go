package pipwm

import (
	"fmt"
	"log"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/esc"
	"github.com/Speshl/gorrc_bot/internal/gpio"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	// 1us clock ticks over a 20ms frame, so duty is the pulse width in microseconds
	Frequency        = 1000000
	CycleLength      = uint32(20000)
	MaxSupportedEscs = 2
)

// PinMap is the hardware PWM pin for each configured channel index.
var PinMap = []int{12, 13}

type EscDriver struct {
	cfgs []config.EscChannelCfg
	escs map[string]*Esc
}

type Esc struct {
	name             string
	inverted         bool
	failsafeThrottle float64
	pin              rpio.Pin
	maxValue         float64
	minValue         float64
}

func NewEscDriver(escCfgs []config.EscChannelCfg) *EscDriver {
	return &EscDriver{
		cfgs: escCfgs,
	}
}

func (d *EscDriver) Init() error {
	if len(d.cfgs) > MaxSupportedEscs {
		return fmt.Errorf("pi pwm supports %d escs, %d configured", MaxSupportedEscs, len(d.cfgs))
	}

	err := gpio.Open()
	if err != nil {
		return fmt.Errorf("failed initializing pi pwm: %w", err)
	}

	escs := make(map[string]*Esc, MaxSupportedEscs)
	for i := range d.cfgs {
		channel := d.cfgs[i].Channel
		if channel < 0 || channel >= len(PinMap) {
			return fmt.Errorf("pi pwm channel %d out of range for %s", channel, d.cfgs[i].Name)
		}

		name := d.cfgs[i].Name
		escs[name] = &Esc{
			name:             name,
			inverted:         d.cfgs[i].Inverted,
			failsafeThrottle: d.cfgs[i].FailsafeThrottle,
			pin:              rpio.Pin(PinMap[channel]),
			maxValue:         d.cfgs[i].MaxPulse,
			minValue:         d.cfgs[i].MinPulse,
		}
		escs[name].pin.Mode(rpio.Pwm)
		escs[name].pin.Freq(Frequency)
		log.Printf("esc added: %s (pwm pin %d)\n", name, PinMap[channel])
	}
	d.escs = escs
	d.FailsafeAll()
	return nil
}

func (d *EscDriver) Stop() error {
	d.FailsafeAll()
	err := gpio.Close()
	if err != nil {
		return fmt.Errorf("failed stopping pi pwm: %w", err)
	}
	return nil
}

func (d *EscDriver) FailsafeAll() {
	log.Println("sending failsafe to all pwm escs")
	for name := range d.escs {
		d.escs[name].Failsafe()
	}
}

func (d *EscDriver) Esc(name string) (vehicle.ESC, error) {
	e, ok := d.escs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", esc.ErrUnknownEsc, name)
	}
	return e, nil
}

// DutyCycle returns the pwm duty for a throttle value given the esc pulse range.
func DutyCycle(value, minPulse, maxPulse float64, inverted bool) uint32 {
	return uint32(esc.PulseWidth(value, minPulse, maxPulse, inverted))
}

func (e *Esc) SetThrottle(value float64) error {
	e.pin.DutyCycle(DutyCycle(value, e.minValue, e.maxValue, e.inverted), CycleLength)
	return nil
}

func (e *Esc) Failsafe() error {
	return e.SetThrottle(e.failsafeThrottle)
}
