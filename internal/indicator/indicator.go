package indicator

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/gpio"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	TaskName       = "indicator"
	RippleInterval = 100 * time.Millisecond
)

type Led interface {
	Set(on bool)
}

type StateSource interface {
	State() models.ArmState
}

// Pattern returns which of count leds are lit for a state. step only matters for the
// WeaponOnly ripple.
func Pattern(state models.ArmState, step int, count int) []bool {
	lit := make([]bool, count)
	switch state {
	case models.DriveOnly:
		for i := 0; i < count && i < 2; i++ {
			lit[i] = true
		}
	case models.FullyArmed:
		for i := range lit {
			lit[i] = true
		}
	case models.WeaponOnly:
		if count > 0 {
			lit[step%count] = true
		}
	}
	return lit
}

type Indicator struct {
	source StateSource
	leds   []Led

	lock       sync.Mutex
	started    bool
	last       models.ArmState
	step       int
	lastRipple time.Time
}

func NewIndicator(source StateSource, leds []Led) *Indicator {
	return &Indicator{
		source: source,
		leds:   leds,
	}
}

// Update shows the current arm state, advancing the ripple when it is due.
func (i *Indicator) Update(now time.Time) {
	state := i.source.State()

	i.lock.Lock()
	defer i.lock.Unlock()

	if !i.started || state != i.last {
		if i.started {
			log.Printf("state change: %s --> %s\n", i.last, state)
		}
		i.started = true
		i.last = state
		i.step = 0
		i.lastRipple = now
	} else if state == models.WeaponOnly && now.Sub(i.lastRipple) >= RippleInterval {
		i.step = (i.step + 1) % max(len(i.leds), 1)
		i.lastRipple = now
	}

	for idx, on := range Pattern(state, i.step, len(i.leds)) {
		i.leds[idx].Set(on)
	}
}

func (i *Indicator) Poll() {
	i.Update(time.Now())
}

// Off turns every led off.
func (i *Indicator) Off() {
	i.lock.Lock()
	defer i.lock.Unlock()
	for _, led := range i.leds {
		led.Set(false)
	}
}

type RPIOLed struct {
	pin rpio.Pin
}

func (l *RPIOLed) Set(on bool) {
	if on {
		l.pin.High()
	} else {
		l.pin.Low()
	}
}

// OpenLeds maps the gpio memory and configures each pin as an output, initially low.
// The returned close func releases gpio.
func OpenLeds(pins []int) ([]Led, func() error, error) {
	err := gpio.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed opening indicator leds: %w", err)
	}

	leds := make([]Led, 0, len(pins))
	for _, p := range pins {
		pin := rpio.Pin(p)
		pin.Output()
		pin.Low()
		leds = append(leds, &RPIOLed{pin: pin})
	}
	log.Printf("indicator leds on pins %v\n", pins)

	return leds, gpio.Close, nil
}
