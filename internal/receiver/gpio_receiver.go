package receiver

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/gpio"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	minPlausiblePulse = 500.0
	maxPlausiblePulse = 2500.0
)

type pinState struct {
	level    rpio.State
	rise     time.Time
	width    float64
	lastEdge time.Time
}

// GPIOReceiver measures RC pulse widths by polling one input pin per channel.
type GPIOReceiver struct {
	cfg  config.ReceiverConfig
	pins [models.NumControllers][models.NumChannels]rpio.Pin

	lock   sync.RWMutex
	states [models.NumControllers][models.NumChannels]pinState

	stallTimeout time.Duration
	now          func() time.Time
}

func NewGPIOReceiver(cfg config.ReceiverConfig) (*GPIOReceiver, error) {
	if len(cfg.Pins) < models.NumControllers {
		return nil, fmt.Errorf("receiver needs pins for %d controllers, got %d", models.NumControllers, len(cfg.Pins))
	}

	r := &GPIOReceiver{
		cfg:          cfg,
		stallTimeout: config.Millis(cfg.StallTimeout),
		now:          time.Now,
	}
	for controller := 0; controller < models.NumControllers; controller++ {
		if len(cfg.Pins[controller]) < models.NumChannels {
			return nil, fmt.Errorf("controller %d needs %d pins, got %d", controller+1, models.NumChannels, len(cfg.Pins[controller]))
		}
		for channel := 0; channel < models.NumChannels; channel++ {
			r.pins[controller][channel] = rpio.Pin(cfg.Pins[controller][channel])
		}
	}
	return r, nil
}

func (r *GPIOReceiver) Init() error {
	err := gpio.Open()
	if err != nil {
		return fmt.Errorf("failed initializing receiver: %w", err)
	}

	for controller := range r.pins {
		for channel := range r.pins[controller] {
			r.pins[controller][channel].Input()
			r.pins[controller][channel].PullDown()
		}
	}
	log.Printf("receiver listening on %d pins\n", models.NumControllers*models.NumChannels)
	return nil
}

func (r *GPIOReceiver) Stop() error {
	log.Println("stopping receiver")
	return gpio.Close()
}

// Start polls every pin until ctx is done. Capture holds one OS thread and spins between
// samples, so a measured width is off by at most one poll interval plus the pin read time.
func (r *GPIOReceiver) Start(ctx context.Context) error {
	log.Println("starting receiver capture")
	interval := time.Duration(r.cfg.PollInterval) * time.Microsecond
	if interval <= 0 {
		interval = time.Duration(config.DefaultPollInterval) * time.Microsecond
	}

	err := spinPoll(ctx, interval, r.poll)
	log.Printf("stopping receiver capture: %s\n", err.Error())
	return err
}

// spinPoll calls fn every interval on a locked thread. A timer wakeup is too coarse for
// microsecond edges, so it busy waits. A late sample starts the schedule over rather
// than bursting to catch up.
func spinPoll(ctx context.Context, interval time.Duration, fn func()) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	done := ctx.Done()
	next := time.Now()
	for {
		select {
		case <-done:
			return ctx.Err()
		default:
		}

		fn()

		next = next.Add(interval)
		now := time.Now()
		if now.After(next) {
			next = now
			continue
		}
		for time.Now().Before(next) {
		}
	}
}

func (r *GPIOReceiver) poll() {
	var levels [models.NumControllers][models.NumChannels]rpio.State
	for controller := range r.pins {
		for channel := range r.pins[controller] {
			levels[controller][channel] = r.pins[controller][channel].Read()
		}
	}
	now := r.now()

	r.lock.Lock()
	defer r.lock.Unlock()
	for controller := range levels {
		for channel := range levels[controller] {
			observe(&r.states[controller][channel], levels[controller][channel], now)
		}
	}
}

// observe records a level sample. A falling edge after a rising edge completes a pulse;
// widths outside the plausible RC range are discarded as noise.
func observe(state *pinState, level rpio.State, now time.Time) {
	if level == state.level {
		return
	}
	state.level = level

	if level == rpio.High {
		state.rise = now
		return
	}
	if state.rise.IsZero() {
		return
	}

	width := float64(now.Sub(state.rise).Microseconds())
	state.rise = time.Time{}
	if width < minPlausiblePulse || width > maxPlausiblePulse {
		return
	}
	state.width = width
	state.lastEdge = now
}

func (r *GPIOReceiver) PulseWidth(controller, channel int) float64 {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.states[controller][channel].width
}

// Stalled is true when the channel has not produced a valid pulse within the stall timeout.
func (r *GPIOReceiver) Stalled(controller, channel int) bool {
	r.lock.RLock()
	lastEdge := r.states[controller][channel].lastEdge
	r.lock.RUnlock()

	if lastEdge.IsZero() {
		return true
	}
	return r.now().Sub(lastEdge) > r.stallTimeout
}
