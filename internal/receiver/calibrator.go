package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

const (
	SentinelMin = 10000.0
	SentinelMax = -10000.0

	TaskCalibrator = "calibrator"
)

var ErrCalibrationBusy = errors.New("calibration already in progress")

type CalibrationState int

const (
	CalibrationIdle CalibrationState = iota
	CalibrationSampling
	CalibrationCommitted
)

func (s CalibrationState) String() string {
	switch s {
	case CalibrationIdle:
		return "idle"
	case CalibrationSampling:
		return "sampling"
	case CalibrationCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Calibrator finds the pulse width range of every channel while the operator moves the
// sticks and switches to their extremes. Each Trigger runs one pass; the finished table is
// committed to the limits store in a single operation.
type Calibrator struct {
	receiver vehicle.Receiver
	limits   *LimitsStore
	window   time.Duration
	tick     time.Duration

	trigger chan struct{}

	lock    sync.RWMutex
	state   CalibrationState
	results chan models.LimitsTable
}

func NewCalibrator(receiver vehicle.Receiver, limits *LimitsStore, window, tick time.Duration) *Calibrator {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	if window < tick {
		window = tick
	}
	return &Calibrator{
		receiver: receiver,
		limits:   limits,
		window:   window,
		tick:     tick,
		trigger:  make(chan struct{}, 1),
		results:  make(chan models.LimitsTable, 1),
	}
}

func (c *Calibrator) State() CalibrationState {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

// Results delivers each committed table. Old results are dropped if nobody reads them.
func (c *Calibrator) Results() <-chan models.LimitsTable {
	return c.results
}

// Trigger requests a calibration pass.
func (c *Calibrator) Trigger() error {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.state == CalibrationSampling {
		return ErrCalibrationBusy
	}

	select {
	case c.trigger <- struct{}{}:
		return nil
	default:
		return ErrCalibrationBusy
	}
}

func (c *Calibrator) Start(ctx context.Context) error {
	log.Println("starting calibrator")
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping calibrator: %s\n", ctx.Err().Error())
			return ctx.Err()
		case <-c.trigger:
			err := c.run(ctx)
			if err != nil {
				log.Printf("calibration aborted: %s\n", err.Error())
			}
		}
	}
}

func (c *Calibrator) setState(state CalibrationState) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.state = state
}

func (c *Calibrator) run(ctx context.Context) error {
	previous := c.state
	c.setState(CalibrationSampling)

	log.Println("controller calibration beginning,")
	log.Println("move controller sticks & switches to extremities.")

	pass := NewCalibrationPass()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	remaining := c.window
	for remaining > 0 {
		if remaining%time.Second == 0 {
			log.Printf("%.0f...\n", remaining.Seconds())
		}

		pass.Observe(c.receiver)

		select {
		case <-ctx.Done():
			c.setState(previous)
			return fmt.Errorf("calibration interrupted: %w", ctx.Err())
		case <-ticker.C:
		}
		remaining -= c.tick
	}

	table := pass.Finish(c.limits.Snapshot())
	revision := c.limits.Commit(table)
	c.setState(CalibrationCommitted)
	log.Printf("calibration committed revision %d from %d samples\n", revision, pass.Samples())
	logLimits(table)

	select {
	case <-c.results:
	default:
	}
	c.results <- table
	return nil
}

// CalibrationPass tracks running min/max per channel starting from inverted sentinels.
type CalibrationPass struct {
	working models.LimitsTable
	samples int
}

func NewCalibrationPass() *CalibrationPass {
	return &CalibrationPass{
		working: DefaultLimits(SentinelMin, SentinelMax),
	}
}

func (p *CalibrationPass) Observe(receiver vehicle.Receiver) {
	for controller := 0; controller < models.NumControllers; controller++ {
		for channel := 0; channel < models.NumChannels; channel++ {
			pw := receiver.PulseWidth(controller, channel)
			limits := &p.working[controller][channel]
			if pw < limits.Min {
				limits.Min = pw
			}
			if pw > limits.Max {
				limits.Max = pw
			}
		}
	}
	p.samples++
}

func (p *CalibrationPass) Samples() int {
	return p.samples
}

// Finish returns the calibrated table. Channels that never moved keep their previous limits.
func (p *CalibrationPass) Finish(previous models.LimitsTable) models.LimitsTable {
	table := p.working
	for controller := range table {
		for channel := range table[controller] {
			if table[controller][channel].Max <= table[controller][channel].Min {
				log.Printf("warning: controller %d channel %d had no range during calibration, keeping previous limits\n", controller+1, channel+1)
				table[controller][channel] = previous[controller][channel]
			}
		}
	}
	return table
}

func logLimits(table models.LimitsTable) {
	for controller := range table {
		log.Printf("controller %d\n", controller+1)
		for channel := range table[controller] {
			limits := table[controller][channel]
			log.Printf("\tchannel %d: min: %.2f, max: %.2f, range: %.2f\n", channel+1, limits.Min, limits.Max, limits.Max-limits.Min)
		}
	}
}
