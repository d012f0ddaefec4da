package esc

import (
	"errors"
	"fmt"
	"log"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

const (
	DriverPCA9685 = "pca9685"
	DriverPiPWM   = "pipwm"
)

var ErrUnknownEsc = errors.New("unknown esc")

// ThrottleFraction maps a 0-100 throttle onto the 0-1 fraction of the pulse range.
func ThrottleFraction(value float64, inverted bool) float64 {
	fraction := vehicle.MapToRange(value, models.MinControl, models.MaxControl, 0, 1)
	if inverted {
		fraction = 1 - fraction
	}
	return fraction
}

// PulseWidth maps a 0-100 throttle onto [minPulse, maxPulse].
func PulseWidth(value, minPulse, maxPulse float64, inverted bool) float64 {
	return minPulse + ThrottleFraction(value, inverted)*(maxPulse-minPulse)
}

// GroupByDriver splits the esc configs by the driver that owns them, keeping order.
func GroupByDriver(cfgs []config.EscChannelCfg) map[string][]config.EscChannelCfg {
	groups := make(map[string][]config.EscChannelCfg)
	for i := range cfgs {
		groups[cfgs[i].Driver] = append(groups[cfgs[i].Driver], cfgs[i])
	}
	return groups
}

// Bank looks up escs across several drivers.
type Bank struct {
	drivers []vehicle.EscDriverIFace
}

func NewBank(drivers ...vehicle.EscDriverIFace) *Bank {
	return &Bank{
		drivers: drivers,
	}
}

func (b *Bank) Init() error {
	for i := range b.drivers {
		err := b.drivers[i].Init()
		if err != nil {
			return fmt.Errorf("failed initializing esc driver %d: %w", i, err)
		}
	}
	return nil
}

func (b *Bank) Stop() error {
	var stopErr error
	for i := range b.drivers {
		err := b.drivers[i].Stop()
		if err != nil {
			log.Printf("failed stopping esc driver %d: %s\n", i, err.Error())
			stopErr = errors.Join(stopErr, err)
		}
	}
	return stopErr
}

func (b *Bank) Esc(name string) (vehicle.ESC, error) {
	for i := range b.drivers {
		e, err := b.drivers[i].Esc(name)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrUnknownEsc) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEsc, name)
}

// Escs resolves names in order.
func (b *Bank) Escs(names []string) ([]vehicle.ESC, error) {
	escs := make([]vehicle.ESC, 0, len(names))
	for _, name := range names {
		e, err := b.Esc(name)
		if err != nil {
			return nil, err
		}
		escs = append(escs, e)
	}
	return escs, nil
}
