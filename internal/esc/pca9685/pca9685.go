package pca9685

import (
	"fmt"
	"log"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/esc"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
	"github.com/googolgl/go-i2c"
	"github.com/googolgl/go-pca9685"
)

const (
	AcRange = pca9685.ServoRangeDef

	MaxSupportedEscs = 16
)

type EscDriver struct {
	address   byte
	i2cDevice string
	cfgs      []config.EscChannelCfg
	escs      map[string]*Esc
	driver    *pca9685.PCA9685
}

type Esc struct {
	name             string
	inverted         bool
	failsafeThrottle float64
	servo            *pca9685.Servo
}

func NewEscDriver(cfg config.EscConfig, escCfgs []config.EscChannelCfg) *EscDriver {
	return &EscDriver{
		address:   cfg.Address,
		i2cDevice: cfg.I2CDevice,
		cfgs:      escCfgs,
	}
}

func (d *EscDriver) Init() error {
	if len(d.cfgs) > MaxSupportedEscs {
		return fmt.Errorf("pca9685 supports %d escs, %d configured", MaxSupportedEscs, len(d.cfgs))
	}

	bus, err := i2c.New(d.address, d.i2cDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	d.driver, err = pca9685.New(bus, nil)
	if err != nil {
		return fmt.Errorf("error getting esc driver - %w", err)
	}

	escs := make(map[string]*Esc, len(d.cfgs))
	for i := range d.cfgs {
		name := d.cfgs[i].Name
		escs[name] = &Esc{
			name:             name,
			inverted:         d.cfgs[i].Inverted,
			failsafeThrottle: d.cfgs[i].FailsafeThrottle,
			servo: d.driver.ServoNew(d.cfgs[i].Channel, &pca9685.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(d.cfgs[i].MinPulse),
				MaxPulse: float32(d.cfgs[i].MaxPulse),
			}),
		}
		log.Printf("esc added: %s (pca9685 channel %d)\n", name, d.cfgs[i].Channel)
	}
	d.escs = escs
	d.FailsafeAll()
	return nil
}

func (d *EscDriver) Stop() error {
	log.Println("stopping pca9685 escs")
	d.FailsafeAll()
	return nil
}

func (d *EscDriver) FailsafeAll() {
	log.Println("sending failsafe to all pca9685 escs")
	for name := range d.escs {
		err := d.escs[name].Failsafe()
		if err != nil {
			log.Printf("failed failsafe on %s: %s\n", name, err.Error())
		}
	}
}

func (d *EscDriver) Esc(name string) (vehicle.ESC, error) {
	e, ok := d.escs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", esc.ErrUnknownEsc, name)
	}
	return e, nil
}

func (e *Esc) SetThrottle(value float64) error {
	fraction := esc.ThrottleFraction(value, e.inverted)
	err := e.servo.Fraction(float32(fraction))
	if err != nil {
		return fmt.Errorf("failed setting esc value - name: %s value: %.2f - error: %w", e.name, fraction, err)
	}
	return nil
}

func (e *Esc) Failsafe() error {
	return e.SetThrottle(e.failsafeThrottle)
}
