package orientation

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/googolgl/go-i2c"
)

const (
	bno055ChipID = 0xA0

	regChipID    = 0x00
	regAccelX    = 0x08
	regAccelY    = 0x0A
	regAccelZ    = 0x0C
	regEulerH    = 0x1A
	regEulerR    = 0x1C
	regEulerP    = 0x1E
	regTemp      = 0x34
	regSysStatus = 0x39
	regSysErr    = 0x3A
	regUnitSel   = 0x3B
	regOprMode   = 0x3D
	regPwrMode   = 0x3E
	regSysTrig   = 0x3F

	modeConfig = 0x00
	modeNDOF   = 0x0C

	sysStatusError = 0x01

	eulerLSBPerDegree = 16.0
	accelLSBPerMS2    = 100.0
)

// Bus is the register access the BNO055 needs.
type Bus interface {
	ReadRegU8(reg byte) (byte, error)
	WriteRegU8(reg byte, value byte) error
	ReadRegS16LE(reg byte) (int16, error)
}

// BNO055 reads fused orientation from a Bosch BNO055 over i2c.
type BNO055 struct {
	lock sync.Mutex
	bus  Bus
}

func NewBNO055(bus Bus) *BNO055 {
	return &BNO055{
		bus: bus,
	}
}

// OpenBNO055 opens the i2c bus and puts the sensor into fusion mode.
func OpenBNO055(address byte, device string) (*BNO055, error) {
	bus, err := i2c.New(address, device)
	if err != nil {
		return nil, fmt.Errorf("error starting i2c with address - %w", err)
	}

	sensor := NewBNO055(bus)
	err = sensor.Init()
	if err != nil {
		return nil, err
	}
	return sensor, nil
}

func (s *BNO055) Init() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	id, err := s.bus.ReadRegU8(regChipID)
	if err != nil {
		return fmt.Errorf("failed reading bno055 chip id: %w", err)
	}
	if id != bno055ChipID {
		return fmt.Errorf("unexpected bno055 chip id 0x%02x", id)
	}

	steps := []struct {
		reg   byte
		value byte
	}{
		{regOprMode, modeConfig},
		{regPwrMode, 0x00},
		{regSysTrig, 0x00},
		{regUnitSel, 0x00}, // m/s^2, degrees, celsius
		{regOprMode, modeNDOF},
	}
	for _, step := range steps {
		err = s.bus.WriteRegU8(step.reg, step.value)
		if err != nil {
			return fmt.Errorf("failed configuring bno055 register 0x%02x: %w", step.reg, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	log.Println("bno055 in ndof mode")
	return nil
}

func (s *BNO055) ReadEulerAngles() (models.Euler, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	heading, err := s.bus.ReadRegS16LE(regEulerH)
	if err != nil {
		return models.Euler{}, fmt.Errorf("failed reading heading: %w", err)
	}
	roll, err := s.bus.ReadRegS16LE(regEulerR)
	if err != nil {
		return models.Euler{}, fmt.Errorf("failed reading roll: %w", err)
	}
	pitch, err := s.bus.ReadRegS16LE(regEulerP)
	if err != nil {
		return models.Euler{}, fmt.Errorf("failed reading pitch: %w", err)
	}

	return models.Euler{
		Heading: float64(heading) / eulerLSBPerDegree,
		Roll:    float64(roll) / eulerLSBPerDegree,
		Pitch:   float64(pitch) / eulerLSBPerDegree,
	}, nil
}

func (s *BNO055) ReadAccel() (models.Vector, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var raw [3]int16
	for i, reg := range []byte{regAccelX, regAccelY, regAccelZ} {
		value, err := s.bus.ReadRegS16LE(reg)
		if err != nil {
			return models.Vector{}, fmt.Errorf("failed reading accel: %w", err)
		}
		raw[i] = value
	}

	return models.Vector{
		X: float64(raw[0]) / accelLSBPerMS2,
		Y: float64(raw[1]) / accelLSBPerMS2,
		Z: float64(raw[2]) / accelLSBPerMS2,
	}, nil
}

// ReadTemp returns the die temperature in celsius.
func (s *BNO055) ReadTemp() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	value, err := s.bus.ReadRegU8(regTemp)
	if err != nil {
		return 0, fmt.Errorf("failed reading temperature: %w", err)
	}
	return int(int8(value)), nil
}

// Healthy is false when the sensor reports a system error or cannot be read.
func (s *BNO055) Healthy() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	status, err := s.bus.ReadRegU8(regSysStatus)
	if err != nil || status == sysStatusError {
		return false
	}
	sysErr, err := s.bus.ReadRegU8(regSysErr)
	return err == nil && sysErr == 0
}
