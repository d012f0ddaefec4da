package orientation

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensor struct {
	healthy  bool
	euler    models.Euler
	accel    models.Vector
	eulerErr error
}

func (f *fakeSensor) ReadEulerAngles() (models.Euler, error) { return f.euler, f.eulerErr }
func (f *fakeSensor) ReadAccel() (models.Vector, error)      { return f.accel, nil }
func (f *fakeSensor) Healthy() bool                          { return f.healthy }

type fakeTempSensor struct {
	*fakeSensor
	temp    int
	tempErr error
}

func (f *fakeTempSensor) ReadTemp() (int, error) { return f.temp, f.tempErr }

type fakeBus struct {
	regs   map[byte]byte
	writes []byte
}

func (b *fakeBus) ReadRegU8(reg byte) (byte, error) {
	return b.regs[reg], nil
}

func (b *fakeBus) WriteRegU8(reg byte, value byte) error {
	b.writes = append(b.writes, reg)
	b.regs[reg] = value
	return nil
}

func (b *fakeBus) ReadRegS16LE(reg byte) (int16, error) {
	return int16(binary.LittleEndian.Uint16([]byte{b.regs[reg], b.regs[reg+1]})), nil
}

func (b *fakeBus) setS16(reg byte, value int16) {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, uint16(value))
	b.regs[reg] = raw[0]
	b.regs[reg+1] = raw[1]
}

func TestIsInverted(t *testing.T) {
	tests := []struct {
		roll     float64
		expected bool
	}{
		{-60, true},
		{-31, true},
		{-30, false},
		{-90, false},
		{-89.9, true},
		{0, false},
		{45, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsInverted(tt.roll), "roll %.1f", tt.roll)
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, models.OrientationInverted, ParseMode(" Inverted "))
	assert.Equal(t, models.OrientationUpright, ParseMode("upright"))
	assert.Equal(t, models.OrientationUnknown, ParseMode(""))
	assert.Equal(t, models.OrientationUnknown, ParseMode("sideways"))
}

func TestTrackerUpdate(t *testing.T) {
	sensor := &fakeSensor{
		healthy: true,
		euler:   models.Euler{Heading: 10, Pitch: 2, Roll: -60},
		accel:   models.Vector{Z: -9.8},
	}
	tracker := NewTracker(sensor, models.OrientationUnknown)

	require.NoError(t, tracker.Update())
	o := tracker.Orientation()
	assert.True(t, o.Inverted)
	assert.True(t, o.Healthy)
	assert.Equal(t, models.OrientationInverted, o.Detected)
	assert.Equal(t, -9.8, o.Accel.Z)
	assert.True(t, tracker.Inverted())

	tracker.SetOverride(models.OrientationUpright)
	assert.False(t, tracker.Inverted())
}

func TestTrackerReadsTemperature(t *testing.T) {
	sensor := &fakeTempSensor{fakeSensor: &fakeSensor{healthy: true}, temp: 31}
	tracker := NewTracker(sensor, models.OrientationUnknown)

	require.NoError(t, tracker.Update())
	assert.Equal(t, 31, tracker.Orientation().Temperature)

	// a failed temperature read keeps the last value and is not a sensor fault
	sensor.temp = 90
	sensor.tempErr = errors.New("nack")
	require.NoError(t, tracker.Update())
	assert.Equal(t, 31, tracker.Orientation().Temperature)
	assert.True(t, tracker.Orientation().Healthy)

	plain := NewTracker(&fakeSensor{healthy: true}, models.OrientationUnknown)
	require.NoError(t, plain.Update())
	assert.Zero(t, plain.Orientation().Temperature)
}

func TestTrackerKeepsLastGoodOnFault(t *testing.T) {
	sensor := &fakeSensor{healthy: true, euler: models.Euler{Heading: 90, Roll: 5}}
	tracker := NewTracker(sensor, models.OrientationUnknown)
	require.NoError(t, tracker.Update())

	sensor.healthy = false
	sensor.euler = models.Euler{Roll: -60}
	assert.ErrorIs(t, tracker.Update(), ErrSensorFault)
	assert.ErrorIs(t, tracker.Update(), ErrSensorFault)

	o := tracker.Orientation()
	assert.Equal(t, 90.0, o.Heading)
	assert.False(t, o.Inverted)
	assert.False(t, o.Healthy)

	sensor.healthy = true
	sensor.eulerErr = errors.New("i2c timeout")
	assert.ErrorIs(t, tracker.Update(), ErrSensorFault)
	assert.Equal(t, 90.0, tracker.Orientation().Heading)

	sensor.eulerErr = nil
	require.NoError(t, tracker.Update())
	assert.True(t, tracker.Orientation().Inverted)
}

func TestTrackerWithoutSensor(t *testing.T) {
	tracker := NewTracker(nil, models.OrientationInverted)
	assert.ErrorIs(t, tracker.Update(), ErrSensorFault)
	assert.Equal(t, models.OrientationUnknown, tracker.Orientation().Detected)
	assert.True(t, tracker.Inverted())
}

func TestBNO055(t *testing.T) {
	bus := &fakeBus{regs: map[byte]byte{regChipID: bno055ChipID}}
	bus.setS16(regEulerH, 180*16)
	bus.setS16(regEulerR, -60*16)
	bus.setS16(regEulerP, 8)
	bus.setS16(regAccelZ, -981)
	bus.regs[regTemp] = 0xEC

	sensor := NewBNO055(bus)
	require.NoError(t, sensor.Init())
	assert.Equal(t, byte(regOprMode), bus.writes[len(bus.writes)-1])
	assert.Equal(t, byte(modeNDOF), bus.regs[regOprMode])

	euler, err := sensor.ReadEulerAngles()
	require.NoError(t, err)
	assert.Equal(t, models.Euler{Heading: 180, Roll: -60, Pitch: 0.5}, euler)

	accel, err := sensor.ReadAccel()
	require.NoError(t, err)
	assert.InDelta(t, -9.81, accel.Z, 0.0001)

	temp, err := sensor.ReadTemp()
	require.NoError(t, err)
	assert.Equal(t, -20, temp)

	assert.True(t, sensor.Healthy())
	bus.regs[regSysStatus] = sysStatusError
	assert.False(t, sensor.Healthy())
}

func TestBNO055WrongChip(t *testing.T) {
	sensor := NewBNO055(&fakeBus{regs: map[byte]byte{regChipID: 0x11}})
	assert.Error(t, sensor.Init())
}
