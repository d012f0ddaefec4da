package indicator

import (
	"testing"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/stretchr/testify/assert"
)

type fakeLed struct {
	on bool
}

func (l *fakeLed) Set(on bool) { l.on = on }

type fakeSource struct {
	state models.ArmState
}

func (s *fakeSource) State() models.ArmState { return s.state }

func lit(leds []Led) []bool {
	out := make([]bool, len(leds))
	for i, led := range leds {
		out[i] = led.(*fakeLed).on
	}
	return out
}

func newLeds(count int) []Led {
	leds := make([]Led, count)
	for i := range leds {
		leds[i] = &fakeLed{}
	}
	return leds
}

func TestPattern(t *testing.T) {
	tests := []struct {
		state    models.ArmState
		step     int
		expected []bool
	}{
		{models.Disarmed, 0, []bool{false, false, false, false}},
		{models.DriveOnly, 0, []bool{true, true, false, false}},
		{models.FullyArmed, 0, []bool{true, true, true, true}},
		{models.WeaponOnly, 0, []bool{true, false, false, false}},
		{models.WeaponOnly, 2, []bool{false, false, true, false}},
		{models.WeaponOnly, 5, []bool{false, true, false, false}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Pattern(tt.state, tt.step, 4), "%s step %d", tt.state, tt.step)
	}
	assert.Empty(t, Pattern(models.WeaponOnly, 1, 0))
}

func TestIndicatorFollowsState(t *testing.T) {
	source := &fakeSource{}
	leds := newLeds(4)
	ind := NewIndicator(source, leds)
	now := time.Now()

	ind.Update(now)
	assert.Equal(t, []bool{false, false, false, false}, lit(leds))

	source.state = models.DriveOnly
	ind.Update(now)
	assert.Equal(t, []bool{true, true, false, false}, lit(leds))

	source.state = models.FullyArmed
	ind.Update(now)
	assert.Equal(t, []bool{true, true, true, true}, lit(leds))

	ind.Off()
	assert.Equal(t, []bool{false, false, false, false}, lit(leds))
}

func TestIndicatorRipple(t *testing.T) {
	source := &fakeSource{state: models.WeaponOnly}
	leds := newLeds(4)
	ind := NewIndicator(source, leds)
	now := time.Now()

	ind.Update(now)
	assert.Equal(t, []bool{true, false, false, false}, lit(leds))

	// not due yet
	ind.Update(now.Add(50 * time.Millisecond))
	assert.Equal(t, []bool{true, false, false, false}, lit(leds))

	ind.Update(now.Add(100 * time.Millisecond))
	assert.Equal(t, []bool{false, true, false, false}, lit(leds))

	for i := 2; i <= 4; i++ {
		ind.Update(now.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	assert.Equal(t, []bool{true, false, false, false}, lit(leds))

	// leaving and re-entering restarts the ripple
	source.state = models.Disarmed
	ind.Update(now.Add(time.Second))
	source.state = models.WeaponOnly
	ind.Update(now.Add(2 * time.Second))
	assert.Equal(t, []bool{true, false, false, false}, lit(leds))
}
