package pipwm

import (
	"testing"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDutyCycle(t *testing.T) {
	assert.Equal(t, uint32(1000), DutyCycle(0, 1000, 2000, false))
	assert.Equal(t, uint32(1500), DutyCycle(50, 1000, 2000, false))
	assert.Equal(t, uint32(2000), DutyCycle(100, 1000, 2000, false))
	assert.Equal(t, uint32(1000), DutyCycle(100, 1000, 2000, true))
}

func TestInitRejectsTooManyEscs(t *testing.T) {
	driver := NewEscDriver(config.DefaultEscChannels())
	assert.Error(t, driver.Init())
}
