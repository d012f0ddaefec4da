package app

import (
	"context"
	"testing"
	"time"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/esc"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/operator"
	"github.com/Speshl/gorrc_bot/internal/receiver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEscBank(t *testing.T) {
	cfg := config.DefaultConfig().EscCfg
	cfg.EscCfgs[5].Driver = esc.DriverPiPWM
	cfg.EscCfgs[5].Channel = 0

	bank, err := NewEscBank(cfg)
	require.NoError(t, err)
	assert.NotNil(t, bank)

	cfg.EscCfgs[0].Driver = "servo_hat"
	_, err = NewEscBank(cfg)
	assert.ErrorContains(t, err, "servo_hat")
}

func TestBuildReceiver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ReceiverCfg.Driver = ReceiverManual
	a := NewApp(cfg, nil)

	rx, err := a.buildReceiver()
	require.NoError(t, err)
	assert.Same(t, a.manual, rx)
	assert.True(t, rx.Stalled(models.DriveController, 0))
	assert.Equal(t, 1500.0, rx.PulseWidth(models.DriveController, 0))

	a.cfg.ReceiverCfg.Driver = "sbus"
	_, err = a.buildReceiver()
	assert.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	encoded, err := encode(models.RemoteCommand{Line: "status", User: "pit"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"line":"status","user":"pit"}`, encoded)

	decoded := models.RemoteCommand{}
	require.NoError(t, decode(encoded, &decoded))
	assert.Equal(t, "pit", decoded.User)

	assert.Error(t, decode("{", &decoded))
}

func TestOnControlsFeedsManualReceiver(t *testing.T) {
	a := NewApp(config.DefaultConfig(), nil)
	a.manual = receiver.NewManualReceiver(1500)

	a.onControls(nil, `{"controller":1,"widths":[1500,1500,1000,1500,2000,1500]}`)
	assert.False(t, a.manual.Stalled(models.DriveController, models.ChannelArmSwitch))
	assert.Equal(t, 2000.0, a.manual.PulseWidth(models.DriveController, models.ChannelArmSwitch))
	assert.True(t, a.manual.Stalled(models.WeaponController, 0))
}

func TestOnCommandReachesProcessor(t *testing.T) {
	rx := receiver.NewManualReceiver(1500)
	rx.SetController(models.DriveController, [models.NumChannels]float64{1500, 1500, 1000, 1500, 1000, 1500})
	rx.SetController(models.WeaponController, [models.NumChannels]float64{1500, 1500, 1000, 1500, 1000, 1500})
	machine := arming.NewMachine(receiver.NewStallDetector(rx))

	a := NewApp(config.DefaultConfig(), nil)
	a.processor = operator.NewProcessor(machine, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.processor.Start(ctx)

	a.onCommand(nil, `{"line":"partial_arm","user":"pit"}`)
	require.Eventually(t, func() bool {
		return machine.State() == models.DriveOnly
	}, time.Second, 5*time.Millisecond)

	// unparseable lines never reach the machine
	a.onCommand(nil, `{"line":"fully_armed"}`)
	executed, _ := a.processor.Stats()
	assert.Equal(t, uint64(1), executed)
}
