package omnibot

import (
	"math"
	"sync"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/receiver"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

const (
	Deadzone       = 5.0
	MaxWheelVector = 70.0

	TaskSampler  = "sampler"
	TaskArming   = "arming"
	TaskFailsafe = "failsafe"
	TaskDispatch = "esc_dispatch"
	TaskChannels = "print_channels"
)

var sqrt3o2 = math.Sqrt(3) / 2

type Robot struct {
	cfg  config.Config
	lock sync.RWMutex

	receiver   vehicle.Receiver
	limits     *receiver.LimitsStore
	frames     *receiver.FrameStore
	sampler    *receiver.Sampler
	stalls     *receiver.StallDetector
	calibrator *receiver.Calibrator

	machine  *arming.Machine
	failsafe *arming.FailsafeMonitor

	mixer      *Mixer
	escDriver  vehicle.EscDriverIFace
	dispatcher *Dispatcher
}

// Group is a set of escs commanded together.
type Group struct {
	name string
	escs []vehicle.ESC
}
