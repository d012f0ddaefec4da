package receiver

import (
	"fmt"
	"log"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

// Sampler converts raw pulse widths into 0-100 control values.
type Sampler struct {
	receiver vehicle.Receiver
	limits   *LimitsStore
	frames   *FrameStore
}

func NewSampler(receiver vehicle.Receiver, limits *LimitsStore, frames *FrameStore) *Sampler {
	return &Sampler{
		receiver: receiver,
		limits:   limits,
		frames:   frames,
	}
}

// Sample reads every channel against one limits snapshot and publishes the whole frame.
func (s *Sampler) Sample() models.ControlFrame {
	limits := s.limits.Snapshot()

	frame := models.ControlFrame{
		Taken: time.Now(),
	}
	for controller := 0; controller < models.NumControllers; controller++ {
		for channel := 0; channel < models.NumChannels; channel++ {
			pw := s.receiver.PulseWidth(controller, channel)
			frame.Channels[controller][channel] = Normalize(pw, limits[controller][channel])
		}
	}

	return s.frames.Publish(frame)
}

// Normalize clamps pw to the channel bounds and maps it onto 0-100.
func Normalize(pw float64, limits models.ChannelLimits) float64 {
	if limits.Max <= limits.Min {
		return models.MinControl
	}
	pw = vehicle.Clamp(pw, limits.Min, limits.Max)
	return ((pw - limits.Min) / (limits.Max - limits.Min)) * models.MaxControl
}

// PrintChannels logs the raw pulse width of every channel.
func PrintChannels(receiver vehicle.Receiver) {
	for controller := 0; controller < models.NumControllers; controller++ {
		line := fmt.Sprintf("controller %d:", controller+1)
		for channel := 0; channel < models.NumChannels; channel++ {
			line += fmt.Sprintf(" ch%d=%.0f", channel+1, receiver.PulseWidth(controller, channel))
		}
		log.Println(line)
	}
}
