package receiver

import (
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

// StallDetector reports a transmitter as lost when any of its channels is stalled.
type StallDetector struct {
	receiver vehicle.Receiver
}

func NewStallDetector(receiver vehicle.Receiver) *StallDetector {
	return &StallDetector{
		receiver: receiver,
	}
}

func (d *StallDetector) ControllerStalled(controller int) bool {
	for channel := 0; channel < models.NumChannels; channel++ {
		if d.receiver.Stalled(controller, channel) {
			return true
		}
	}
	return false
}

// Stalled returns the stall status of the drive and weapon transmitters.
func (d *StallDetector) Stalled() (drive bool, weapon bool) {
	return d.ControllerStalled(models.DriveController), d.ControllerStalled(models.WeaponController)
}
