package receiver

import (
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
)

// ManualReceiver holds pulse widths set in code or sent over the server link. It backs the
// "manual" receiver driver, where every channel starts out stalled. With a timeout set, a
// controller that has not been updated within it reads as stalled.
type ManualReceiver struct {
	lock    sync.RWMutex
	widths  [models.NumControllers][models.NumChannels]float64
	stalled [models.NumControllers][models.NumChannels]bool
	updated [models.NumControllers]time.Time
	timeout time.Duration
	now     func() time.Time
}

func NewManualReceiver(initial float64) *ManualReceiver {
	r := &ManualReceiver{
		now: time.Now,
	}
	for controller := range r.widths {
		for channel := range r.widths[controller] {
			r.widths[controller][channel] = initial
			r.stalled[controller][channel] = true
		}
	}
	return r
}

func (r *ManualReceiver) Set(controller, channel int, pw float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.widths[controller][channel] = pw
	r.stalled[controller][channel] = false
	r.updated[controller] = r.now()
}

func (r *ManualReceiver) SetTimeout(timeout time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.timeout = timeout
}

// SetController sets every channel of a controller at once.
func (r *ManualReceiver) SetController(controller int, widths [models.NumChannels]float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.widths[controller] = widths
	r.updated[controller] = r.now()
	for channel := range r.stalled[controller] {
		r.stalled[controller][channel] = false
	}
}

func (r *ManualReceiver) SetStalled(controller int, stalled bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for channel := range r.stalled[controller] {
		r.stalled[controller][channel] = stalled
	}
}

func (r *ManualReceiver) PulseWidth(controller, channel int) float64 {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.widths[controller][channel]
}

func (r *ManualReceiver) Stalled(controller, channel int) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.stalled[controller][channel] {
		return true
	}
	return r.timeout > 0 && r.now().Sub(r.updated[controller]) > r.timeout
}
