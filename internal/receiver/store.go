package receiver

import (
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/models"
)

// LimitsStore holds the committed calibration table. Readers always get a whole table.
type LimitsStore struct {
	lock     sync.RWMutex
	limits   models.LimitsTable
	revision uint64
}

func NewLimitsStore(initial models.LimitsTable) *LimitsStore {
	return &LimitsStore{
		limits: initial,
	}
}

// DefaultLimits fills every channel with the same bounds.
func DefaultLimits(min, max float64) models.LimitsTable {
	table := models.LimitsTable{}
	for controller := range table {
		for channel := range table[controller] {
			table[controller][channel] = models.ChannelLimits{Min: min, Max: max}
		}
	}
	return table
}

func (s *LimitsStore) Snapshot() models.LimitsTable {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.limits
}

func (s *LimitsStore) Commit(table models.LimitsTable) uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.limits = table
	s.revision++
	return s.revision
}

func (s *LimitsStore) Revision() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.revision
}

// FrameStore holds the most recent control frame.
type FrameStore struct {
	lock     sync.RWMutex
	frame    models.ControlFrame
	sequence uint64
}

func NewFrameStore() *FrameStore {
	store := &FrameStore{}
	for controller := range store.frame.Channels {
		store.frame.Channels[controller][models.ChannelAileron] = models.CenterControl
		store.frame.Channels[controller][models.ChannelElevation] = models.CenterControl
		store.frame.Channels[controller][models.ChannelRudder] = models.CenterControl
	}
	return store
}

// Publish replaces the latest frame and stamps it with the next sequence number.
func (s *FrameStore) Publish(frame models.ControlFrame) models.ControlFrame {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.sequence++
	frame.Sequence = s.sequence
	if frame.Taken.IsZero() {
		frame.Taken = time.Now()
	}
	s.frame = frame
	return frame
}

func (s *FrameStore) Latest() models.ControlFrame {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.frame
}
