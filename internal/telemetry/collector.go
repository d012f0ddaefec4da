package telemetry

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/prometheus/procfs"
)

type RobotSource interface {
	State() models.ArmState
	LatestFrame() models.ControlFrame
	MixerOutput() models.MixerOutput
	Stalled() (bool, bool)
	DispatchStats() models.DispatchStats
	LastTransition() (arming.Transition, uint64)
}

// OrientationSource reports the sensor reading and whether the robot drives inverted,
// which honors any operator override.
type OrientationSource interface {
	Orientation() models.Orientation
	Inverted() bool
}

// ProcessSource reports process and network usage.
type ProcessSource interface {
	ProcessStats() (models.ProcessStats, error)
}

type Collector struct {
	robotID     string
	robot       RobotSource
	orientation OrientationSource
	process     ProcessSource

	lock      sync.Mutex
	procFault bool
}

func NewCollector(robotID string, robot RobotSource, orientation OrientationSource, process ProcessSource) *Collector {
	return &Collector{
		robotID:     robotID,
		robot:       robot,
		orientation: orientation,
		process:     process,
	}
}

func (c *Collector) SetRobotID(id string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.robotID = id
}

// Snapshot reads every source once. A missing orientation source reports unknown.
func (c *Collector) Snapshot() models.Telemetry {
	state := c.robot.State()
	driveStalled, weaponStalled := c.robot.Stalled()

	orientation := models.Orientation{
		Detected: models.OrientationUnknown,
		Override: models.OrientationUnknown,
	}
	if c.orientation != nil {
		orientation = c.orientation.Orientation()
		orientation.Inverted = c.orientation.Inverted()
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	snapshot := models.Telemetry{
		RobotID:     c.robotID,
		ArmState:    state.String(),
		ArmStateID:  int(state),
		Orientation: orientation,
		Frame:       c.robot.LatestFrame(),
		Mixer:       c.robot.MixerOutput(),
		Stalled:     [2]bool{driveStalled, weaponStalled},
		Dispatch:    c.robot.DispatchStats(),
		TimeStamp:   time.Now().UnixMilli(),
	}

	transition, count := c.robot.LastTransition()
	if count > 0 {
		snapshot.Transition = models.ArmChange{
			From:   transition.From.String(),
			To:     transition.To.String(),
			Reason: transition.Reason,
			At:     transition.At.UnixMilli(),
			Count:  count,
		}
	}

	if c.process != nil {
		stats, err := c.process.ProcessStats()
		if err != nil {
			if !c.procFault {
				log.Printf("failed reading process stats: %s\n", err.Error())
			}
			c.procFault = true
		} else {
			c.procFault = false
			snapshot.Process = stats
		}
	}
	return snapshot
}

// ProcStats reads this process's usage from /proc.
type ProcStats struct {
	proc      procfs.Proc
	netDevice string
}

func NewProcStats(netDevice string) (*ProcStats, error) {
	p, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("error: procfs could not get process: %w", err)
	}
	return &ProcStats{
		proc:      p,
		netDevice: netDevice,
	}, nil
}

func (s *ProcStats) ProcessStats() (models.ProcessStats, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return models.ProcessStats{}, fmt.Errorf("error: failed getting process stat: %w", err)
	}

	stats := models.ProcessStats{
		ResidentMemory: stat.ResidentMemory(),
		CPUTime:        stat.CPUTime(),
	}

	netDev, err := s.proc.NetDev()
	if err != nil {
		return stats, fmt.Errorf("error: failed getting netstat: %w", err)
	}

	line, ok := netDev[s.netDevice]
	if !ok {
		return stats, fmt.Errorf("error: failed getting %s stats: not found", s.netDevice)
	}
	stats.RxBytes = line.RxBytes
	stats.TxBytes = line.TxBytes
	return stats, nil
}
