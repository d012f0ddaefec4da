package omnibot

import (
	"errors"
	"fmt"
	"log"

	"github.com/Speshl/gorrc_bot/internal/arming"
	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/esc"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/receiver"
	"github.com/Speshl/gorrc_bot/internal/task"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
)

var _ vehicle.Vehicle = (*Robot)(nil)

func NewRobot(cfg config.Config, rx vehicle.Receiver, escDriver vehicle.EscDriverIFace) *Robot {
	log.Println("setting up omni robot")

	limits := receiver.NewLimitsStore(receiver.DefaultLimits(cfg.ReceiverCfg.MinPulse, cfg.ReceiverCfg.MaxPulse))
	frames := receiver.NewFrameStore()
	stalls := receiver.NewStallDetector(rx)
	machine := arming.NewMachine(stalls)

	return &Robot{
		cfg:      cfg,
		receiver: rx,
		limits:   limits,
		frames:   frames,
		sampler:  receiver.NewSampler(rx, limits, frames),
		stalls:   stalls,
		calibrator: receiver.NewCalibrator(rx, limits,
			config.Millis(cfg.ReceiverCfg.CalibrationWindow),
			config.Millis(cfg.ReceiverCfg.CalibrationTick),
		),
		machine:   machine,
		failsafe:  arming.NewFailsafeMonitor(machine),
		mixer:     NewMixer(),
		escDriver: escDriver,
	}
}

// EscNames returns the configured esc names for a group, e.g. drive0..drive2.
func EscNames(prefix string, count int) []string {
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		names = append(names, fmt.Sprintf("%s%d", prefix, i))
	}
	return names
}

func (r *Robot) Init() error {
	err := r.escDriver.Init()
	if err != nil {
		return fmt.Errorf("error: failed initializing robot esc interface: %w", err)
	}

	drive, err := r.resolve(EscNames(config.DefaultEscNameDrive, models.NumWheels))
	if err != nil {
		return err
	}
	weapon, err := r.resolve(EscNames(config.DefaultEscNameWeapon, models.NumWeapons))
	if err != nil {
		return err
	}

	r.lock.Lock()
	r.dispatcher = NewDispatcher(r.machine, drive, weapon, r.cfg.ArmingCfg.FailsafeEveryCycle)
	r.lock.Unlock()

	// outputs start in failsafe
	r.dispatcher.Dispatch(r.mixer.Output())
	return nil
}

func (r *Robot) resolve(names []string) ([]vehicle.ESC, error) {
	bank, ok := r.escDriver.(*esc.Bank)
	if !ok {
		bank = esc.NewBank(r.escDriver)
	}
	escs, err := bank.Escs(names)
	if err != nil {
		return nil, fmt.Errorf("error: robot needs escs %v: %w", names, err)
	}
	return escs, nil
}

func (r *Robot) Stop() error {
	log.Println("stopping robot")
	err := r.escDriver.Stop()
	if err != nil {
		return fmt.Errorf("error: failed stopping esc driver: %w", err)
	}
	return nil
}

// Register adds the robot control loops to the supervisor.
func (r *Robot) Register(supervisor *task.Supervisor) {
	rx := r.cfg.ReceiverCfg
	arm := r.cfg.ArmingCfg

	// losing any of these leaves the escs on stale commands
	supervisor.AddCriticalPeriodic(task.NewPeriodic(TaskSampler, config.Millis(rx.SamplePeriod), r.Sample), r.FailsafeAll)
	supervisor.AddPeriodic(task.NewPeriodic(TaskArming, config.Millis(arm.ArmingPeriod), r.Evaluate))
	supervisor.AddCriticalPeriodic(task.NewPeriodic(TaskFailsafe, config.Millis(arm.FailsafePeriod), func() { r.failsafe.Check() }), r.FailsafeAll)
	supervisor.AddCriticalPeriodic(task.NewPeriodic(TaskDispatch, config.Millis(arm.DispatchPeriod), r.Dispatch), r.FailsafeAll)
	supervisor.Add(receiver.TaskCalibrator, r.calibrator)

	if rx.PrintChannelsPeriod > 0 {
		supervisor.AddPeriodic(task.NewPeriodic(TaskChannels, config.Millis(rx.PrintChannelsPeriod), func() {
			receiver.PrintChannels(r.receiver)
		}))
	}

	if rx.CalibrateOnStart {
		err := r.calibrator.Trigger()
		if err != nil {
			log.Printf("failed starting calibration: %s\n", err.Error())
		}
	}
}

func (r *Robot) Sample() {
	r.sampler.Sample()
}

func (r *Robot) Evaluate() {
	r.machine.Evaluate(r.frames.Latest())
}

// Dispatch mixes the latest frame and sends it to the escs.
func (r *Robot) Dispatch() {
	output := r.mixer.Mix(r.frames.Latest())

	r.lock.RLock()
	dispatcher := r.dispatcher
	r.lock.RUnlock()
	if dispatcher == nil {
		return
	}
	dispatcher.Dispatch(output)
}

// FailsafeAll disarms the robot and sends failsafe to every esc.
func (r *Robot) FailsafeAll() {
	log.Println("failsafe on all escs")
	_, err := r.machine.Apply(models.FullyDisarm)
	if err != nil && !errors.Is(err, arming.ErrAlreadyDisarmed) {
		log.Printf("failed disarming: %s\n", err.Error())
	}

	r.lock.RLock()
	dispatcher := r.dispatcher
	r.lock.RUnlock()
	if dispatcher == nil {
		return
	}
	dispatcher.FailsafeAll()
}

func (r *Robot) Machine() *arming.Machine {
	return r.machine
}

func (r *Robot) Frames() *receiver.FrameStore {
	return r.frames
}

func (r *Robot) Limits() *receiver.LimitsStore {
	return r.limits
}

func (r *Robot) Calibrator() *receiver.Calibrator {
	return r.calibrator
}

func (r *Robot) Mixer() *Mixer {
	return r.mixer
}

func (r *Robot) FailsafeMonitor() *arming.FailsafeMonitor {
	return r.failsafe
}

// Stalled returns the drive and weapon transmitter stall status.
func (r *Robot) Stalled() (bool, bool) {
	return r.stalls.Stalled()
}

func (r *Robot) DispatchStats() models.DispatchStats {
	r.lock.RLock()
	dispatcher := r.dispatcher
	r.lock.RUnlock()
	if dispatcher == nil {
		return models.DispatchStats{}
	}
	return dispatcher.Stats()
}

func (r *Robot) LastTransition() (arming.Transition, uint64) {
	return r.machine.LastTransition()
}

func (r *Robot) State() models.ArmState {
	return r.machine.State()
}

func (r *Robot) LatestFrame() models.ControlFrame {
	return r.frames.Latest()
}

func (r *Robot) MixerOutput() models.MixerOutput {
	return r.mixer.Output()
}
