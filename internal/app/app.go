package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/esc"
	"github.com/Speshl/gorrc_bot/internal/esc/pca9685"
	"github.com/Speshl/gorrc_bot/internal/esc/pipwm"
	"github.com/Speshl/gorrc_bot/internal/indicator"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/operator"
	"github.com/Speshl/gorrc_bot/internal/orientation"
	"github.com/Speshl/gorrc_bot/internal/receiver"
	"github.com/Speshl/gorrc_bot/internal/task"
	"github.com/Speshl/gorrc_bot/internal/telemetry"
	"github.com/Speshl/gorrc_bot/internal/vehicle"
	"github.com/Speshl/gorrc_bot/internal/vehicle/omnibot"
	socketio "github.com/googollee/go-socket.io"
	"golang.org/x/sync/errgroup"
)

const (
	ReceiverGPIO   = "gpio"
	ReceiverManual = "manual"

	taskReceiver    = "receiver"
	taskProcessor   = "command_processor"
	taskConsole     = "console"
	taskFeed        = "telemetry_feed"
	taskCalibReport = "calibration_report"
	taskHealth      = "server_health"
)

type closer struct {
	name string
	fn   func() error
}

type App struct {
	ctx       context.Context
	ctxCancel context.CancelFunc

	cfg    config.Config
	client *socketio.Client

	infoLock  sync.RWMutex
	robotInfo models.Robot
	arenaInfo models.Arena

	supervisor *task.Supervisor
	manual     *receiver.ManualReceiver
	robot      *omnibot.Robot
	processor  *operator.Processor
	tracker    *orientation.Tracker
	collector  *telemetry.Collector
	publisher  *telemetry.Publisher

	closers []closer
}

// NewApp wires nothing to hardware until Start. client may be nil to run without a server.
func NewApp(cfg config.Config, client *socketio.Client) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		ctx:        ctx,
		ctxCancel:  cancel,
		cfg:        cfg,
		client:     client,
		supervisor: task.NewSupervisor(),
	}
}

func (a *App) Start() error {
	log.Println("starting...")

	err := a.build()
	if err != nil {
		a.stop()
		return fmt.Errorf("failed building robot: %w", err)
	}
	defer a.stop()

	err = a.RegisterHandlers()
	if err != nil {
		// the robot still runs from the console and transmitters
		log.Printf("failed connecting to server: %s\n", err.Error())
		a.client = nil
	}
	if a.client != nil {
		a.supervisor.Add(taskHealth, task.RunnerFunc(a.health))
	}

	group, groupCtx := errgroup.WithContext(a.ctx)

	group.Go(func() error {
		return a.supervisor.Start(groupCtx)
	})

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			log.Printf("received signal: %s\n", sig)
			a.ctxCancel()
			return nil
		case <-groupCtx.Done():
			log.Println("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("robot stopping due to error - %w", err)
	}
	log.Println("shutting down")
	return nil
}

// Stop cancels a running app.
func (a *App) Stop() {
	a.ctxCancel()
}

func (a *App) stop() {
	log.Println("stopping...")
	for i := len(a.closers) - 1; i >= 0; i-- {
		err := a.closers[i].fn()
		if err != nil {
			log.Printf("failed stopping %s: %s\n", a.closers[i].name, err.Error())
		}
	}
	a.closers = nil

	if a.client != nil {
		a.client.Close()
	}
}

func (a *App) onStop(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) build() error {
	rx, err := a.buildReceiver()
	if err != nil {
		return err
	}

	bank, err := NewEscBank(a.cfg.EscCfg)
	if err != nil {
		return err
	}

	a.robot = omnibot.NewRobot(a.cfg, rx, bank)
	err = a.robot.Init()
	if err != nil {
		return err
	}
	a.onStop("robot", a.robot.Stop)
	a.robot.Register(a.supervisor)

	a.buildOrientation()

	a.processor = operator.NewProcessor(a.robot.Machine(), a.tracker, a.cfg.ConsoleCfg.QueueSize)
	a.supervisor.Add(taskProcessor, a.processor)

	if a.cfg.ConsoleCfg.Enabled {
		console := operator.NewConsole(a.cfg.ConsoleCfg, a.processor)
		err = console.Init()
		if err != nil {
			return err
		}
		a.onStop("console", console.Stop)
		a.supervisor.Add(taskConsole, console)
	}

	a.buildIndicator()
	a.buildTelemetry()

	a.supervisor.Add(taskCalibReport, task.RunnerFunc(a.reportCalibration))
	return nil
}

func (a *App) buildReceiver() (vehicle.Receiver, error) {
	cfg := a.cfg.ReceiverCfg
	switch cfg.Driver {
	case ReceiverGPIO:
		rx, err := receiver.NewGPIOReceiver(cfg)
		if err != nil {
			return nil, err
		}
		err = rx.Init()
		if err != nil {
			return nil, err
		}
		a.onStop("receiver", rx.Stop)
		a.supervisor.Add(taskReceiver, rx)
		return rx, nil
	case ReceiverManual:
		log.Println("using manual receiver, transmitters read as stalled until controls arrive")
		a.manual = receiver.NewManualReceiver((cfg.MinPulse + cfg.MaxPulse) / 2)
		a.manual.SetTimeout(config.Millis(cfg.StallTimeout))
		return a.manual, nil
	default:
		return nil, fmt.Errorf("unsupported receiver driver: %s", cfg.Driver)
	}
}

// NewEscBank builds one driver per configured driver type.
func NewEscBank(cfg config.EscConfig) (*esc.Bank, error) {
	groups := esc.GroupByDriver(cfg.EscCfgs)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	drivers := make([]vehicle.EscDriverIFace, 0, len(groups))
	for _, name := range names {
		switch name {
		case esc.DriverPCA9685:
			drivers = append(drivers, pca9685.NewEscDriver(cfg, groups[name]))
		case esc.DriverPiPWM:
			drivers = append(drivers, pipwm.NewEscDriver(groups[name]))
		default:
			return nil, fmt.Errorf("unsupported esc driver: %s", name)
		}
	}
	return esc.NewBank(drivers...), nil
}

func (a *App) buildOrientation() {
	cfg := a.cfg.OrientationCfg
	override := orientation.ParseMode(cfg.Override)

	if !cfg.Enabled {
		a.tracker = orientation.NewTracker(nil, override)
		return
	}

	var sensor vehicle.OrientationSensor
	bno, err := orientation.OpenBNO055(cfg.Address, cfg.I2CDevice)
	if err != nil {
		log.Printf("failed starting orientation sensor, continuing without it: %s\n", err.Error())
	} else {
		sensor = bno
	}

	a.tracker = orientation.NewTracker(sensor, override)
	if sensor != nil {
		a.supervisor.AddPeriodic(task.NewPeriodic(orientation.TaskName, config.Millis(cfg.Period), a.tracker.Poll))
	}
}

func (a *App) buildIndicator() {
	cfg := a.cfg.IndicatorCfg
	if !cfg.Enabled {
		return
	}

	leds, closeLeds, err := indicator.OpenLeds(cfg.Pins)
	if err != nil {
		log.Printf("failed starting indicator: %s\n", err.Error())
		return
	}
	ind := indicator.NewIndicator(a.robot, leds)
	a.onStop("indicator", func() error {
		ind.Off()
		return closeLeds()
	})
	a.supervisor.AddPeriodic(task.NewPeriodic(indicator.TaskName, config.Millis(cfg.Period), ind.Poll))
}

func (a *App) buildTelemetry() {
	cfg := a.cfg.TelemetryCfg

	var process telemetry.ProcessSource
	procStats, err := telemetry.NewProcStats(cfg.NetDevice)
	if err != nil {
		log.Printf("process stats unavailable: %s\n", err.Error())
	} else {
		process = procStats
	}

	a.collector = telemetry.NewCollector("", a.robot, a.tracker, process)
	if cfg.Period <= 0 {
		return
	}
	a.publisher = telemetry.NewPublisher(a.collector, config.Millis(cfg.Period))

	if cfg.SerialPort != "" {
		streamer, err := telemetry.OpenLineStreamer(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			log.Printf("failed starting telemetry stream: %s\n", err.Error())
		} else {
			a.onStop("telemetry stream", streamer.Close)
			a.publisher.AddSink("esp", streamer)
		}
	}

	if cfg.FeedAddress != "" {
		feed := telemetry.NewFeed(cfg.FeedAddress)
		a.supervisor.Add(taskFeed, feed)
		a.publisher.AddSink("websocket", feed)
	}

	a.publisher.AddSink("server", telemetry.SinkFunc(a.emitTelemetry))
	a.supervisor.Add(telemetry.TaskName, a.publisher)
}

func (a *App) reportCalibration(ctx context.Context) error {
	results := a.robot.Calibrator().Results()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case table := <-results:
			log.Printf("reporting calibration revision %d\n", a.robot.Limits().Revision())
			a.emit("calibration", table)
		}
	}
}

func (a *App) RobotInfo() (models.Robot, models.Arena) {
	a.infoLock.RLock()
	defer a.infoLock.RUnlock()
	return a.robotInfo, a.arenaInfo
}
