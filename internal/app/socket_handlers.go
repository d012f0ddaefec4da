package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Speshl/gorrc_bot/internal/config"
	"github.com/Speshl/gorrc_bot/internal/models"
	"github.com/Speshl/gorrc_bot/internal/operator"
	socketio "github.com/googollee/go-socket.io"
	jsoniter "github.com/json-iterator/go"
)

var json jsoniter.API = jsoniter.ConfigCompatibleWithStandardLibrary

const remoteSource = "remote"

func (a *App) RegisterHandlers() error {
	if a.client == nil {
		log.Println("no server configured, running standalone")
		return nil
	}

	log.Println("registering handlers")
	a.client.OnEvent("reply", func(s socketio.Conn, msg string) {
		log.Println("Receive Message /reply: ", "reply", msg)
	})

	a.client.OnEvent("command", a.onCommand)

	a.client.OnEvent("calibrate", a.onCalibrate)

	a.client.OnEvent("controls", a.onControls)

	a.client.OnEvent("register_success", a.onRegisterSuccess)

	log.Println("attemping to connect to server...")
	err := a.client.Connect() //Client must have atleast 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to server - %w", err)
	}
	log.Println("connected to server")
	return nil
}

func (a *App) onCommand(socketConn socketio.Conn, msg string) {
	remote := models.RemoteCommand{}
	err := decode(msg, &remote)
	if err != nil {
		log.Printf("command from %s failed unmarshaling: %s\n", socketConn.ID(), err.Error())
		return
	}

	source := remoteSource
	if remote.User != "" {
		source = fmt.Sprintf("%s:%s", remoteSource, remote.User)
	}

	cmd, err := a.processor.SubmitLine(remote.Line, source, func(result models.CommandResult) {
		a.emit("command_result", result)
	})
	if err != nil {
		log.Printf("command from %s rejected: %s\n", source, err.Error())
		a.emit("command_result", models.CommandResult{
			CommandID: cmd.ID,
			Name:      cmd.Name,
			Code:      models.ResultError.String(),
			Lines:     []string{operator.ParseErrorLine(err)},
		})
	}
}

func (a *App) onCalibrate(socketConn socketio.Conn, msg string) {
	log.Printf("calibration requested by %s\n", socketConn.ID())
	err := a.robot.Calibrator().Trigger()
	if err != nil {
		log.Printf("failed starting calibration: %s\n", err.Error())
		a.emit("calibration_error", err.Error())
	}
}

func (a *App) onControls(socketConn socketio.Conn, msg string) {
	if a.manual == nil {
		return
	}

	controls := models.RemoteControls{}
	err := decode(msg, &controls)
	if err != nil {
		log.Printf("controls from %s failed unmarshaling: %s\n", socketConn.ID(), err.Error())
		return
	}
	if controls.Controller < 0 || controls.Controller >= models.NumControllers {
		log.Printf("controls from %s for unsupported controller: %d\n", socketConn.ID(), controls.Controller)
		return
	}
	a.manual.SetController(controls.Controller, controls.Widths)
}

func (a *App) onRegisterSuccess(socketConn socketio.Conn, msgs []string) {
	if len(msgs) != 1 {
		log.Printf("register success from %s had to many msgs: %d\n", socketConn.ID(), len(msgs))
		return
	}
	msg := msgs[0]

	decodedMsg := models.ConnectResp{}
	err := decode(msg, &decodedMsg)
	if err != nil {
		log.Printf("register success from %s failed unmarshaling: %s\n", socketConn.ID(), string(msg))
		return
	}

	a.infoLock.Lock()
	a.robotInfo = decodedMsg.Robot
	a.arenaInfo = decodedMsg.Arena
	a.infoLock.Unlock()

	a.collector.SetRobotID(decodedMsg.Robot.Id.String())
	log.Printf("robot connected as %s(%s) @ %s(%s)\n", decodedMsg.Robot.Name, decodedMsg.Robot.ShortName, decodedMsg.Arena.Name, decodedMsg.Arena.ShortName)
}

// health sends the connect request, then a healthcheck every interval.
func (a *App) health(ctx context.Context) error {
	robotInfo, _ := a.RobotInfo()
	a.emit("robot_connect", models.ConnectReq{
		Key:      a.cfg.ServerCfg.Key,
		Password: a.cfg.ServerCfg.Password,
		RobotID:  robotInfo.Id.String(),
	})

	interval := config.Millis(a.cfg.ServerCfg.HealthInterval)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	healthTicker := time.NewTicker(interval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("health checker stopped")
			return ctx.Err()
		case <-healthTicker.C:
			state := a.robot.State()
			log.Printf("healthcheck: healthy (%s)\n", state)
			a.client.Emit("robot_healthy", state.String())
		}
	}
}

func (a *App) emitTelemetry(t models.Telemetry) error {
	if a.client == nil {
		return nil
	}
	encoded, err := encode(t)
	if err != nil {
		return err
	}
	a.client.Emit("telemetry", encoded)
	return nil
}

func (a *App) emit(event string, v any) {
	if a.client == nil {
		return
	}
	encoded, err := encode(v)
	if err != nil {
		log.Printf("failed encoding %s: %s\n", event, err.Error())
		return
	}
	a.client.Emit(event, encoded)
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed encoding message: %w", err)
	}
	return string(data), nil
}

func decode(msg string, v any) error {
	err := json.Unmarshal([]byte(msg), v)
	if err != nil {
		return fmt.Errorf("failed decoding message: %w", err)
	}
	return nil
}
