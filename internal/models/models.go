package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NumControllers = 2
	NumChannels    = 6
	NumWheels      = 3
	NumWeapons     = 3

	//Controllers
	WeaponController = 0
	DriveController  = 1

	//Channel Maps
	ChannelAileron   = 0
	ChannelElevation = 1
	ChannelThrottle  = 2
	ChannelRudder    = 3
	ChannelArmSwitch = 4
	ChannelAux       = 5

	SwitchMidpoint = 50.0
	MinControl     = 0.0
	MaxControl     = 100.0
	CenterControl  = 50.0
)

// ArmState is the current authorization level for the drive and weapon subsystems.
type ArmState int

const (
	Disarmed ArmState = iota
	DriveOnly
	WeaponOnly
	FullyArmed
)

var armStateNames = map[ArmState]string{
	Disarmed:   "DISARMED",
	DriveOnly:  "DRIVE_ONLY",
	WeaponOnly: "WEAPON_ONLY",
	FullyArmed: "FULLY_ARMED",
}

func (s ArmState) String() string {
	name, ok := armStateNames[s]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

func (s ArmState) DriveEnabled() bool {
	return s == DriveOnly || s == FullyArmed
}

func (s ArmState) WeaponEnabled() bool {
	return s == WeaponOnly || s == FullyArmed
}

// AllArmStates returns every state in escalation order.
func AllArmStates() []ArmState {
	return []ArmState{Disarmed, DriveOnly, WeaponOnly, FullyArmed}
}

type CommandKind int

const (
	FullyDisarm CommandKind = iota
	PartialDisarm
	PartialArm
	FullyArm
	Status
)

// Command is a parsed operator request. It is consumed exactly once by the processor.
type Command struct {
	ID       uuid.UUID
	Kind     CommandKind
	Name     string
	Params   []string
	Source   string
	Received time.Time
}

type ResultCode int

const (
	ResultOk ResultCode = iota
	ResultError
	ResultAlreadyDisarmed
	ResultAlreadyArmed
)

var resultNames = map[ResultCode]string{
	ResultOk:              "OK",
	ResultError:           "ERROR",
	ResultAlreadyDisarmed: "ALREADY_DISARMED",
	ResultAlreadyArmed:    "ALREADY_ARMED",
}

func (r ResultCode) String() string {
	name, ok := resultNames[r]
	if !ok {
		return "ERROR"
	}
	return name
}

type CommandResult struct {
	CommandID uuid.UUID `json:"command_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Lines     []string  `json:"lines"`
}

type ChannelLimits struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// LimitsTable holds the pulse width bounds for every receiver channel.
type LimitsTable [NumControllers][NumChannels]ChannelLimits

// ControlFrame is one sampling cycle of normalized (0-100) channel values.
type ControlFrame struct {
	Channels [NumControllers][NumChannels]float64 `json:"channels"`
	Sequence uint64                               `json:"sequence"`
	Taken    time.Time                            `json:"taken"`
}

func (f ControlFrame) Value(controller, channel int) float64 {
	return f.Channels[controller][channel]
}

type OrientationMode string

const (
	OrientationUnknown  OrientationMode = "unknown"
	OrientationUpright  OrientationMode = "upright"
	OrientationInverted OrientationMode = "inverted"
)

type Euler struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Roll    float64 `json:"roll"`
}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Orientation struct {
	Euler
	Accel       Vector          `json:"accel"`
	Inverted    bool            `json:"inverted"`
	Temperature int             `json:"temperature"` // celsius
	Detected    OrientationMode `json:"detected"`
	Override    OrientationMode `json:"override"`
	Healthy     bool            `json:"healthy"`
	Updated     time.Time       `json:"updated"`
}

type MixerOutput struct {
	Wheel       [NumWheels]float64  `json:"wheel"`
	WeaponMotor [NumWeapons]float64 `json:"weapon_motor"`
}

// Telemetry is the snapshot handed to the streaming tasks.
type Telemetry struct {
	RobotID     string        `json:"robot_id"`
	ArmState    string        `json:"arm_state"`
	ArmStateID  int           `json:"arm_state_id"`
	Orientation Orientation   `json:"orientation"`
	Frame       ControlFrame  `json:"frame"`
	Mixer       MixerOutput   `json:"mixer"`
	Stalled     [2]bool       `json:"stalled"`
	Dispatch    DispatchStats `json:"dispatch"`
	Transition  ArmChange     `json:"transition"`
	Process     ProcessStats  `json:"process"`
	TimeStamp   int64         `json:"time_stamp"`
}

// ArmChange is the most recent arm state change. Count is the number of changes since start.
type ArmChange struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
	At     int64  `json:"at"`
	Count  uint64 `json:"count"`
}

type DispatchStats struct {
	Cycles          uint64 `json:"cycles"`
	DriveFailsafes  uint64 `json:"drive_failsafes"`
	WeaponFailsafes uint64 `json:"weapon_failsafes"`
	Errors          uint64 `json:"errors"`
}

type ProcessStats struct {
	ResidentMemory int     `json:"resident_memory"`
	CPUTime        float64 `json:"cpu_time"`
	RxBytes        uint64  `json:"rx_bytes"`
	TxBytes        uint64  `json:"tx_bytes"`
}

type ConnectReq struct {
	Key      string `json:"key"`
	Password string `json:"password"`
	RobotID  string `json:"robot_id"`
}

type ConnectResp struct {
	Robot Robot
	Arena Arena
}

type Robot struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Type      string    `json:"type"`
}

type Arena struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
}

// RemoteCommand is an operator command line delivered over the server link.
type RemoteCommand struct {
	Line string `json:"line"`
	User string `json:"user"`
}

// RemoteControls carries one transmitter's pulse widths from the server link into the
// manual receiver.
type RemoteControls struct {
	Controller int                  `json:"controller"`
	Widths     [NumChannels]float64 `json:"widths"`
}
