package config

import "time"

const (
	MaxSupportedEscs = 16
	AppEnvBase       = "GORRC_"

	DefaultServer         = ""
	DefaultRobotKey       = ""
	DefaultPassword       = ""
	DefaultHealthInterval = 30000

	// Default Receiver Options
	DefaultReceiverDriver      = "gpio"
	DefaultMinPulse            = 1000
	DefaultMaxPulse            = 2000
	DefaultStallTimeout        = 100
	DefaultPollInterval        = 20
	DefaultSamplePeriod        = 5
	DefaultCalibrationWindow   = 10000
	DefaultCalibrationTick     = 100
	DefaultCalibrateOnStart    = false
	DefaultPrintChannelsPeriod = 0

	// Default Arming Options
	DefaultArmingPeriod       = 1000
	DefaultFailsafePeriod     = 10
	DefaultDispatchPeriod     = 20
	DefaultFailsafeEveryCycle = false

	// Default Esc Options
	DefaultEscDriver        = "pca9685"
	DefaultAddress          = 0x40
	DefaultI2CDevice        = "/dev/i2c-1"
	DefaultEscMinPulse      = 1000
	DefaultEscMaxPulse      = 2000
	DefaultDriveFailsafe    = 50
	DefaultWeaponFailsafe   = 0
	DefaultEscInverted      = false
	DefaultEscNameDrive     = "drive"
	DefaultEscNameWeapon    = "weapon"
	DefaultOrientationAddr  = 0x28
	DefaultOrientationRate  = 50
	DefaultOrientationOn    = true
	DefaultOrientationOverr = ""

	// Default Indicator Options
	DefaultIndicatorEnabled = true
	DefaultIndicatorPeriod  = 100

	// Default Console Options
	DefaultConsoleEnabled = true
	DefaultConsolePort    = ""
	DefaultConsoleBaud    = 115200
	DefaultQueueSize      = 16

	// Default Telemetry Options
	DefaultTelemetryPeriod = 1000
	DefaultFeedAddress     = ""
	DefaultTelemetryPort   = ""
	DefaultTelemetryBaud   = 115200
	DefaultNetDevice       = "wlan0"

	// Default Log Options
	DefaultLogFile       = ""
	DefaultLogMaxSize    = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAge     = 28
)

var DefaultReceiverPins = [][]int{
	{4, 17, 27, 22, 5, 6},    //weapon transmitter
	{23, 24, 25, 16, 20, 21}, //drive transmitter
}

var DefaultIndicatorPins = []int{26, 7, 8, 11}

type Config struct {
	ServerCfg      ServerConfig      `yaml:"server"`
	ReceiverCfg    ReceiverConfig    `yaml:"receiver"`
	ArmingCfg      ArmingConfig      `yaml:"arming"`
	EscCfg         EscConfig         `yaml:"esc"`
	OrientationCfg OrientationConfig `yaml:"orientation"`
	IndicatorCfg   IndicatorConfig   `yaml:"indicator"`
	ConsoleCfg     ConsoleConfig     `yaml:"console"`
	TelemetryCfg   TelemetryConfig   `yaml:"telemetry"`
	LogCfg         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Server         string `yaml:"server"`
	Key            string `yaml:"key"`
	Password       string `yaml:"password"`
	HealthInterval int    `yaml:"healthIntervalMs"`
}

type ReceiverConfig struct {
	Driver              string  `yaml:"driver"`
	Pins                [][]int `yaml:"pins"`
	MinPulse            float64 `yaml:"minPulse"`
	MaxPulse            float64 `yaml:"maxPulse"`
	StallTimeout        int     `yaml:"stallTimeoutMs"`
	PollInterval        int     `yaml:"pollIntervalUs"`
	SamplePeriod        int     `yaml:"samplePeriodMs"`
	CalibrationWindow   int     `yaml:"calibrationWindowMs"`
	CalibrationTick     int     `yaml:"calibrationTickMs"`
	CalibrateOnStart    bool    `yaml:"calibrateOnStart"`
	PrintChannelsPeriod int     `yaml:"printChannelsPeriodMs"`
}

type ArmingConfig struct {
	ArmingPeriod       int  `yaml:"armingPeriodMs"`
	FailsafePeriod     int  `yaml:"failsafePeriodMs"`
	DispatchPeriod     int  `yaml:"dispatchPeriodMs"`
	FailsafeEveryCycle bool `yaml:"failsafeEveryCycle"`
}

type EscConfig struct {
	Address   byte            `yaml:"address"`
	I2CDevice string          `yaml:"i2cDevice"`
	EscCfgs   []EscChannelCfg `yaml:"escs"`
}

type EscChannelCfg struct {
	Name             string  `yaml:"name"`
	Driver           string  `yaml:"driver"`
	Channel          int     `yaml:"channel"`
	MinPulse         float64 `yaml:"minPulse"`
	MaxPulse         float64 `yaml:"maxPulse"`
	FailsafeThrottle float64 `yaml:"failsafeThrottle"`
	Inverted         bool    `yaml:"inverted"`
}

type OrientationConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   byte   `yaml:"address"`
	I2CDevice string `yaml:"i2cDevice"`
	Period    int    `yaml:"periodMs"`
	Override  string `yaml:"override"`
}

type IndicatorConfig struct {
	Enabled bool  `yaml:"enabled"`
	Pins    []int `yaml:"pins"`
	Period  int   `yaml:"periodMs"`
}

type ConsoleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      string `yaml:"port"`
	BaudRate  int    `yaml:"baudRate"`
	QueueSize int    `yaml:"queueSize"`
}

type TelemetryConfig struct {
	Period      int    `yaml:"periodMs"`
	FeedAddress string `yaml:"feedAddress"`
	SerialPort  string `yaml:"serialPort"`
	SerialBaud  int    `yaml:"serialBaud"`
	NetDevice   string `yaml:"netDevice"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAgeDays"`
}

func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
