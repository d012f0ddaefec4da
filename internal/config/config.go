package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// GetConfig builds the app config from defaults, then the optional yaml file named by
// GORRC_CONFIGFILE, then GORRC_ environment variables.
func GetConfig() Config {
	cfg := DefaultConfig()

	if path := GetPathEnv("CONFIGFILE", ""); path != "" {
		err := LoadFile(&cfg, path)
		if err != nil {
			log.Printf("warning: config file %s not loaded - error: %s\n", path, err)
		}
	}

	ApplyEnv(&cfg)

	log.Printf("app Config: \n%+v\n", cfg)
	return cfg
}

func DefaultConfig() Config {
	pins := make([][]int, len(DefaultReceiverPins))
	for i := range DefaultReceiverPins {
		pins[i] = append([]int(nil), DefaultReceiverPins[i]...)
	}

	return Config{
		ServerCfg: ServerConfig{
			Server:         DefaultServer,
			Key:            DefaultRobotKey,
			Password:       DefaultPassword,
			HealthInterval: DefaultHealthInterval,
		},
		ReceiverCfg: ReceiverConfig{
			Driver:              DefaultReceiverDriver,
			Pins:                pins,
			MinPulse:            DefaultMinPulse,
			MaxPulse:            DefaultMaxPulse,
			StallTimeout:        DefaultStallTimeout,
			PollInterval:        DefaultPollInterval,
			SamplePeriod:        DefaultSamplePeriod,
			CalibrationWindow:   DefaultCalibrationWindow,
			CalibrationTick:     DefaultCalibrationTick,
			CalibrateOnStart:    DefaultCalibrateOnStart,
			PrintChannelsPeriod: DefaultPrintChannelsPeriod,
		},
		ArmingCfg: ArmingConfig{
			ArmingPeriod:       DefaultArmingPeriod,
			FailsafePeriod:     DefaultFailsafePeriod,
			DispatchPeriod:     DefaultDispatchPeriod,
			FailsafeEveryCycle: DefaultFailsafeEveryCycle,
		},
		EscCfg: EscConfig{
			Address:   DefaultAddress,
			I2CDevice: DefaultI2CDevice,
			EscCfgs:   DefaultEscChannels(),
		},
		OrientationCfg: OrientationConfig{
			Enabled:   DefaultOrientationOn,
			Address:   DefaultOrientationAddr,
			I2CDevice: DefaultI2CDevice,
			Period:    DefaultOrientationRate,
			Override:  DefaultOrientationOverr,
		},
		IndicatorCfg: IndicatorConfig{
			Enabled: DefaultIndicatorEnabled,
			Pins:    append([]int(nil), DefaultIndicatorPins...),
			Period:  DefaultIndicatorPeriod,
		},
		ConsoleCfg: ConsoleConfig{
			Enabled:   DefaultConsoleEnabled,
			Port:      DefaultConsolePort,
			BaudRate:  DefaultConsoleBaud,
			QueueSize: DefaultQueueSize,
		},
		TelemetryCfg: TelemetryConfig{
			Period:      DefaultTelemetryPeriod,
			FeedAddress: DefaultFeedAddress,
			SerialPort:  DefaultTelemetryPort,
			SerialBaud:  DefaultTelemetryBaud,
			NetDevice:   DefaultNetDevice,
		},
		LogCfg: LogConfig{
			File:       DefaultLogFile,
			MaxSize:    DefaultLogMaxSize,
			MaxBackups: DefaultLogMaxBackups,
			MaxAge:     DefaultLogMaxAge,
		},
	}
}

// DefaultEscChannels lays out drive0-2 on pca9685 channels 0-2 and weapon0-2 on channels 3-5.
func DefaultEscChannels() []EscChannelCfg {
	escs := make([]EscChannelCfg, 0, 6)
	for i := 0; i < 3; i++ {
		escs = append(escs, EscChannelCfg{
			Name:             fmt.Sprintf("%s%d", DefaultEscNameDrive, i),
			Driver:           DefaultEscDriver,
			Channel:          i,
			MinPulse:         DefaultEscMinPulse,
			MaxPulse:         DefaultEscMaxPulse,
			FailsafeThrottle: DefaultDriveFailsafe,
			Inverted:         DefaultEscInverted,
		})
	}
	for i := 0; i < 3; i++ {
		escs = append(escs, EscChannelCfg{
			Name:             fmt.Sprintf("%s%d", DefaultEscNameWeapon, i),
			Driver:           DefaultEscDriver,
			Channel:          i + 3,
			MinPulse:         DefaultEscMinPulse,
			MaxPulse:         DefaultEscMaxPulse,
			FailsafeThrottle: DefaultWeaponFailsafe,
			Inverted:         DefaultEscInverted,
		})
	}
	return escs
}

func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed reading config file: %w", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("failed parsing config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with any GORRC_ variables that are set. Current values act as defaults.
func ApplyEnv(cfg *Config) {
	cfg.ServerCfg = GetServerConfig(cfg.ServerCfg)
	cfg.ReceiverCfg = GetReceiverConfig(cfg.ReceiverCfg)
	cfg.ArmingCfg = GetArmingConfig(cfg.ArmingCfg)
	cfg.EscCfg = GetEscConfig(cfg.EscCfg)
	cfg.OrientationCfg = GetOrientationConfig(cfg.OrientationCfg)
	cfg.IndicatorCfg = GetIndicatorConfig(cfg.IndicatorCfg)
	cfg.ConsoleCfg = GetConsoleConfig(cfg.ConsoleCfg)
	cfg.TelemetryCfg = GetTelemetryConfig(cfg.TelemetryCfg)
	cfg.LogCfg = GetLogConfig(cfg.LogCfg)
}

func GetServerConfig(cfg ServerConfig) ServerConfig {
	return ServerConfig{
		Server:         GetPathEnv("SERVER", cfg.Server),
		Key:            GetStringEnv("ROBOTKEY", cfg.Key),
		Password:       GetPathEnv("ROBOTPASSWORD", cfg.Password),
		HealthInterval: GetIntEnv("HEALTH_INTERVAL_MS", cfg.HealthInterval),
	}
}

func GetReceiverConfig(cfg ReceiverConfig) ReceiverConfig {
	pins := make([][]int, len(cfg.Pins))
	for controller := range cfg.Pins {
		pins[controller] = make([]int, len(cfg.Pins[controller]))
		for channel := range cfg.Pins[controller] {
			envName := fmt.Sprintf("RX%d_CH%d_PIN", controller, channel)
			pins[controller][channel] = GetIntEnv(envName, cfg.Pins[controller][channel])
		}
	}

	return ReceiverConfig{
		Driver:              GetStringEnv("RXDRIVER", cfg.Driver),
		Pins:                pins,
		MinPulse:            GetFloatEnv("RX_MINPULSE", cfg.MinPulse),
		MaxPulse:            GetFloatEnv("RX_MAXPULSE", cfg.MaxPulse),
		StallTimeout:        GetIntEnv("RX_STALL_TIMEOUT_MS", cfg.StallTimeout),
		PollInterval:        GetIntEnv("RX_POLL_INTERVAL_US", cfg.PollInterval),
		SamplePeriod:        GetPeriodEnv("RX_SAMPLE_PERIOD_MS", cfg.SamplePeriod, DefaultSamplePeriod),
		CalibrationWindow:   GetIntEnv("CALIBRATION_WINDOW_MS", cfg.CalibrationWindow),
		CalibrationTick:     GetIntEnv("CALIBRATION_TICK_MS", cfg.CalibrationTick),
		CalibrateOnStart:    GetBoolEnv("CALIBRATE_ON_START", cfg.CalibrateOnStart),
		PrintChannelsPeriod: GetIntEnv("PRINT_CHANNELS_PERIOD_MS", cfg.PrintChannelsPeriod),
	}
}

func GetArmingConfig(cfg ArmingConfig) ArmingConfig {
	return ArmingConfig{
		ArmingPeriod:       GetPeriodEnv("ARMING_PERIOD_MS", cfg.ArmingPeriod, DefaultArmingPeriod),
		FailsafePeriod:     GetPeriodEnv("FAILSAFE_PERIOD_MS", cfg.FailsafePeriod, DefaultFailsafePeriod),
		DispatchPeriod:     GetPeriodEnv("DISPATCH_PERIOD_MS", cfg.DispatchPeriod, DefaultDispatchPeriod),
		FailsafeEveryCycle: GetBoolEnv("FAILSAFE_EVERY_CYCLE", cfg.FailsafeEveryCycle),
	}
}

func GetEscConfig(cfg EscConfig) EscConfig {
	escCfg := EscConfig{
		Address:   byte(GetIntEnv("ESC_ADDRESS", int(cfg.Address))),
		I2CDevice: GetPathEnv("I2CDEVICE", cfg.I2CDevice),
		EscCfgs:   make([]EscChannelCfg, 0, MaxSupportedEscs),
	}

	for i := 0; i < MaxSupportedEscs; i++ {
		current := EscChannelCfg{
			Driver:   DefaultEscDriver,
			Channel:  i,
			MinPulse: DefaultEscMinPulse,
			MaxPulse: DefaultEscMaxPulse,
		}
		if i < len(cfg.EscCfgs) {
			current = cfg.EscCfgs[i]
		}

		envPrefix := fmt.Sprintf("ESC%d_", i)
		esc := EscChannelCfg{
			Name:             GetStringEnv(envPrefix+"NAME", current.Name),
			Driver:           GetStringEnv(envPrefix+"DRIVER", current.Driver),
			Channel:          GetIntEnv(envPrefix+"CHANNEL", current.Channel),
			MaxPulse:         GetFloatEnv(envPrefix+"MAXPULSE", current.MaxPulse),
			MinPulse:         GetFloatEnv(envPrefix+"MINPULSE", current.MinPulse),
			FailsafeThrottle: GetFloatEnv(envPrefix+"FAILSAFE", current.FailsafeThrottle),
			Inverted:         GetBoolEnv(envPrefix+"INVERTED", current.Inverted),
		}

		if esc.Name != "" {
			escCfg.EscCfgs = append(escCfg.EscCfgs, esc)
		}
	}
	return escCfg
}

func GetOrientationConfig(cfg OrientationConfig) OrientationConfig {
	return OrientationConfig{
		Enabled:   GetBoolEnv("ORIENTATION_ENABLED", cfg.Enabled),
		Address:   byte(GetIntEnv("ORIENTATION_ADDRESS", int(cfg.Address))),
		I2CDevice: GetPathEnv("ORIENTATION_I2CDEVICE", cfg.I2CDevice),
		Period:    GetPeriodEnv("ORIENTATION_PERIOD_MS", cfg.Period, DefaultOrientationRate),
		Override:  GetStringEnv("ORIENTATION_OVERRIDE", cfg.Override),
	}
}

func GetIndicatorConfig(cfg IndicatorConfig) IndicatorConfig {
	pins := make([]int, len(cfg.Pins))
	for i := range cfg.Pins {
		pins[i] = GetIntEnv(fmt.Sprintf("LED%d_PIN", i), cfg.Pins[i])
	}
	return IndicatorConfig{
		Enabled: GetBoolEnv("LEDS_ENABLED", cfg.Enabled),
		Pins:    pins,
		Period:  GetPeriodEnv("LEDS_PERIOD_MS", cfg.Period, DefaultIndicatorPeriod),
	}
}

func GetConsoleConfig(cfg ConsoleConfig) ConsoleConfig {
	return ConsoleConfig{
		Enabled:   GetBoolEnv("CONSOLE_ENABLED", cfg.Enabled),
		Port:      GetPathEnv("CONSOLE_PORT", cfg.Port),
		BaudRate:  GetIntEnv("CONSOLE_BAUD", cfg.BaudRate),
		QueueSize: GetIntEnv("COMMAND_QUEUE_SIZE", cfg.QueueSize),
	}
}

func GetTelemetryConfig(cfg TelemetryConfig) TelemetryConfig {
	return TelemetryConfig{
		Period:      GetIntEnv("TELEMETRY_PERIOD_MS", cfg.Period),
		FeedAddress: GetPathEnv("TELEMETRY_FEED", cfg.FeedAddress),
		SerialPort:  GetPathEnv("TELEMETRY_PORT", cfg.SerialPort),
		SerialBaud:  GetIntEnv("TELEMETRY_BAUD", cfg.SerialBaud),
		NetDevice:   GetStringEnv("NETDEVICE", cfg.NetDevice),
	}
}

func GetLogConfig(cfg LogConfig) LogConfig {
	return LogConfig{
		File:       GetPathEnv("LOGFILE", cfg.File),
		MaxSize:    GetIntEnv("LOG_MAXSIZE_MB", cfg.MaxSize),
		MaxBackups: GetIntEnv("LOG_MAXBACKUPS", cfg.MaxBackups),
		MaxAge:     GetIntEnv("LOG_MAXAGE_DAYS", cfg.MaxAge),
	}
}

func GetIntEnv(env string, defaultValue int) int {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseInt(strings.Trim(envValue, "\r"), 0, 32)
		if err != nil {
			log.Printf("warning:%s not parsed - error: %s\n", env, err)
			return defaultValue
		} else {
			return int(value)
		}
	}
}

// GetPeriodEnv reads a loop period in ms. A period that is not positive, from the env or
// the config file, falls back so the loop it drives is never dropped.
func GetPeriodEnv(env string, current int, fallback int) int {
	value := GetIntEnv(env, current)
	if value <= 0 {
		log.Printf("warning:%s must be positive, got %d - using %d\n", env, value, fallback)
		return fallback
	}
	return value
}

func GetBoolEnv(env string, defaultValue bool) bool {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseBool(strings.Trim(envValue, "\r"))
		if err != nil {
			log.Printf("warning:%s not parsed - error: %s\n", env, err)
			return defaultValue
		} else {
			return value
		}
	}
}

func GetStringEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		return strings.ToLower(strings.Trim(envValue, "\r"))
	}
}

// GetPathEnv is GetStringEnv without case folding, for device paths and addresses.
func GetPathEnv(env string, defaultValue string) string {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	}
	return strings.Trim(envValue, "\r")
}

func GetFloatEnv(env string, defaultValue float64) float64 {
	envValue, found := os.LookupEnv(AppEnvBase + env)
	if !found {
		return defaultValue
	} else {
		value, err := strconv.ParseFloat(strings.Trim(envValue, "\r"), 64)
		if err != nil {
			return defaultValue
		}
		return value
	}
}
