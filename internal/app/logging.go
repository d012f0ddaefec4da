package app

import (
	"io"
	"log"
	"os"

	"github.com/Speshl/gorrc_bot/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging tees the standard logger into a rotating file when one is configured.
// The returned closer flushes and closes the file.
func SetupLogging(cfg config.LogConfig) io.Closer {
	if cfg.File == "" {
		return io.NopCloser(nil)
	}

	logFile := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.Printf("logging to %s\n", cfg.File)
	return logFile
}
