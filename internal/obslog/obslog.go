// Package obslog wires the process-wide op/go-logging backend for the
// nomad-ctl and nomad-agent binaries: a leveled formatter over either
// stderr or a lumberjack-rotated file, so every package's
// logging.MustGetLogger(name) writes through the same sink.
package obslog

import (
	"fmt"
	"io"
	"os"

	logging "github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the destination and verbosity of the process log.
type Config struct {
	Level string // one of CRITICAL, ERROR, WARNING, NOTICE, INFO, DEBUG

	// File, when non-empty, routes logs through a rotating lumberjack
	// writer instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

const defaultFormat = `%{time:2006-01-02T15:04:05.000Z07:00} %{level:.4s} %{module}: %{message}`

// Configure installs the process-wide logging backend. It must run once,
// before any package's init() logger is first used in anger.
func Configure(cfg Config) error {
	backend := logging.NewLogBackend(sink(cfg), "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(defaultFormat))
	leveled := logging.AddModuleLevel(formatted)

	level, err := logging.LogLevel(levelOrDefault(cfg.Level))
	if err != nil {
		return fmt.Errorf("obslog: invalid level %q: %w", cfg.Level, err)
	}
	leveled.SetLevel(level, "")

	logging.SetBackend(leveled)
	return nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "INFO"
	}
	return level
}

func sink(cfg Config) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}
