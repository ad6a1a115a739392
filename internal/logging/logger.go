// Package logging provides categorized file-based logging for axe.
// Logs are written to <config dir>/logs/ with a separate file per category.
// Logging is controlled by debug_mode in the user config - when false, every
// logger is a no-op so the interactive UI stays clean.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup and shutdown
	CategorySession Category = "session" // Session lifecycle
	CategoryStore   Category = "store"   // SQLite store operations
	CategoryTools   Category = "tools"   // Tool provider pool and tool execution
	CategoryAPI     Category = "api"     // Model backend calls
	CategoryTurn    Category = "turn"    // Conversation orchestrator
	CategoryUI      Category = "ui"      // Interaction controller
)

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*zap.SugaredLogger)
	logsDir string
	enabled bool
	level   = zapcore.InfoLevel
	nop     = zap.NewNop().Sugar()
)

// Initialize sets up the logging directory. When debug is false this is a
// silent no-op and every logger returned by Get discards its input.
func Initialize(dir string, debug bool, levelName string) error {
	mu.Lock()
	defer mu.Unlock()

	enabled = debug
	if !enabled {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logsDir = dir

	if lvl, err := zapcore.ParseLevel(levelName); err == nil {
		level = lvl
	} else {
		level = zapcore.InfoLevel
	}

	// Drop any loggers built against a previous directory.
	loggers = make(map[Category]*zap.SugaredLogger)

	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if !enabled {
		mu.RUnlock()
		return nop
	}
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l, err := newFileLogger(cat)
	if err != nil {
		// Fall back to a nop logger rather than failing the caller.
		loggers[cat] = nop
		return nop
	}
	loggers[cat] = l
	return l
}

func newFileLogger(cat Category) (*zap.SugaredLogger, error) {
	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(f),
		level,
	)
	return zap.New(core).Sugar().Named(string(cat)), nil
}

// Store logs an info message to the store category.
func Store(format string, args ...any) { Get(CategoryStore).Infof(format, args...) }

// StoreDebug logs a debug message to the store category.
func StoreDebug(format string, args ...any) { Get(CategoryStore).Debugf(format, args...) }

// Tools logs an info message to the tools category.
func Tools(format string, args ...any) { Get(CategoryTools).Infof(format, args...) }

// ToolsDebug logs a debug message to the tools category.
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debugf(format, args...) }

// Turn logs an info message to the turn category.
func Turn(format string, args ...any) { Get(CategoryTurn).Infof(format, args...) }

// TurnDebug logs a debug message to the turn category.
func TurnDebug(format string, args ...any) { Get(CategoryTurn).Debugf(format, args...) }

// Session logs an info message to the session category.
func Session(format string, args ...any) { Get(CategorySession).Infof(format, args...) }

// API logs an info message to the api category.
func API(format string, args ...any) { Get(CategoryAPI).Infof(format, args...) }

// APIDebug logs a debug message to the api category.
func APIDebug(format string, args ...any) { Get(CategoryAPI).Debugf(format, args...) }
