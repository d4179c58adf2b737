package logx

import (
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is the logging threshold.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	level.Store(int32(l))
}

// SetVerbose enables debug logging.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(LevelDebug)
		return
	}
	SetLevel(LevelInfo)
}

// ParseLevel maps "error", "warn", "info", "debug" to a Level; unknown values are info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

func enabled(l Level) bool {
	return Level(level.Load()) >= l
}

func Errorf(format string, args ...any) {
	if enabled(LevelError) {
		logger.Printf("[ERROR] "+format, args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled(LevelWarn) {
		logger.Printf("[WARN] "+format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(LevelInfo) {
		logger.Printf("[INFO] "+format, args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled(LevelDebug) {
		logger.Printf("[DEBUG] "+format, args...)
	}
}
