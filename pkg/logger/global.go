package logger

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// GetLogger returns the global logger instance, creating a JSON stdout logger
// on first use. LOG_LEVEL and DEBUG pick the default level.
func GetLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		level := "info"
		if os.Getenv("DEBUG") == "true" {
			level = "debug"
		} else if v := os.Getenv("LOG_LEVEL"); v != "" {
			level = v
		}
		globalLogger = New(Config{Level: level, Format: "json", Output: "stdout"})
	}
	return globalLogger
}

// SetLogger replaces the global logger. Components capture the logger at
// construction time, so call this before wiring anything.
func SetLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	log.Logger = logger.logger
	globalMu.Unlock()
}

func Debug(msg string) {
	GetLogger().Debug(msg)
}

func Info(msg string) {
	GetLogger().Info(msg)
}

func Warn(msg string) {
	GetLogger().Warn(msg)
}

func Error(msg string) {
	GetLogger().Error(msg)
}

func WithField(key string, value interface{}) *Logger {
	return GetLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *Logger {
	return GetLogger().WithFields(fields)
}

func WithError(err error) *Logger {
	return GetLogger().WithError(err)
}
