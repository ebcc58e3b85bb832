package cfreader

import (
	"log"
	"os"
	"sync"
)

const (
	// error levels that should almost always be printed
	LevelFatal = iota
	LevelError

	// debugging levels, okay to disable
	LevelWarn
	LevelInfo

	logLevelDefault = LevelWarn
)

var levelToPrefix = []string{
	"FATAL ",
	"ERROR ",
	"WARN ",
	"INFO ",
}

type leveledLogger struct {
	level  int
	logger *log.Logger
	lock   sync.Mutex
}

var logger = &leveledLogger{
	level:  logLevelDefault,
	logger: log.New(os.Stderr, "", log.LstdFlags),
}

// SetLogLevel sets the reader's log verbosity and returns the old level.
func SetLogLevel(level int) int {
	if level < LevelFatal || level > LevelInfo {
		panic("trying to set invalid log level")
	}
	logger.lock.Lock()
	defer logger.lock.Unlock()
	old := logger.level
	logger.level = level
	return old
}

func (l *leveledLogger) outputf(level int, format string, v ...any) {
	if level > l.level {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	l.logger.SetPrefix(levelToPrefix[level])
	l.logger.Printf(format, v...)
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	l.outputf(LevelError, format, v...)
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	l.outputf(LevelWarn, format, v...)
}

func (l *leveledLogger) Infof(format string, v ...any) {
	l.outputf(LevelInfo, format, v...)
}
