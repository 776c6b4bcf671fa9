// Package logging provides leveled loggers on stderr, selected with the
// LOG_LEVEL environment variable (DEBUG, INFO, WARNING, ERROR).
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

const (
	DebugLevel   = 10
	InfoLevel    = 20
	WarningLevel = 30
	ErrorLevel   = 40
)

const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lmsgprefix

// Logger writes "msg key=value ..." lines through one log.Logger per level.
type Logger struct {
	level int
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
}

// New builds a logger writing to w at the given level.
func New(w io.Writer, level int) *Logger {
	return &Logger{
		level: level,
		debug: log.New(w, "DEBUG ", flags),
		info:  log.New(w, "INFO ", flags),
		warn:  log.New(w, "WARNING ", flags),
		err:   log.New(w, "ERROR ", flags),
	}
}

// FromEnv builds a stderr logger at the level named by LOG_LEVEL.
func FromEnv() *Logger {
	level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
	l := New(os.Stderr, level)
	if !ok {
		l.Warn("unrecognized LOG_LEVEL, keeping INFO", "value", os.Getenv("LOG_LEVEL"))
	}
	return l
}

// ParseLevel maps a level name to its value. An empty name is INFO.
func ParseLevel(name string) (int, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DebugLevel, true
	case "INFO", "":
		return InfoLevel, true
	case "WARNING", "WARN":
		return WarningLevel, true
	case "ERROR":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if l.level <= DebugLevel {
		l.debug.Print(format(msg, keysAndValues))
	}
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if l.level <= InfoLevel {
		l.info.Print(format(msg, keysAndValues))
	}
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if l.level <= WarningLevel {
		l.warn.Print(format(msg, keysAndValues))
	}
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	if l.level <= ErrorLevel {
		l.err.Print(format(msg, keysAndValues))
	}
}

func format(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keysAndValues[i])
		}
	}
	return b.String()
}
