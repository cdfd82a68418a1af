// Package logging provides named, leveled loggers on top of a hal.Logger sink.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"urdfpanel/hal"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (lvl Level) String() string {
	if lvl < 0 || int(lvl) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[lvl]
}

// ParseLevel maps a level name (case-insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG", "TRACE":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "OFF", "NONE":
		return LevelOff, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Log is a named logger.
type Log interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	DebugEnabled() bool
	Named(name string) Log
}

// Root owns the sink and the shared level of a logger family.
type Root struct {
	sink  hal.Logger
	level atomic.Int32
	now   func() time.Time
}

// New creates a root for sink at level.
func New(sink hal.Logger, level Level) *Root {
	r := &Root{sink: sink, now: time.Now}
	r.level.Store(int32(level))
	return r
}

func (r *Root) SetLevel(lvl Level) { r.level.Store(int32(lvl)) }
func (r *Root) Level() Level       { return Level(r.level.Load()) }

// Get returns a logger with the given name.
func (r *Root) Get(name string) Log {
	return &levelLogger{root: r, name: name}
}

type levelLogger struct {
	root *Root
	name string
}

func (l *levelLogger) Named(name string) Log {
	if l.name == "" {
		return &levelLogger{root: l.root, name: name}
	}
	return &levelLogger{root: l.root, name: l.name + "." + name}
}

func (l *levelLogger) DebugEnabled() bool { return l.enabled(LevelDebug) }

func (l *levelLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args) }
func (l *levelLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args) }
func (l *levelLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args) }
func (l *levelLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args) }

func (l *levelLogger) enabled(lvl Level) bool {
	return l.root != nil && l.root.sink != nil && lvl >= l.root.Level() && lvl < LevelOff
}

func (l *levelLogger) logf(lvl Level, format string, args []any) {
	if !l.enabled(lvl) {
		return
	}
	ts := l.root.now().Format("2006-01-02 15:04:05.000")
	l.root.sink.WriteLineString(fmt.Sprintf("%s %-5s %-16s %s", ts, lvl, l.name, fmt.Sprintf(format, args...)))
}

// Discard returns a logger that drops everything.
func Discard() Log {
	return &levelLogger{}
}
