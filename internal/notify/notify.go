// Package notify provides user-feedback sinks for transition outcomes.
package notify

import (
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/evanschultz/laneboard/internal/app"
)

// Level classifies one notice.
type Level string

// Level values mirror the Notifier methods.
const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

// Notice is one user-facing feedback message.
type Notice struct {
	Level   Level
	Message string
	At      time.Time
}

// Logger is the structured logging surface used by LogSink.
type Logger interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// charmLogger adapts a charm logger to Logger.
type charmLogger struct {
	l *charmLog.Logger
}

// CharmLogger wraps a charm logger for LogSink.
func CharmLogger(l *charmLog.Logger) Logger {
	return charmLogger{l: l}
}

func (c charmLogger) Info(msg string, keyvals ...any) { c.l.Info(msg, keyvals...) }
func (c charmLogger) Warn(msg string, keyvals ...any) { c.l.Warn(msg, keyvals...) }

// LogSink writes notices as structured log lines.
type LogSink struct {
	logger Logger
}

// NewLogSink constructs a log-backed notifier.
func NewLogSink(logger Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Info implements app.Notifier.
func (s *LogSink) Info(message string) {
	s.logger.Info(message, "notice", LevelInfo)
}

// Success implements app.Notifier.
func (s *LogSink) Success(message string) {
	s.logger.Info(message, "notice", LevelSuccess)
}

// Failure implements app.Notifier.
func (s *LogSink) Failure(message string) {
	s.logger.Warn(message, "notice", LevelFailure)
}

// ChannelSink buffers notices for a single consumer such as the TUI loop.
// Sends never block; notices beyond capacity are dropped and counted.
type ChannelSink struct {
	ch    chan Notice
	now   func() time.Time
	mu    sync.Mutex
	drops int
}

// NewChannelSink constructs a sink with the given buffer size.
func NewChannelSink(capacity int, now func() time.Time) *ChannelSink {
	if capacity <= 0 {
		capacity = 16
	}
	if now == nil {
		now = time.Now
	}
	return &ChannelSink{ch: make(chan Notice, capacity), now: now}
}

// C returns the receive side of the sink.
func (s *ChannelSink) C() <-chan Notice {
	return s.ch
}

// Dropped returns the number of notices lost to a full buffer.
func (s *ChannelSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

func (s *ChannelSink) push(level Level, message string) {
	select {
	case s.ch <- Notice{Level: level, Message: message, At: s.now()}:
	default:
		s.mu.Lock()
		s.drops++
		s.mu.Unlock()
	}
}

// Info implements app.Notifier.
func (s *ChannelSink) Info(message string) { s.push(LevelInfo, message) }

// Success implements app.Notifier.
func (s *ChannelSink) Success(message string) { s.push(LevelSuccess, message) }

// Failure implements app.Notifier.
func (s *ChannelSink) Failure(message string) { s.push(LevelFailure, message) }

// Multi fans every notice out to each sink in order.
type Multi []app.Notifier

// Info implements app.Notifier.
func (m Multi) Info(message string) {
	for _, n := range m {
		if n != nil {
			n.Info(message)
		}
	}
}

// Success implements app.Notifier.
func (m Multi) Success(message string) {
	for _, n := range m {
		if n != nil {
			n.Success(message)
		}
	}
}

// Failure implements app.Notifier.
func (m Multi) Failure(message string) {
	for _, n := range m {
		if n != nil {
			n.Failure(message)
		}
	}
}

var (
	_ app.Notifier = (*LogSink)(nil)
	_ app.Notifier = (*ChannelSink)(nil)
	_ app.Notifier = Multi(nil)
)
