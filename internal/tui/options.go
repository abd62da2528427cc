package tui

import (
	"time"

	"github.com/evanschultz/laneboard/internal/notify"
)

// Option configures a Model.
type Option func(*Model)

// Logger receives diagnostics the board cannot show inline.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// WithNotices subscribes the board to transition notices.
func WithNotices(ch <-chan notify.Notice) Option {
	return func(m *Model) {
		m.notices = ch
	}
}

// WithShowDescription toggles the description line under each card title.
func WithShowDescription(show bool) Option {
	return func(m *Model) {
		m.showDescription = show
	}
}

// WithDragThreshold sets the pointer travel in cells before a press starts a drag.
func WithDragThreshold(cells int) Option {
	return func(m *Model) {
		if cells >= 0 {
			m.dragThreshold = cells
		}
	}
}

// WithKeyConfig applies key overrides.
func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithClipboard replaces the clipboard writer used by the copy action.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyToClipboard = write
		}
	}
}

// WithLogger routes diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the clock used for notice expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMarkdownStyle selects the glamour standard style for task details.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		m.markdown.style = style
	}
}

// discardLogger drops every diagnostic.
type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Warn(string, ...any)  {}
