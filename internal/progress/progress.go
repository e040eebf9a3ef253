// Package progress records pipeline milestones to an append-only event log.
//
// Every stage receives a *Reporter and reports its start, completion and
// failure through it. The reporter writes each event to a Sink (a text file
// in production, memory in tests) and mirrors it to the structured logger.
package progress

import (
	"fmt"
	"log/slog"
	"time"
)

// Level is the severity of a progress event.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// TimestampLayout is the timestamp format used in the progress log.
const TimestampLayout = "2006-01-02 15:04:05"

// Event is a single progress log entry.
type Event struct {
	Time    time.Time
	Level   Level
	Message string
}

// String formats the event as a progress log line (without newline).
func (e Event) String() string {
	return fmt.Sprintf("%s [%s] : %s", e.Time.Format(TimestampLayout), e.Level, e.Message)
}

// Sink stores progress events. Implementations only append.
type Sink interface {
	Append(Event) error
}

// Reporter emits progress events to a sink and the structured logger.
type Reporter struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewReporter creates a reporter writing to sink. A nil logger uses slog.Default().
func NewReporter(sink Sink, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Info records an INFO event.
func (r *Reporter) Info(format string, args ...any) {
	r.emit(LevelInfo, fmt.Sprintf(format, args...))
}

// Error records an ERROR event.
func (r *Reporter) Error(format string, args ...any) {
	r.emit(LevelError, fmt.Sprintf(format, args...))
}

func (r *Reporter) emit(level Level, msg string) {
	if level == LevelError {
		r.logger.Error(msg)
	} else {
		r.logger.Info(msg)
	}

	// A broken progress log must not fail the run
	if err := r.sink.Append(Event{Time: r.now(), Level: level, Message: msg}); err != nil {
		r.logger.Warn("failed to append progress event", "error", err)
	}
}
