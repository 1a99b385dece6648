// Package processlog collects the diagnostics of a conversion run.
//
// Components never fail a run for per-item problems; they report them through
// a Logger and move on to the next item. The Journal forwards every message to
// slog and keeps the ones that belong in the process log.
package processlog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
)

// String returns the lower-case name of the severity.
func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so entries serialize by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Severity) level() slog.Level {
	switch s {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger receives diagnostics. toProcessLog marks messages that should be
// kept in the persisted process journal in addition to the application log.
type Logger interface {
	Log(message string, severity Severity, toProcessLog bool)
}

// Discard is a Logger that drops every message.
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(string, Severity, bool) {}

// Entry is one retained diagnostic.
type Entry struct {
	Time     time.Time `json:"time"`
	RunID    string    `json:"run_id"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Journal is the Logger used by the pipeline.
type Journal struct {
	logger *slog.Logger
	runID  string
	prefix string

	mu      sync.Mutex
	entries []Entry
	counts  map[Severity]int
}

// NewJournal creates a journal with a fresh run ID. A nil logger falls back to
// slog.Default().
func NewJournal(logger *slog.Logger, prefix string) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	return &Journal{
		logger: logger.With("run_id", runID),
		runID:  runID,
		prefix: prefix,
		counts: make(map[Severity]int),
	}
}

// RunID identifies this run in every emitted record.
func (j *Journal) RunID() string {
	return j.runID
}

// Log implements Logger. Errors are always retained.
func (j *Journal) Log(message string, severity Severity, toProcessLog bool) {
	if j.prefix != "" {
		message = j.prefix + ": " + message
	}
	j.logger.Log(context.Background(), severity.level(), message)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.counts[severity]++
	if toProcessLog || severity == Error {
		j.entries = append(j.entries, Entry{
			Time:     time.Now().UTC(),
			RunID:    j.runID,
			Severity: severity,
			Message:  message,
		})
	}
}

// Entries returns a copy of the retained entries in emission order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Counts returns how many messages of each severity were logged.
func (j *Journal) Counts() map[Severity]int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[Severity]int, len(j.counts))
	for k, v := range j.counts {
		out[k] = v
	}
	return out
}

// WriteJSONLines writes the retained entries as one JSON object per line.
func (j *Journal) WriteJSONLines(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range j.Entries() {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
