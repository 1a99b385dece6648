package processlog

import (
	"strings"
	"sync"
)

// Recorder is an in-memory Logger that collects diagnostics without emitting
// them.
type Recorder struct {
	mu      sync.Mutex
	Records []Record
}

// Record is one message captured by a Recorder.
type Record struct {
	Message      string
	Severity     Severity
	ToProcessLog bool
}

// Log implements Logger.
func (r *Recorder) Log(message string, severity Severity, toProcessLog bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, Record{Message: message, Severity: severity, ToProcessLog: toProcessLog})
}

// Count returns the number of records with the given severity.
func (r *Recorder) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.Records {
		if rec.Severity == severity {
			n++
		}
	}
	return n
}

// Contains reports whether any record message contains substr.
func (r *Recorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.Records {
		if strings.Contains(rec.Message, substr) {
			return true
		}
	}
	return false
}
