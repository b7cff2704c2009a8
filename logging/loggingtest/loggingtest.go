// Package loggingtest provides a minimal recording logging.Logger for
// use in tests that need to assert on emitted log lines.
package loggingtest

import (
	"fmt"
	"sync"

	"github.com/cnnlabs/cnn-routeomatic/logging"
)

// Recorder collects every log call it receives, in order.
type Recorder struct {
	mu      sync.Mutex
	entries []string
	fields  map[string]any
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// Entries returns a copy of the recorded lines.
func (r *Recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Recorder) record(level string, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fmt.Sprintf("[%s] %s %v", level, msg, r.fields))
}

func (r *Recorder) Error(a ...any)            { r.record("error", fmt.Sprint(a...)) }
func (r *Recorder) Errorf(f string, a ...any) { r.record("error", fmt.Sprintf(f, a...)) }
func (r *Recorder) Warn(a ...any)             { r.record("warn", fmt.Sprint(a...)) }
func (r *Recorder) Warnf(f string, a ...any)  { r.record("warn", fmt.Sprintf(f, a...)) }
func (r *Recorder) Info(a ...any)             { r.record("info", fmt.Sprint(a...)) }
func (r *Recorder) Infof(f string, a ...any)  { r.record("info", fmt.Sprintf(f, a...)) }
func (r *Recorder) Debug(a ...any)            { r.record("debug", fmt.Sprint(a...)) }
func (r *Recorder) Debugf(f string, a ...any) { r.record("debug", fmt.Sprintf(f, a...)) }

func (r *Recorder) WithFields(fields map[string]any) logging.Logger {
	merged := make(map[string]any, len(r.fields)+len(fields))
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Recorder{entries: r.entries, fields: merged}
}
