package log

import (
	"os"
	"sync"
)

// FileLogger appends liveness events to a .vlog capture file. A dropped
// event never surfaces as an error to the emitting connection or scheduler;
// capture is strictly an observer.
type FileLogger struct {
	mu sync.Mutex
	f  *os.File
	w  *Writer // nil once closed
}

// NewFileLogger opens (or creates, mode 0644) the capture file at path and
// appends to it. Captures from consecutive runs accumulate in one file.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{f: f, w: NewWriter(f)}, nil
}

// Log appends the event to the capture file. Safe for concurrent use;
// events logged after Close are discarded.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	_ = l.w.Write(event)
}

// Close closes the capture file. Idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	l.w = nil
	return l.f.Close()
}

var _ Logger = (*FileLogger)(nil)
