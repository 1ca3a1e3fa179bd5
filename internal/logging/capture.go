package logging

import (
	"fmt"
	"sync"
)

// CaptureLogger records log lines in memory. Intended for tests.
type CaptureLogger struct {
	mu    sync.Mutex
	lines []string
}

// NewCaptureLogger returns an empty in-memory logger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (c *CaptureLogger) record(level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, level+" "+fmt.Sprintf(format, args...))
}

func (c *CaptureLogger) Debug(format string, args ...any) { c.record("DEBUG", format, args...) }
func (c *CaptureLogger) Info(format string, args ...any)  { c.record("INFO", format, args...) }
func (c *CaptureLogger) Warn(format string, args ...any)  { c.record("WARN", format, args...) }
func (c *CaptureLogger) Error(format string, args ...any) { c.record("ERROR", format, args...) }

// Lines returns a copy of everything recorded so far.
func (c *CaptureLogger) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}
