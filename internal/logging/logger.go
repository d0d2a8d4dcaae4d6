// Package logging provides file-based debug logging for coordination
// components. Loggers are constructed once and passed to collaborators;
// a nil or file-less logger is a safe no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped log lines to a file with thread-safe access.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a logger writing to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func New(logPath string) (*Logger, error) {
	if logPath == "" {
		return &Logger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{file: f}
	l.Log("SYSTEM", "=== Log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewForRun creates a logger under <dir>/.concord/logs/coordination.log.
// Returns a no-op logger if the directory cannot be created.
func NewForRun(dir string) *Logger {
	logPath := filepath.Join(dir, ".concord", "logs", "coordination.log")
	l, err := New(logPath)
	if err != nil {
		return &Logger{}
	}
	return l
}

// Nop returns a no-op logger for testing or when logging is disabled.
func Nop() *Logger {
	return &Logger{}
}

// Log writes a timestamped, tagged message to the log.
// Safe to call on a nil logger or a logger without a file.
func (l *Logger) Log(tag, format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s %s\n", timestamp, tag, msg)
	l.file.Sync()
}

// Close closes the log file.
// Safe to call on a nil logger or a logger without a file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
