// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/CreativeUnicorns/suiteprefs"
)

// Entry is one captured log call.
type Entry struct {
	Level suiteprefs.LogLevel
	Msg   string
	Args  []any
}

// RecordingLogger is a suiteprefs.Logger that keeps every call for assertions.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

var _ suiteprefs.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) log(level suiteprefs.LogLevel, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.log(suiteprefs.LogLevelDebug, msg, args...) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.log(suiteprefs.LogLevelInfo, msg, args...) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.log(suiteprefs.LogLevelWarn, msg, args...) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.log(suiteprefs.LogLevelError, msg, args...) }
func (l *RecordingLogger) SetLevel(suiteprefs.LogLevel)  {}

// Count returns how many entries were logged at level.
func (l *RecordingLogger) Count(level suiteprefs.LogLevel) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Contains reports whether any entry at level has a message containing substr.
func (l *RecordingLogger) Contains(level suiteprefs.LogLevel, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

// Entries returns a copy of everything logged so far.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Reset drops all captured entries.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *RecordingLogger) String() string {
	var b strings.Builder
	for _, e := range l.Entries() {
		fmt.Fprintf(&b, "[%d] %s %v\n", e.Level, e.Msg, e.Args)
	}
	return b.String()
}
