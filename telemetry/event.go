package telemetry

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
	"time"
)

// Level is the severity of an error event or breadcrumb.
type Level string

const (
	LevelFatal   Level = "fatal"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelDebug   Level = "debug"
)

// User identifies who hit an error.
type User struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Breadcrumb is one entry of the trail leading up to an event.
type Breadcrumb struct {
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Frame is one stack frame, innermost call last.
type Frame struct {
	Function string `json:"function"`
	Filename string `json:"filename"`
	Lineno   int    `json:"lineno"`
}

type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// ExceptionValue describes one error of a wrapped chain.
type ExceptionValue struct {
	Type       string      `json:"type"`
	Value      string      `json:"value"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

type Exception struct {
	Values []ExceptionValue `json:"values"`
}

// ErrorEvent is the envelope delivered to a Transport.
type ErrorEvent struct {
	EventID     string            `json:"event_id"`
	Message     string            `json:"message"`
	Level       Level             `json:"level"`
	Timestamp   time.Time         `json:"timestamp"`
	Environment string            `json:"environment,omitempty"`
	Release     string            `json:"release,omitempty"`
	User        *User             `json:"user,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
	Fingerprint []string          `json:"fingerprint,omitempty"`
	Breadcrumbs []Breadcrumb      `json:"breadcrumbs,omitempty"`
	Exception   *Exception        `json:"exception,omitempty"`
}

// exceptionFrom lists err and every error it wraps, outermost first. The stack
// is attached to the outermost value.
func exceptionFrom(err error, stack *Stacktrace) *Exception {
	var values []ExceptionValue
	for e := err; e != nil; e = errors.Unwrap(e) {
		values = append(values, ExceptionValue{Type: fmt.Sprintf("%T", e), Value: e.Error()})
	}
	if len(values) > 0 {
		values[0].Stacktrace = stack
	}
	return &Exception{Values: values}
}

// callerStack captures the stack of the caller skip frames up, dropping runtime frames.
func callerStack(skip int) *Stacktrace {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []Frame
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, Frame{Function: f.Function, Filename: f.File, Lineno: f.Line})
		}
		if !more {
			break
		}
	}
	slices.Reverse(out)
	return &Stacktrace{Frames: out}
}

func (b Breadcrumb) clone() Breadcrumb {
	b.Data = maps.Clone(b.Data)
	return b
}

// ring keeps the most recent breadcrumbs, evicting the oldest.
type ring struct {
	buf   []Breadcrumb
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Breadcrumb, capacity)}
}

func (r *ring) push(b Breadcrumb) {
	if len(r.buf) == 0 {
		return
	}
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = b
		r.size++
		return
	}
	r.buf[r.start] = b
	r.start = (r.start + 1) % len(r.buf)
}

// items returns the breadcrumbs oldest first.
func (r *ring) items() []Breadcrumb {
	out := make([]Breadcrumb, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)].clone())
	}
	return out
}

func (r *ring) reset(capacity int) {
	kept := r.items()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}
	r.buf = make([]Breadcrumb, capacity)
	r.start = 0
	r.size = copy(r.buf, kept)
}
