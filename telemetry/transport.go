package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Transport delivers one error event. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, ev *ErrorEvent) error
}

// ErrRateLimited is returned when an HTTPTransport drops an event to stay under its rate.
var ErrRateLimited = errors.New("telemetry: send rate exceeded")

const (
	DefaultSendTimeout = 10 * time.Second
	DefaultSendRate    = rate.Limit(10)
	DefaultSendBurst   = 20
)

// HTTPTransport POSTs each event as JSON to an endpoint. Failed sends are
// returned, never retried.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type HTTPTransportOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithSendRate sets the token bucket limiting sends. rate.Inf disables limiting.
func WithSendRate(r rate.Limit, burst int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.limiter = rate.NewLimiter(r, burst)
	}
}

func NewHTTPTransport(endpoint string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultSendTimeout},
		limiter:  rate.NewLimiter(DefaultSendRate, DefaultSendBurst),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Send(ctx context.Context, ev *ErrorEvent) error {
	if !t.limiter.Allow() {
		return ErrRateLimited
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal error event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build error event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send error event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send error event: unexpected status %s", resp.Status)
	}
	return nil
}

// RecordingTransport keeps delivered events in memory.
type RecordingTransport struct {
	mu     sync.Mutex
	events []*ErrorEvent
	Err    error
}

func (t *RecordingTransport) Send(_ context.Context, ev *ErrorEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.events = append(t.events, ev)
	return nil
}

// Events returns the delivered events in delivery order.
func (t *RecordingTransport) Events() []*ErrorEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*ErrorEvent(nil), t.events...)
}

type discardTransport struct{}

func (discardTransport) Send(context.Context, *ErrorEvent) error { return nil }
