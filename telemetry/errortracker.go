package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/environment"
)

const (
	DefaultEnvironment    = "production"
	DefaultMaxBreadcrumbs = 100
	// DefaultDeliveryBuffer bounds the events waiting for the transport.
	DefaultDeliveryBuffer = 100
)

// ErrorTrackingConfig carries the recognized initialize options.
type ErrorTrackingConfig struct {
	// DSN is the endpoint events are POSTed to when no Transport was supplied.
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
	// SampleRate in (0, 1) keeps that fraction of events. Anything else keeps all.
	SampleRate float64 `mapstructure:"sample_rate"`
	// BeforeSend may modify an event or return nil to drop it.
	BeforeSend     func(*ErrorEvent) *ErrorEvent `mapstructure:"-"`
	MaxBreadcrumbs int                           `mapstructure:"max_breadcrumbs"`
	// RequireConsent holds events back until SetConsent(true), like Analytics does.
	RequireConsent bool `mapstructure:"require_consent"`
	RespectDNT     bool `mapstructure:"respect_dnt"`
	DeliveryBuffer int  `mapstructure:"delivery_buffer"`
}

// ErrorTrackerOption configures an ErrorTracker.
type ErrorTrackerOption func(*ErrorTracker)

// WithTransport replaces the HTTP transport built from the DSN.
func WithTransport(t Transport) ErrorTrackerOption {
	return func(et *ErrorTracker) {
		et.transport = t
	}
}

// WithSampler replaces the random source used for sampling. fn returns values in [0, 1).
func WithSampler(fn func() float64) ErrorTrackerOption {
	return func(et *ErrorTracker) {
		et.random = fn
	}
}

// WithClock replaces time.Now for event and breadcrumb timestamps.
func WithClock(fn func() time.Time) ErrorTrackerOption {
	return func(et *ErrorTracker) {
		et.now = fn
	}
}

// ErrorTracker captures errors and messages, decorates them with user, tags
// and breadcrumbs, and delivers them asynchronously through a Transport.
type ErrorTracker struct {
	store     *suiteprefs.Store
	env       environment.Signals
	logger    suiteprefs.Logger
	transport Transport
	random    func() float64
	now       func() time.Time

	mu      sync.Mutex
	cfg     ErrorTrackingConfig
	blocked bool
	consent bool
	user    *User
	tags    map[string]string
	crumbs  *ring

	gate *gate[*ErrorEvent]

	sendMu sync.Mutex
	sendCh chan *ErrorEvent
	stopCh chan struct{}
	doneCh chan struct{}
	closed bool

	// idle is closed whenever inflight drops to zero and replaced when it leaves zero.
	pendingMu sync.Mutex
	inflight  int
	idle      chan struct{}
}

func NewErrorTracker(store *suiteprefs.Store, env environment.Signals, opts ...ErrorTrackerOption) *ErrorTracker {
	t := &ErrorTracker{
		store:  store,
		env:    env,
		logger: store.Logger(),
		random: rand.Float64,
		now:    time.Now,
		tags:   make(map[string]string),
		crumbs: newRing(DefaultMaxBreadcrumbs),
		idle:   make(chan struct{}),
	}
	close(t.idle)
	for _, opt := range opts {
		opt(t)
	}
	t.gate = newGate[*ErrorEvent](DefaultMaxQueue, t.enqueue)
	return t
}

// Initialize starts the delivery worker. With RespectDNT and an active
// Do-Not-Track signal it does nothing, for good. Close stops the worker.
func (t *ErrorTracker) Initialize(ctx context.Context, cfg ErrorTrackingConfig) error {
	if t.gate.current() != StateUninitialized {
		t.logger.Warn("Error tracking already initialized")
		return nil
	}
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	if cfg.MaxBreadcrumbs <= 0 {
		cfg.MaxBreadcrumbs = DefaultMaxBreadcrumbs
	}
	if cfg.DeliveryBuffer <= 0 {
		cfg.DeliveryBuffer = DefaultDeliveryBuffer
	}

	t.mu.Lock()
	if t.blocked || (cfg.RespectDNT && t.env.DoNotTrack()) {
		t.blocked = true
		t.mu.Unlock()
		t.logger.Info("Error tracking disabled: Do-Not-Track is enabled")
		return nil
	}
	t.cfg = cfg
	t.crumbs.reset(cfg.MaxBreadcrumbs)
	t.tags["runtime"] = runtime.Version()
	t.tags["platform"] = runtime.GOOS + "/" + runtime.GOARCH
	if locale := t.env.Locale(); locale != "" {
		t.tags["language"] = locale
	}
	t.mu.Unlock()

	if t.transport == nil {
		if cfg.DSN != "" {
			t.transport = NewHTTPTransport(cfg.DSN)
		} else {
			t.logger.Warn("Error tracking DSN not configured, events will be discarded")
			t.transport = discardTransport{}
		}
	}

	consent := true
	if cfg.RequireConsent {
		consent = suiteprefs.Get(ctx, t.store, suiteprefs.KeyErrorTrackingConsent, false)
	}
	t.mu.Lock()
	t.consent = consent
	t.mu.Unlock()

	t.sendMu.Lock()
	t.sendCh = make(chan *ErrorEvent, cfg.DeliveryBuffer)
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.run(t.sendCh, t.stopCh, t.doneCh)
	t.sendMu.Unlock()

	t.gate.open(consent, 0)
	t.logger.Info("Error tracking initialized", "environment", cfg.Environment, "consent", consent)
	return nil
}

// CaptureException reports err at error level and returns the event id, or ""
// when the event was not accepted.
func (t *ErrorTracker) CaptureException(ctx context.Context, err error, extra map[string]any) string {
	if err == nil {
		return ""
	}
	return t.capture(ctx, &ErrorEvent{
		Message:   err.Error(),
		Level:     LevelError,
		Extra:     maps.Clone(extra),
		Exception: exceptionFrom(err, callerStack(1)),
	})
}

// CaptureMessage reports msg. An empty level means info.
func (t *ErrorTracker) CaptureMessage(ctx context.Context, msg string, level Level, extra map[string]any) string {
	if level == "" {
		level = LevelInfo
	}
	return t.capture(ctx, &ErrorEvent{Message: msg, Level: level, Extra: maps.Clone(extra)})
}

// CapturePanic reports a recovered panic value at fatal level.
func (t *ErrorTracker) CapturePanic(ctx context.Context, v any) string {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	}
	return t.capture(ctx, &ErrorEvent{
		Message:   err.Error(),
		Level:     LevelFatal,
		Extra:     map[string]any{"panic": fmt.Sprint(v)},
		Exception: exceptionFrom(err, callerStack(2)),
	})
}

// Recover reports and swallows a panic. Use it as `defer tracker.Recover(ctx)`.
func (t *ErrorTracker) Recover(ctx context.Context) {
	if v := recover(); v != nil {
		t.logger.Error("Recovered panic", "panic", fmt.Sprint(v))
		t.CapturePanic(ctx, v)
	}
}

func (t *ErrorTracker) capture(ctx context.Context, ev *ErrorEvent) string {
	if t.gate.current() == StateUninitialized {
		return ""
	}

	t.mu.Lock()
	cfg := t.cfg
	if !t.sampledLocked() {
		t.mu.Unlock()
		t.logger.Debug("Error event sampled out", "message", ev.Message)
		return ""
	}
	ev.EventID = uuid.NewString()
	ev.Timestamp = t.now()
	ev.Environment = cfg.Environment
	ev.Release = cfg.Release
	if t.user != nil {
		u := *t.user
		ev.User = &u
	}
	ev.Tags = maps.Clone(t.tags)
	ev.Breadcrumbs = t.crumbs.items()
	t.mu.Unlock()

	if cfg.BeforeSend != nil {
		if ev = cfg.BeforeSend(ev); ev == nil {
			t.logger.Debug("Error event dropped by BeforeSend")
			return ""
		}
	}

	if t.gate.submit(ctx, ev) == dropped {
		return ""
	}
	return ev.EventID
}

func (t *ErrorTracker) sampledLocked() bool {
	r := t.cfg.SampleRate
	if r <= 0 || r >= 1 {
		return true
	}
	return t.random() < r
}

// AddBreadcrumb appends b to the trail, evicting the oldest entry once the trail is full.
// Breadcrumbs are kept even before Initialize.
func (t *ErrorTracker) AddBreadcrumb(b Breadcrumb) {
	if b.Type == "" {
		b.Type = "default"
	}
	if b.Level == "" {
		b.Level = LevelInfo
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.crumbs.push(b.clone())
}

// Breadcrumbs returns the trail, oldest first.
func (t *ErrorTracker) Breadcrumbs() []Breadcrumb {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.crumbs.items()
}

func (t *ErrorTracker) SetUser(u User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.user = &u
}

func (t *ErrorTracker) ClearUser() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.user = nil
}

func (t *ErrorTracker) SetTag(key, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags[key] = value
}

// SetTags merges tags into the current tags.
func (t *ErrorTracker) SetTags(tags map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	maps.Copy(t.tags, tags)
}

func (t *ErrorTracker) Tags() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.tags)
}

// SetConsent persists the choice. Granting flushes held events; revoking discards them.
func (t *ErrorTracker) SetConsent(ctx context.Context, consent bool) {
	t.mu.Lock()
	t.consent = consent
	t.mu.Unlock()

	_ = t.store.Set(ctx, suiteprefs.KeyErrorTrackingConsent, consent)
	if consent {
		t.gate.grant(ctx)
		return
	}
	t.gate.revoke()
}

func (t *ErrorTracker) Consent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consent
}

func (t *ErrorTracker) State() State {
	return t.gate.current()
}

// Flush waits until every accepted event has been handed to the transport.
// Events accepted while Flush waits are waited for too.
func (t *ErrorTracker) Flush(ctx context.Context) error {
	for {
		t.pendingMu.Lock()
		idle, n := t.idle, t.inflight
		t.pendingMu.Unlock()
		if n == 0 {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *ErrorTracker) addPending(delta int) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.inflight == 0 && delta > 0 {
		t.idle = make(chan struct{})
	}
	t.inflight += delta
	if t.inflight == 0 {
		close(t.idle)
	}
}

// Close delivers the buffered events and stops the worker. Later events are dropped.
func (t *ErrorTracker) Close() error {
	t.sendMu.Lock()
	if t.closed || t.stopCh == nil {
		t.closed = true
		t.sendMu.Unlock()
		return nil
	}
	t.closed = true
	close(t.stopCh)
	doneCh := t.doneCh
	t.sendMu.Unlock()

	<-doneCh
	return nil
}

// enqueue runs under the gate lock.
func (t *ErrorTracker) enqueue(_ context.Context, ev *ErrorEvent) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if t.closed || t.sendCh == nil {
		t.logger.Warn("Error tracker closed, dropping event", "event_id", ev.EventID)
		return
	}
	t.addPending(1)
	select {
	case t.sendCh <- ev:
	default:
		t.addPending(-1)
		t.logger.Warn("Error event buffer full, dropping event", "event_id", ev.EventID)
	}
}

func (t *ErrorTracker) run(sendCh <-chan *ErrorEvent, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case ev := <-sendCh:
			t.deliver(ev)
		case <-stopCh:
			for {
				select {
				case ev := <-sendCh:
					t.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (t *ErrorTracker) deliver(ev *ErrorEvent) {
	defer t.addPending(-1)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultSendTimeout)
	defer cancel()

	if err := t.transport.Send(ctx, ev); err != nil {
		level := t.logger.Error
		if errors.Is(err, ErrRateLimited) {
			level = t.logger.Warn
		}
		level("Failed to send error event", "event_id", ev.EventID, "error", err)
	}
}
