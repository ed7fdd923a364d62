package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/environment"
)

// AnalyticsConfig carries the recognized initialize options.
type AnalyticsConfig struct {
	MeasurementID string `mapstructure:"measurement_id"`
	EnableDebug   bool   `mapstructure:"enable_debug"`
	// RespectDNT keeps the service uninitialized for the session when the
	// Do-Not-Track signal is active at Initialize.
	RespectDNT  bool `mapstructure:"respect_dnt"`
	AnonymizeIP bool `mapstructure:"anonymize_ip"`
	// MaxQueue bounds the pre-consent queue; the oldest event is dropped first.
	MaxQueue int `mapstructure:"max_queue"`
}

// Event is one analytics event with flat params.
type Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// PageView describes a page view. Empty fields are sent empty.
type PageView struct {
	Title    string `json:"page_title"`
	Location string `json:"page_location"`
	Path     string `json:"page_path"`
}

// Analytics forwards events to a Tagger once the user has consented.
type Analytics struct {
	store  *suiteprefs.Store
	env    environment.Signals
	tagger Tagger
	logger suiteprefs.Logger

	mu      sync.Mutex
	cfg     AnalyticsConfig
	consent bool
	blocked bool

	gate *gate[Event]
}

// NewAnalytics returns an uninitialized Analytics. Events tracked before
// Initialize are dropped.
func NewAnalytics(store *suiteprefs.Store, env environment.Signals, tagger Tagger) *Analytics {
	a := &Analytics{
		store:  store,
		env:    env,
		tagger: tagger,
		logger: store.Logger(),
	}
	a.gate = newGate[Event](DefaultMaxQueue, a.emit)
	return a
}

// Initialize configures the service and restores the persisted consent. With
// RespectDNT and an active Do-Not-Track signal it does nothing, for good.
func (a *Analytics) Initialize(ctx context.Context, cfg AnalyticsConfig) error {
	if cfg.MeasurementID == "" {
		return fmt.Errorf("%w: measurement id is required", suiteprefs.ErrInvalidInput)
	}

	if a.gate.current() != StateUninitialized {
		a.logger.Warn("Analytics already initialized")
		return nil
	}

	a.mu.Lock()
	if a.blocked || (cfg.RespectDNT && a.env.DoNotTrack()) {
		a.blocked = true
		a.mu.Unlock()
		a.logger.Info("Analytics disabled: Do-Not-Track is enabled")
		return nil
	}
	a.cfg = cfg
	a.mu.Unlock()

	consent := suiteprefs.Get(ctx, a.store, suiteprefs.KeyAnalyticsConsent, false)
	a.mu.Lock()
	a.consent = consent
	a.mu.Unlock()

	if consent {
		a.configure(ctx)
	}
	a.gate.open(consent, cfg.MaxQueue)
	a.logger.Info("Analytics initialized", "measurement_id", cfg.MeasurementID, "consent", consent)
	return nil
}

// SetConsent records the user's choice. Granting flushes the queued events in
// order; revoking stops emission and discards the queue.
func (a *Analytics) SetConsent(ctx context.Context, consent bool) {
	a.mu.Lock()
	a.consent = consent
	id := a.cfg.MeasurementID
	a.mu.Unlock()

	_ = a.store.Set(ctx, suiteprefs.KeyAnalyticsConsent, consent)

	switch state := a.gate.current(); {
	case consent && state == StateAwaitingConsent:
		a.configure(ctx)
		if n := a.gate.grant(ctx); n > 0 {
			a.debug("Processing queued analytics events", "count", n)
		}
	case !consent && state != StateUninitialized:
		if err := a.tagger.Tag(ctx, "set", "ga-disable-"+id, map[string]any{"disabled": true}); err != nil {
			a.logger.Error("Failed to send analytics opt-out", "error", err)
		}
		if n := a.gate.revoke(); n > 0 {
			a.debug("Discarded queued analytics events", "count", n)
		}
	}
}

// Consent returns the last recorded consent.
func (a *Analytics) Consent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.consent
}

func (a *Analytics) State() State {
	return a.gate.current()
}

// Queued returns the number of events waiting for consent.
func (a *Analytics) Queued() int {
	return a.gate.pending()
}

// TrackEvent emits ev, queues it while consent is pending, or drops it before
// Initialize.
func (a *Analytics) TrackEvent(ctx context.Context, ev Event) {
	ev.Params = maps.Clone(ev.Params)
	switch a.gate.submit(ctx, ev) {
	case queued:
		a.debug("Analytics event queued", "event", ev.Name)
	case dropped:
		a.logger.Debug("Analytics event dropped", "event", ev.Name, "state", StateUninitialized)
	}
}

// TrackPageView is only sent while live; page views are never queued.
func (a *Analytics) TrackPageView(ctx context.Context, pv PageView) {
	if !a.gate.live() {
		return
	}
	a.TrackEvent(ctx, Event{Name: "page_view", Params: map[string]any{
		"page_title":    pv.Title,
		"page_location": pv.Location,
		"page_path":     pv.Path,
	}})
}

func (a *Analytics) TrackInteraction(ctx context.Context, category, action, label string, value float64) {
	a.TrackEvent(ctx, Event{Name: "user_interaction", Params: map[string]any{
		"event_category": category,
		"event_action":   action,
		"event_label":    label,
		"value":          value,
	}})
}

// TrackError records err as an exception event. The params carry the outermost
// error's message and the type of the innermost wrapped error.
func (a *Analytics) TrackError(ctx context.Context, err error, fatal bool) {
	if err == nil {
		return
	}
	root := err
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	a.TrackEvent(ctx, Event{Name: "exception", Params: map[string]any{
		"description": err.Error(),
		"fatal":       fatal,
		"type":        fmt.Sprintf("%T", root),
	}})
}

// TrackTiming records d in milliseconds.
func (a *Analytics) TrackTiming(ctx context.Context, category, variable string, d time.Duration, label string) {
	a.TrackEvent(ctx, Event{Name: "timing_complete", Params: map[string]any{
		"name":           variable,
		"value":          d.Milliseconds(),
		"event_category": category,
		"event_label":    label,
	}})
}

// SetUserProperties is only sent while live.
func (a *Analytics) SetUserProperties(ctx context.Context, props map[string]any) {
	if !a.gate.live() {
		return
	}
	if err := a.tagger.Tag(ctx, "set", "user_properties", maps.Clone(props)); err != nil {
		a.logger.Error("Failed to set analytics user properties", "error", err)
	}
}

func (a *Analytics) configure(ctx context.Context) {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	err := a.tagger.Tag(ctx, "config", cfg.MeasurementID, map[string]any{
		"anonymize_ip":   cfg.AnonymizeIP,
		"send_page_view": false,
	})
	if err != nil {
		a.logger.Error("Failed to configure analytics", "error", err)
	}
}

func (a *Analytics) emit(ctx context.Context, ev Event) {
	a.debug("Tracking analytics event", "event", ev.Name)
	if err := a.tagger.Tag(ctx, "event", ev.Name, ev.Params); err != nil {
		a.logger.Error("Failed to send analytics event", "event", ev.Name, "error", err)
	}
}

func (a *Analytics) debug(msg string, args ...any) {
	a.mu.Lock()
	enabled := a.cfg.EnableDebug
	a.mu.Unlock()
	if enabled {
		a.logger.Debug(msg, args...)
	}
}
