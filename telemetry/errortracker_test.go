package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/environment"
	"github.com/CreativeUnicorns/suiteprefs/internal/testutil"
	"github.com/CreativeUnicorns/suiteprefs/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type trackerFixture struct {
	backend   *storage.MemoryStorage
	env       *environment.Static
	logger    *testutil.RecordingLogger
	transport *RecordingTransport
	clock     *fakeClock
	tracker   *ErrorTracker
}

func newTrackerFixture(t *testing.T, opts ...ErrorTrackerOption) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		backend:   storage.NewMemoryStorage(),
		env:       environment.NewStatic(environment.StaticConfig{Locale: "en-US"}),
		logger:    &testutil.RecordingLogger{},
		transport: &RecordingTransport{},
		clock:     &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	store := suiteprefs.NewStore(suiteprefs.WithBackend(f.backend), suiteprefs.WithLogger(f.logger))
	opts = append([]ErrorTrackerOption{WithTransport(f.transport), WithClock(f.clock.Now)}, opts...)
	f.tracker = NewErrorTracker(store, f.env, opts...)
	t.Cleanup(func() { f.tracker.Close() })
	return f
}

func (f *trackerFixture) flush(t *testing.T) []*ErrorEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.tracker.Flush(ctx))
	return f.transport.Events()
}

func TestErrorTracker_IgnoredBeforeInitialize(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	assert.Empty(t, f.tracker.CaptureException(ctx, errors.New("boom"), nil))
	assert.Empty(t, f.tracker.CaptureMessage(ctx, "hello", LevelInfo, nil))
	assert.Empty(t, f.flush(t))
}

func TestErrorTracker_CaptureException(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{Release: "1.2.3"}))

	f.tracker.SetUser(User{ID: "u1", Email: "u1@example.com"})
	f.tracker.SetTags(map[string]string{"tool": "writer"})
	f.tracker.AddBreadcrumb(Breadcrumb{Category: "ui", Message: "clicked save"})

	base := errors.New("disk full")
	id := f.tracker.CaptureException(ctx, fmt.Errorf("save prefs: %w", base), map[string]any{"attempt": 2})
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	events := f.flush(t)
	require.Len(t, events, 1)
	ev := events[0]

	assert.Equal(t, id, ev.EventID)
	assert.Equal(t, "save prefs: disk full", ev.Message)
	assert.Equal(t, LevelError, ev.Level)
	assert.Equal(t, DefaultEnvironment, ev.Environment)
	assert.Equal(t, "1.2.3", ev.Release)
	assert.Equal(t, f.clock.Now(), ev.Timestamp)
	assert.Equal(t, &User{ID: "u1", Email: "u1@example.com"}, ev.User)
	assert.Equal(t, "writer", ev.Tags["tool"])
	assert.Equal(t, "en-US", ev.Tags["language"])
	assert.NotEmpty(t, ev.Tags["runtime"])
	assert.Equal(t, 2, ev.Extra["attempt"])
	require.Len(t, ev.Breadcrumbs, 1)
	assert.Equal(t, "clicked save", ev.Breadcrumbs[0].Message)

	require.NotNil(t, ev.Exception)
	require.Len(t, ev.Exception.Values, 2)
	assert.Equal(t, "*fmt.wrapError", ev.Exception.Values[0].Type)
	assert.Equal(t, "disk full", ev.Exception.Values[1].Value)
	require.NotNil(t, ev.Exception.Values[0].Stacktrace)
	frames := ev.Exception.Values[0].Stacktrace.Frames
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[len(frames)-1].Function, "TestErrorTracker_CaptureException")
}

func TestErrorTracker_ClearUser(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{}))

	f.tracker.SetUser(User{ID: "u1"})
	f.tracker.ClearUser()
	f.tracker.CaptureMessage(ctx, "anonymous", "", nil)

	events := f.flush(t)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].User)
	assert.Equal(t, LevelInfo, events[0].Level)
}

func TestErrorTracker_BeforeSend(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{
		BeforeSend: func(ev *ErrorEvent) *ErrorEvent {
			if ev.Message == "secret" {
				return nil
			}
			ev.Fingerprint = []string{"grouped"}
			return ev
		},
	}))

	assert.Empty(t, f.tracker.CaptureMessage(ctx, "secret", LevelWarning, nil))
	assert.NotEmpty(t, f.tracker.CaptureMessage(ctx, "public", LevelWarning, nil))

	events := f.flush(t)
	require.Len(t, events, 1)
	assert.Equal(t, "public", events[0].Message)
	assert.Equal(t, []string{"grouped"}, events[0].Fingerprint)
}

func TestErrorTracker_Sampling(t *testing.T) {
	rolls := []float64{0.1, 0.9, 0.49, 0.5}
	var i int
	f := newTrackerFixture(t, WithSampler(func() float64 {
		r := rolls[i%len(rolls)]
		i++
		return r
	}))
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{SampleRate: 0.5}))

	for n := 0; n < 4; n++ {
		f.tracker.CaptureMessage(ctx, fmt.Sprintf("m%d", n), LevelError, nil)
	}

	events := f.flush(t)
	require.Len(t, events, 2)
	assert.Equal(t, "m0", events[0].Message)
	assert.Equal(t, "m2", events[1].Message)
}

func TestErrorTracker_SampleRateOutOfRangeKeepsAll(t *testing.T) {
	f := newTrackerFixture(t, WithSampler(func() float64 { return 0.99 }))
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{SampleRate: 0}))

	f.tracker.CaptureMessage(ctx, "kept", LevelError, nil)
	assert.Len(t, f.flush(t), 1)
}

func TestErrorTracker_BreadcrumbEviction(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{MaxBreadcrumbs: 3}))

	for n := 1; n <= 5; n++ {
		f.tracker.AddBreadcrumb(Breadcrumb{Category: "nav", Message: fmt.Sprintf("b%d", n)})
	}

	var got []string
	for _, b := range f.tracker.Breadcrumbs() {
		got = append(got, b.Message)
		assert.Equal(t, "default", b.Type)
		assert.Equal(t, LevelInfo, b.Level)
	}
	assert.Equal(t, []string{"b3", "b4", "b5"}, got)
}

func TestErrorTracker_DefaultBreadcrumbCap(t *testing.T) {
	f := newTrackerFixture(t)
	for n := 0; n < DefaultMaxBreadcrumbs+5; n++ {
		f.tracker.AddBreadcrumb(Breadcrumb{Message: fmt.Sprint(n)})
	}
	crumbs := f.tracker.Breadcrumbs()
	require.Len(t, crumbs, DefaultMaxBreadcrumbs)
	assert.Equal(t, "5", crumbs[0].Message)
}

func TestErrorTracker_RequireConsent(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{RequireConsent: true}))
	assert.Equal(t, StateAwaitingConsent, f.tracker.State())

	f.tracker.CaptureMessage(ctx, "held-1", LevelError, nil)
	f.tracker.CaptureMessage(ctx, "held-2", LevelError, nil)
	assert.Empty(t, f.flush(t))

	f.tracker.SetConsent(ctx, true)
	events := f.flush(t)
	require.Len(t, events, 2)
	assert.Equal(t, "held-1", events[0].Message)
	assert.Equal(t, "held-2", events[1].Message)

	f.tracker.SetConsent(ctx, false)
	f.tracker.CaptureMessage(ctx, "after-revoke", LevelError, nil)
	f.tracker.SetConsent(ctx, false)
	f.tracker.SetConsent(ctx, true)
	assert.Len(t, f.flush(t), 2)
}

func TestErrorTracker_DoNotTrack(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.env.SetDoNotTrack(true)

	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{RespectDNT: true}))
	assert.Equal(t, StateUninitialized, f.tracker.State())
	assert.Empty(t, f.tracker.CaptureMessage(ctx, "ignored", LevelError, nil))
	assert.Empty(t, f.flush(t))
}

func TestErrorTracker_Recover(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{}))

	func() {
		defer f.tracker.Recover(ctx)
		panic("nil map write")
	}()

	events := f.flush(t)
	require.Len(t, events, 1)
	assert.Equal(t, LevelFatal, events[0].Level)
	assert.Equal(t, "panic: nil map write", events[0].Message)
	assert.Equal(t, "nil map write", events[0].Extra["panic"])
	assert.True(t, f.logger.Contains(suiteprefs.LogLevelError, "Recovered panic"))
}

func TestErrorTracker_TransportFailureIsLogged(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	f.transport.Err = errors.New("connection refused")
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{}))

	f.tracker.CaptureMessage(ctx, "lost", LevelError, nil)
	assert.Empty(t, f.flush(t))
	assert.True(t, f.logger.Contains(suiteprefs.LogLevelError, "Failed to send error event"))
}

func TestErrorTracker_CloseDropsLaterEvents(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{}))

	f.tracker.CaptureMessage(ctx, "before", LevelError, nil)
	require.NoError(t, f.tracker.Close())
	require.NoError(t, f.tracker.Close())

	f.tracker.CaptureMessage(ctx, "after", LevelError, nil)
	events := f.flush(t)
	require.Len(t, events, 1)
	assert.Equal(t, "before", events[0].Message)
	assert.True(t, f.logger.Contains(suiteprefs.LogLevelWarn, "closed"))
}

func TestErrorTracker_Transaction(t *testing.T) {
	f := newTrackerFixture(t)

	tx := f.tracker.StartTransaction("export", "theme.export")
	span := tx.StartSpan("marshal")
	f.clock.Advance(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, span.Finish())
	assert.Equal(t, time.Duration(0), span.Finish())
	f.clock.Advance(30 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, tx.Finish())
	assert.Equal(t, time.Duration(0), tx.Finish())

	crumbs := f.tracker.Breadcrumbs()
	require.Len(t, crumbs, 1)
	b := crumbs[0]
	assert.Equal(t, "performance", b.Category)
	assert.Equal(t, "Transaction: export", b.Message)
	assert.Equal(t, "theme.export", b.Data["operation"])
	assert.Equal(t, 50*time.Millisecond, b.Data["duration"])
	assert.Equal(t, []SpanTiming{{Name: "marshal", Duration: 20 * time.Millisecond}}, b.Data["spans"])
}

// blockingTransport holds every Send until release is closed.
type blockingTransport struct {
	RecordingTransport
	release chan struct{}
}

func (b *blockingTransport) Send(ctx context.Context, ev *ErrorEvent) error {
	<-b.release
	return b.RecordingTransport.Send(ctx, ev)
}

func TestErrorTracker_FlushWithConcurrentCaptures(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{DeliveryBuffer: 500}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				f.tracker.CaptureMessage(ctx, fmt.Sprintf("event %d-%d", i, j), LevelError, nil)
			}
		}(i)
		go func() {
			defer wg.Done()
			flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			assert.NoError(t, f.tracker.Flush(flushCtx))
		}()
	}
	wg.Wait()

	assert.Len(t, f.flush(t), 200)
}

func TestErrorTracker_FlushHonorsCancelledContext(t *testing.T) {
	transport := &blockingTransport{release: make(chan struct{})}
	f := newTrackerFixture(t, WithTransport(transport))
	ctx := context.Background()
	require.NoError(t, f.tracker.Initialize(ctx, ErrorTrackingConfig{}))

	f.tracker.CaptureMessage(ctx, "stuck", LevelError, nil)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, f.tracker.Flush(cancelled), context.Canceled)

	short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, f.tracker.Flush(short), context.DeadlineExceeded)

	close(transport.release)
	require.NoError(t, f.tracker.Flush(ctx))
	require.Len(t, transport.Events(), 1)
	assert.Equal(t, "stuck", transport.Events()[0].Message)
}
