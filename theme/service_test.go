package theme

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/document"
	"github.com/CreativeUnicorns/suiteprefs/environment"
	"github.com/CreativeUnicorns/suiteprefs/internal/testutil"
	"github.com/CreativeUnicorns/suiteprefs/storage"
)

type fixture struct {
	backend *storage.MemoryStorage
	store   *suiteprefs.Store
	env     *environment.Static
	root    *document.Root
	logger  *testutil.RecordingLogger
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: storage.NewMemoryStorage(),
		env:     environment.NewStatic(environment.StaticConfig{}),
		logger:  &testutil.RecordingLogger{},
	}
	f.reopen(t)
	return f
}

// reopen builds a fresh Service over the same backend, like a process restart.
func (f *fixture) reopen(t *testing.T) {
	t.Helper()
	f.store = suiteprefs.NewStore(suiteprefs.WithBackend(f.backend), suiteprefs.WithLogger(f.logger))
	f.root = document.NewRoot()
	f.svc = NewService(f.store, f.env, f.root)
	t.Cleanup(func() { f.svc.Close() })
}

func ocean() *CustomTheme {
	t, _ := PresetByName("Ocean Blue")
	return &t
}

func TestService_ConstructedInAuto(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, ModeAuto, f.svc.Mode())
	assert.Nil(t, f.svc.CustomTheme())
}

func TestService_InitializeDefaults(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Initialize(context.Background(), Config{DefaultMode: ModeLight}))

	assert.Equal(t, ModeLight, f.svc.Mode())
	assert.Equal(t, []string{ClassLight}, f.root.Classes())
	meta, _ := f.root.Meta(document.MetaThemeColor)
	assert.Equal(t, MetaColorLight, meta)
}

func TestService_InitializeRejectsBadDefault(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Initialize(context.Background(), Config{DefaultMode: "sepia"})
	assert.True(t, errors.Is(err, suiteprefs.ErrInvalidMode))
}

func TestService_PersistenceSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{}))
	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, ocean()))

	f.reopen(t)
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	assert.Equal(t, ModeCustom, f.svc.Mode())
	require.NotNil(t, f.svc.CustomTheme())
	assert.Equal(t, "Ocean Blue", f.svc.CustomTheme().Name)
	assert.True(t, f.root.HasClass(ClassCustom))
}

func TestService_CorruptPersistedValuesFallBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.backend.Save(ctx, &suiteprefs.Record{Namespace: suiteprefs.DefaultNamespace, Key: suiteprefs.KeyThemeMode, Value: "not json"}))
	require.NoError(t, f.backend.Save(ctx, &suiteprefs.Record{Namespace: suiteprefs.DefaultNamespace, Key: suiteprefs.KeyThemeCustom, Value: "{broken"}))

	assert.NotPanics(t, func() {
		require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeDark}))
	})
	assert.Equal(t, ModeDark, f.svc.Mode())
	assert.Nil(t, f.svc.CustomTheme())
	assert.GreaterOrEqual(t, f.logger.Count(suiteprefs.LogLevelWarn), 2)
}

func TestService_UnknownPersistedModeFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, suiteprefs.KeyThemeMode, "sepia"))

	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))
	assert.Equal(t, ModeLight, f.svc.Mode())
}

func TestService_PersistedCustomWithoutThemeFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, suiteprefs.KeyThemeMode, ModeCustom))

	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeDark}))
	assert.Equal(t, ModeDark, f.svc.Mode())
}

func TestService_AutoFollowsSystemScheme(t *testing.T) {
	f := newFixture(t)
	f.env.SetPrefersDark(true)
	require.NoError(t, f.svc.Initialize(context.Background(), Config{DefaultMode: ModeAuto}))

	var notified []Mode
	f.svc.Subscribe(func(s State) { notified = append(notified, s.Effective) })

	assert.Equal(t, ModeDark, f.svc.EffectiveTheme())
	assert.True(t, f.root.HasClass(ClassDark))

	f.env.SetPrefersDark(false)

	assert.Equal(t, ModeLight, f.svc.EffectiveTheme())
	assert.Equal(t, ModeAuto, f.svc.Mode())
	assert.True(t, f.root.HasClass(ClassLight))
	assert.False(t, f.root.HasClass(ClassDark))
	meta, _ := f.root.Meta(document.MetaThemeColor)
	assert.Equal(t, MetaColorLight, meta)
	assert.Equal(t, []Mode{ModeLight}, notified)
}

func TestService_SystemChangeIgnoredOutsideAuto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	calls := 0
	f.svc.Subscribe(func(State) { calls++ })
	f.env.SetPrefersDark(true)

	assert.Zero(t, calls)
	assert.Equal(t, ModeLight, f.svc.EffectiveTheme())
}

func TestService_CloseDetachesFromSystemScheme(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Initialize(context.Background(), Config{}))
	require.NoError(t, f.svc.Close())

	f.env.SetPrefersDark(true)
	assert.True(t, f.root.HasClass(ClassLight), "root is no longer updated after Close")
	assert.Equal(t, ModeDark, f.svc.EffectiveTheme(), "effective theme still reads the live signal")
}

func TestService_Toggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	require.NoError(t, f.svc.Toggle(ctx))
	assert.Equal(t, ModeDark, f.svc.Mode())
	assert.Equal(t, ModeDark, f.svc.EffectiveTheme())

	require.NoError(t, f.svc.Toggle(ctx))
	assert.Equal(t, ModeLight, f.svc.Mode())
	assert.Equal(t, ModeLight, f.svc.EffectiveTheme())
}

func TestService_ToggleLeavesAuto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.SetPrefersDark(true)
	require.NoError(t, f.svc.Initialize(ctx, Config{}))

	require.NoError(t, f.svc.Toggle(ctx))
	assert.Equal(t, ModeLight, f.svc.Mode())

	f.env.SetPrefersDark(false)
	f.env.SetPrefersDark(true)
	assert.Equal(t, ModeLight, f.svc.EffectiveTheme(), "no longer follows the system")
}

func TestService_ToggleFromCustom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{}))
	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, ocean()))

	require.NoError(t, f.svc.Toggle(ctx))
	assert.Equal(t, ModeLight, f.svc.Mode(), "custom is dark based")
}

func TestService_CustomWithoutThemeIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	calls := 0
	f.svc.Subscribe(func(State) { calls++ })

	assert.NoError(t, f.svc.SetTheme(ctx, ModeCustom, nil))
	assert.Equal(t, ModeLight, f.svc.Mode())
	assert.Zero(t, calls)
	assert.True(t, f.logger.Contains(suiteprefs.LogLevelWarn, "none has been set"))
}

func TestService_CustomReusesLastTheme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{}))
	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, ocean()))
	require.NoError(t, f.svc.SetTheme(ctx, ModeDark, nil))

	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, nil))
	assert.Equal(t, ModeCustom, f.svc.Mode())
	assert.Equal(t, "Ocean Blue", f.svc.CustomTheme().Name)
}

func TestService_SetThemeRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	err := f.svc.SetTheme(ctx, "neon", nil)
	assert.True(t, errors.Is(err, suiteprefs.ErrInvalidMode))

	partial := ocean()
	partial.Colors.Info = ""
	err = f.svc.SetTheme(ctx, ModeCustom, partial)
	assert.True(t, errors.Is(err, suiteprefs.ErrIncompleteTheme))

	bad := ocean()
	bad.Colors.Primary = "blue"
	err = f.svc.SetTheme(ctx, ModeCustom, bad)
	assert.True(t, errors.Is(err, suiteprefs.ErrIncompleteTheme))

	assert.Equal(t, ModeLight, f.svc.Mode())
	assert.Nil(t, f.svc.CustomTheme())
}

func TestService_SideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeDark}))

	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, ocean()))
	assert.Equal(t, []string{ClassCustom}, f.root.Classes())
	for _, r := range ocean().Colors.Roles() {
		v, ok := f.root.Property(r.CSSVariable)
		assert.True(t, ok, r.CSSVariable)
		assert.Equal(t, r.Value, v)
	}
	v, _ := f.root.Property("--color-text-secondary")
	assert.Equal(t, "#94a3b8", v)
	meta, _ := f.root.Meta(document.MetaThemeColor)
	assert.Equal(t, MetaColorDark, meta)

	require.NoError(t, f.svc.SetTheme(ctx, ModeLight, nil))
	assert.Equal(t, []string{ClassLight}, f.root.Classes())
	for _, name := range CSSVariables() {
		_, ok := f.root.Property(name)
		assert.False(t, ok, name)
	}
}

func TestService_NotifiesSynchronously(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	var got []State
	unsubscribe := f.svc.Subscribe(func(s State) { got = append(got, s) })
	f.svc.Subscribe(func(State) { panic("bad subscriber") })

	require.NoError(t, f.svc.SetTheme(ctx, ModeDark, nil))
	require.Len(t, got, 1)
	assert.Equal(t, State{Mode: ModeDark, Effective: ModeDark}, got[0])

	unsubscribe()
	unsubscribe()
	require.NoError(t, f.svc.SetTheme(ctx, ModeLight, nil))
	assert.Len(t, got, 1)
	assert.Equal(t, ModeLight, f.svc.Mode())
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{}))

	custom := &CustomTheme{Name: "Mine", Colors: ocean().Colors}
	custom.Colors.Primary = "#123456"
	require.NoError(t, f.svc.SetTheme(ctx, ModeCustom, custom))

	exported, err := f.svc.ExportTheme()
	require.NoError(t, err)

	var parsed CustomTheme
	require.NoError(t, json.Unmarshal([]byte(exported), &parsed))
	assert.Equal(t, "Mine", parsed.Name)
	if diff := cmp.Diff(custom.Colors, parsed.Colors); diff != "" {
		t.Errorf("exported colors mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, exported, "\n  \"name\": \"Mine\"")

	fresh := newFixture(t)
	require.NoError(t, fresh.svc.Initialize(ctx, Config{}))
	require.True(t, fresh.svc.ImportTheme(ctx, exported))
	assert.Equal(t, ModeCustom, fresh.svc.Mode())
	assert.Equal(t, "Mine", fresh.svc.CustomTheme().Name)
}

func TestService_ExportImportModePayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeDark}))

	exported, err := f.svc.ExportTheme()
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"dark"}`, exported)

	fresh := newFixture(t)
	require.NoError(t, fresh.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))
	require.True(t, fresh.svc.ImportTheme(ctx, exported))
	assert.Equal(t, ModeDark, fresh.svc.Mode())
}

func TestService_ImportFailuresLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	partial := `{"name":"Half","colors":{"primary":"#000000"}}`
	for _, payload := range []string{
		"not json",
		`{}`,
		`{"name":"No colors"}`,
		`{"colors":{"primary":"#000"}}`,
		partial,
		`{"mode":"sepia"}`,
		`{"mode":"custom"}`,
	} {
		assert.False(t, f.svc.ImportTheme(ctx, payload), payload)
		assert.Equal(t, ModeLight, f.svc.Mode(), payload)
		assert.Nil(t, f.svc.CustomTheme(), payload)
	}
	assert.Equal(t, 7, f.logger.Count(suiteprefs.LogLevelError))
}

func TestPredefinedThemes(t *testing.T) {
	themes := PredefinedThemes()
	require.Len(t, themes, 4)
	for _, th := range themes {
		assert.NoError(t, th.Validate(), th.Name)
	}

	themes[0].Name = "mutated"
	_, ok := PresetByName("Ocean Blue")
	assert.True(t, ok, "callers cannot mutate the built-in list")

	sunset, ok := PresetByName("Sunset Orange")
	require.True(t, ok)
	assert.Equal(t, "#dc2626", sunset.Colors.Error)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("auto")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("AUTO")
	assert.True(t, errors.Is(err, suiteprefs.ErrInvalidMode))
}

func TestService_ConcurrentSetThemePersistsInOrder(t *testing.T) {
	mem := storage.NewMemoryStorage()
	gate := testutil.NewGatedBackend(mem, suiteprefs.KeyThemeMode, `"light"`)
	logger := &testutil.RecordingLogger{}
	store := suiteprefs.NewStore(suiteprefs.WithBackend(gate), suiteprefs.WithLogger(logger))
	svc := NewService(store, environment.NewStatic(environment.StaticConfig{}), document.NewRoot())
	defer svc.Close()

	ctx := context.Background()
	require.NoError(t, svc.Initialize(ctx, Config{}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.SetTheme(ctx, ModeLight, nil))
	}()
	<-gate.Reached()
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.SetTheme(ctx, ModeDark, nil))
	}()
	time.Sleep(20 * time.Millisecond)
	gate.Release()
	wg.Wait()

	assert.Equal(t, ModeDark, svc.Mode())
	fresh := suiteprefs.NewStore(suiteprefs.WithBackend(mem), suiteprefs.WithLogger(logger))
	assert.Equal(t, ModeDark, suiteprefs.Get[Mode](ctx, fresh, suiteprefs.KeyThemeMode, ""))
}

func TestService_ConcurrentTogglesAlternate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Initialize(ctx, Config{DefaultMode: ModeLight}))

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Toggle(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, ModeDark, f.svc.Mode())
	f.reopen(t)
	require.NoError(t, f.svc.Initialize(ctx, Config{}))
	assert.Equal(t, ModeDark, f.svc.Mode())
}
