package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/document"
	"github.com/CreativeUnicorns/suiteprefs/environment"
)

// Config carries the recognized initialize options.
type Config struct {
	// DefaultMode applies when nothing valid is persisted. Empty means auto.
	DefaultMode Mode `mapstructure:"default_mode"`
}

// Service owns the theme preference. Construct one per process and share it.
type Service struct {
	// writeMu is held from apply through notify so changes persist in order.
	writeMu sync.Mutex
	mu      sync.Mutex

	store  *suiteprefs.Store
	env    environment.Signals
	root   *document.Root
	logger suiteprefs.Logger

	mode   Mode
	custom *CustomTheme
	detach func()

	listeners *suiteprefs.Registry[State]
}

// NewService returns a Service in auto mode. Nothing is applied to root until
// Initialize or SetTheme runs.
func NewService(store *suiteprefs.Store, env environment.Signals, root *document.Root) *Service {
	logger := store.Logger()
	return &Service{
		store:     store,
		env:       env,
		root:      root,
		logger:    logger,
		mode:      ModeAuto,
		listeners: suiteprefs.NewRegistry[State]("theme", logger),
	}
}

// Initialize loads the persisted custom theme and mode, attaches to the system
// color scheme and applies the result. Corrupt persisted values fall back to
// cfg.DefaultMode. Calling it again re-reads persistence and re-attaches.
func (s *Service) Initialize(ctx context.Context, cfg Config) error {
	def := cfg.DefaultMode
	if def == "" {
		def = ModeAuto
	}
	if !def.Valid() {
		return fmt.Errorf("%w: default mode %q", suiteprefs.ErrInvalidMode, def)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	custom := suiteprefs.Get[*CustomTheme](ctx, s.store, suiteprefs.KeyThemeCustom, nil)
	if custom != nil {
		if err := custom.Validate(); err != nil {
			s.logger.Warn("Ignoring persisted custom theme", "error", err)
			custom = nil
		}
	}

	saved := suiteprefs.Get[Mode](ctx, s.store, suiteprefs.KeyThemeMode, "")
	if saved != "" && !saved.Valid() {
		s.logger.Warn("Ignoring persisted theme mode", "mode", saved)
	}

	mode, origin := suiteprefs.Resolve(
		suiteprefs.Persisted(func() (Mode, bool) {
			return saved, saved.Valid() && (saved != ModeCustom || custom != nil)
		}),
		suiteprefs.Default(def),
	)
	if mode == ModeCustom && custom == nil {
		s.logger.Warn("Default mode is custom but no custom theme is stored, using auto")
		mode = ModeAuto
	}

	s.mu.Lock()
	if s.detach != nil {
		s.detach()
	}
	s.detach = s.env.OnColorSchemeChange(s.onColorSchemeChange)
	s.custom = custom
	s.mode = mode
	s.applyLocked()
	state := s.stateLocked()
	s.mu.Unlock()

	s.logger.Info("Theme initialized", "mode", mode, "origin", origin, "effective", state.Effective)
	s.listeners.Notify(state)
	return nil
}

// SetTheme switches mode. For ModeCustom, a non-nil custom theme becomes the
// active palette and is persisted; with nil, the last custom theme is reused, and
// if there never was one the call is a logged no-op.
func (s *Service) SetTheme(ctx context.Context, mode Mode, custom *CustomTheme) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.setTheme(ctx, mode, custom)
}

// setTheme runs under writeMu.
func (s *Service) setTheme(ctx context.Context, mode Mode, custom *CustomTheme) error {
	if !mode.Valid() {
		s.logger.Warn("Rejected theme mode", "mode", mode)
		return fmt.Errorf("%w: %q", suiteprefs.ErrInvalidMode, mode)
	}
	if mode == ModeCustom && custom != nil {
		if err := custom.Validate(); err != nil {
			s.logger.Warn("Rejected custom theme", "error", err)
			return err
		}
	}

	s.mu.Lock()
	if mode == ModeCustom && custom == nil && s.custom == nil {
		s.mu.Unlock()
		s.logger.Warn("Custom theme requested but none has been set")
		return nil
	}

	s.mode = mode
	var persistCustom *CustomTheme
	if mode == ModeCustom && custom != nil {
		s.custom = custom.clone()
		persistCustom = s.custom.clone()
	}
	s.applyLocked()
	state := s.stateLocked()
	s.mu.Unlock()

	// Persistence is best effort; Store logs its own failures.
	if persistCustom != nil {
		_ = s.store.Set(ctx, suiteprefs.KeyThemeCustom, persistCustom)
	}
	_ = s.store.Set(ctx, suiteprefs.KeyThemeMode, mode)

	s.listeners.Notify(state)
	return nil
}

// Toggle commits to the opposite of the current effective theme, leaving auto or custom.
func (s *Service) Toggle(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := ModeLight
	if s.EffectiveTheme() == ModeLight {
		next = ModeDark
	}
	return s.setTheme(ctx, next, nil)
}

// EffectiveTheme resolves the mode to ModeLight or ModeDark.
func (s *Service) EffectiveTheme() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectiveLocked()
}

func (s *Service) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// CustomTheme returns a copy of the last custom theme, or nil.
func (s *Service) CustomTheme() *CustomTheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.custom.clone()
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Subscribe registers fn for every applied change and returns its unsubscribe function.
// fn may call the getters but not SetTheme, Toggle or ImportTheme.
func (s *Service) Subscribe(fn func(State)) func() {
	return s.listeners.Subscribe(fn)
}

type modePayload struct {
	Mode Mode `json:"mode"`
}

// ExportTheme returns the active custom theme as indented JSON in custom mode, and
// {"mode": ...} otherwise.
func (s *Service) ExportTheme() (string, error) {
	s.mu.Lock()
	var v any = modePayload{Mode: s.mode}
	if s.mode == ModeCustom && s.custom != nil {
		v = s.custom.clone()
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", suiteprefs.ErrSerialization, err)
	}
	return string(data), nil
}

// ImportTheme accepts the output of ExportTheme: a custom theme, which is
// validated and activated, or a mode payload. On any failure it logs, returns
// false and leaves the state untouched.
func (s *Service) ImportTheme(ctx context.Context, payload string) bool {
	if err := s.importTheme(ctx, payload); err != nil {
		s.logger.Error("Failed to import theme", "error", err)
		return false
	}
	return true
}

func (s *Service) importTheme(ctx context.Context, payload string) error {
	var p struct {
		Name   string  `json:"name"`
		Colors *Colors `json:"colors"`
		Mode   Mode    `json:"mode"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return fmt.Errorf("%w: %v", suiteprefs.ErrInvalidPayload, err)
	}

	switch {
	case p.Name != "" || p.Colors != nil:
		if p.Name == "" || p.Colors == nil {
			return fmt.Errorf("%w: theme needs both name and colors", suiteprefs.ErrInvalidPayload)
		}
		return s.SetTheme(ctx, ModeCustom, &CustomTheme{Name: p.Name, Colors: *p.Colors})
	case p.Mode != "":
		if !p.Mode.Valid() {
			return fmt.Errorf("%w: %q", suiteprefs.ErrInvalidMode, p.Mode)
		}
		if p.Mode == ModeCustom && s.CustomTheme() == nil {
			return errors.New("custom mode imported without a custom theme")
		}
		return s.SetTheme(ctx, p.Mode, nil)
	default:
		return fmt.Errorf("%w: neither a theme nor a mode", suiteprefs.ErrInvalidPayload)
	}
}

// Close detaches from the system color scheme. The Service keeps its state.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	return nil
}

func (s *Service) onColorSchemeChange(bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.mode != ModeAuto {
		s.mu.Unlock()
		return
	}
	s.applyLocked()
	state := s.stateLocked()
	s.mu.Unlock()

	s.logger.Debug("System color scheme changed", "effective", state.Effective)
	s.listeners.Notify(state)
}

func (s *Service) effectiveLocked() Mode {
	switch s.mode {
	case ModeAuto:
		if s.env.PrefersDark() {
			return ModeDark
		}
		return ModeLight
	case ModeCustom:
		return ModeDark
	default:
		return s.mode
	}
}

func (s *Service) stateLocked() State {
	return State{Mode: s.mode, Effective: s.effectiveLocked(), Custom: s.custom.clone()}
}

// applyLocked writes the root class, custom properties and meta color.
func (s *Service) applyLocked() {
	effective := s.effectiveLocked()

	if s.mode == ModeCustom && s.custom != nil {
		s.root.ReplaceClass(modeClasses, ClassCustom)
		for _, r := range s.custom.Colors.Roles() {
			s.root.SetProperty(r.CSSVariable, r.Value)
		}
	} else {
		s.root.ReplaceClass(modeClasses, "theme-"+string(effective))
		for _, name := range CSSVariables() {
			s.root.RemoveProperty(name)
		}
	}

	meta := MetaColorDark
	if effective == ModeLight {
		meta = MetaColorLight
	}
	s.root.SetMeta(document.MetaThemeColor, meta)
}
