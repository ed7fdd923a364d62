// Package environment supplies the ambient signals preference services resolve
// against: the system color scheme, the user's locale, Do-Not-Track and whether
// remote resources may be fetched.
package environment

import (
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/CreativeUnicorns/suiteprefs"
)

// Signals is the read side of the runtime environment.
type Signals interface {
	// PrefersDark reports the current system color scheme.
	PrefersDark() bool
	// OnColorSchemeChange registers fn for color scheme changes and returns its
	// unsubscribe function.
	OnColorSchemeChange(fn func(prefersDark bool)) func()
	// Locale returns a BCP 47 tag such as "es-MX", or "" when unknown.
	Locale() string
	DoNotTrack() bool
	CanFetch() bool
}

// Static is a Signals whose values are set programmatically.
type Static struct {
	mu          sync.RWMutex
	prefersDark bool
	locale      string
	doNotTrack  bool
	canFetch    bool
	changes     *suiteprefs.Registry[bool]
}

var _ Signals = (*Static)(nil)

// StaticConfig seeds a Static.
type StaticConfig struct {
	PrefersDark bool
	Locale      string
	DoNotTrack  bool
	CanFetch    bool
	Logger      suiteprefs.Logger
}

func NewStatic(cfg StaticConfig) *Static {
	return &Static{
		prefersDark: cfg.PrefersDark,
		locale:      NormalizeLocale(cfg.Locale),
		doNotTrack:  cfg.DoNotTrack,
		canFetch:    cfg.CanFetch,
		changes:     suiteprefs.NewRegistry[bool]("color-scheme", cfg.Logger),
	}
}

// FromOS reads the locale from LC_ALL, LC_MESSAGES or LANG (first non-empty wins)
// and Do-Not-Track from DNT=1. Fetching is allowed and the color scheme starts light.
func FromOS(logger suiteprefs.Logger) *Static {
	var locale string
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(name); v != "" {
			locale = v
			break
		}
	}

	return NewStatic(StaticConfig{
		Locale:     locale,
		DoNotTrack: os.Getenv("DNT") == "1",
		CanFetch:   true,
		Logger:     logger,
	})
}

func (s *Static) PrefersDark() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefersDark
}

// SetPrefersDark updates the color scheme and notifies listeners if it changed.
func (s *Static) SetPrefersDark(dark bool) {
	s.mu.Lock()
	changed := s.prefersDark != dark
	s.prefersDark = dark
	s.mu.Unlock()

	if changed {
		s.changes.Notify(dark)
	}
}

func (s *Static) OnColorSchemeChange(fn func(prefersDark bool)) func() {
	return s.changes.Subscribe(fn)
}

func (s *Static) Locale() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

func (s *Static) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = NormalizeLocale(locale)
}

func (s *Static) DoNotTrack() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doNotTrack
}

func (s *Static) SetDoNotTrack(dnt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doNotTrack = dnt
}

func (s *Static) CanFetch() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canFetch
}

func (s *Static) SetCanFetch(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canFetch = ok
}

// NormalizeLocale turns POSIX locale strings ("es_MX.UTF-8", "de_DE@euro") and
// BCP 47 tags into canonical BCP 47 form. "C", "POSIX" and unparsable input yield "".
func NormalizeLocale(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "" || s == "C" || s == "POSIX" {
		return ""
	}
	s = strings.ReplaceAll(s, "_", "-")

	tag, err := language.Parse(s)
	if err != nil {
		return ""
	}
	return tag.String()
}

// PrimaryLanguage returns the base language subtag of a locale: "es" for "es-MX".
func PrimaryLanguage(locale string) string {
	norm := NormalizeLocale(locale)
	if norm == "" {
		return ""
	}
	base, _ := language.Make(norm).Base()
	return base.String()
}
