// Package i18n implements the language preference service: resolution, dot-path
// translation lookup with interpolation and a fallback language, remote and on-disk
// bundles, and locale-aware formatting.
package i18n

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/document"
	"github.com/CreativeUnicorns/suiteprefs/environment"
)

// Language is a primary language subtag such as "en" or "es".
type Language string

// DefaultLanguage is used when a Config leaves the default or fallback unset.
const DefaultLanguage Language = "en"

// DefaultFetchTimeout bounds a remote bundle request when Config.HTTPClient is nil.
const DefaultFetchTimeout = 10 * time.Second

// ErrFetchDisabled is returned by LoadTranslations when the environment reports
// that network fetches are unavailable.
var ErrFetchDisabled = errors.New("i18n: fetching translation bundles is disabled")

var nativeNames = map[Language]string{
	"en": "English",
	"es": "Español",
	"fr": "Français",
	"de": "Deutsch",
	"ja": "日本語",
	"zh": "中文",
	"ar": "العربية",
	"pt": "Português",
	"ru": "Русский",
	"it": "Italiano",
}

// LanguageName returns the native display name of lang, or lang itself when unknown.
func LanguageName(lang Language) string {
	if name, ok := nativeNames[lang]; ok {
		return name
	}
	return string(lang)
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Config carries the recognized initialize options.
type Config struct {
	DefaultLanguage    Language                `mapstructure:"default_language"`
	FallbackLanguage   Language                `mapstructure:"fallback_language"`
	SupportedLanguages []Language              `mapstructure:"supported_languages"`
	Translations       map[Language]Dictionary `mapstructure:"-"`

	// BundleURL is the base URL remote bundles are fetched from as <BundleURL>/<lang>.json.
	BundleURL  string       `mapstructure:"bundle_url"`
	HTTPClient *http.Client `mapstructure:"-"`
}

// Service owns the language preference and the translation tables.
type Service struct {
	// writeMu is held from apply through notify so changes persist in order.
	writeMu sync.Mutex
	mu      sync.RWMutex

	store  *suiteprefs.Store
	env    environment.Signals
	root   *document.Root
	logger suiteprefs.Logger

	initialized  bool
	language     Language
	fallback     Language
	supported    []Language
	translations map[Language]Dictionary
	bundleURL    string
	client       *http.Client

	loads     sync.WaitGroup
	listeners *suiteprefs.Registry[Language]
}

// NewService returns an uninitialized Service. Until Initialize runs, T returns
// keys verbatim and SetLanguage refuses every language.
func NewService(store *suiteprefs.Store, env environment.Signals, root *document.Root) *Service {
	logger := store.Logger()
	return &Service{
		store:        store,
		env:          env,
		root:         root,
		logger:       logger,
		language:     DefaultLanguage,
		fallback:     DefaultLanguage,
		supported:    []Language{DefaultLanguage},
		translations: make(map[Language]Dictionary),
		client:       &http.Client{Timeout: DefaultFetchTimeout},
		listeners:    suiteprefs.NewRegistry[Language]("i18n", logger),
	}
}

// Initialize resolves the starting language from the persisted choice, then the
// environment locale, then cfg.DefaultLanguage. Each tier only counts when its
// language is supported.
func (s *Service) Initialize(ctx context.Context, cfg Config) error {
	def := cfg.DefaultLanguage
	if def == "" {
		def = DefaultLanguage
	}
	fallback := cfg.FallbackLanguage
	if fallback == "" {
		fallback = DefaultLanguage
	}
	supported := slices.Clone(cfg.SupportedLanguages)
	if len(supported) == 0 {
		supported = []Language{def}
	}
	if !slices.Contains(supported, def) {
		return fmt.Errorf("%w: default language %q is not supported", suiteprefs.ErrUnsupportedLanguage, def)
	}

	isSupported := func(l Language) bool { return slices.Contains(supported, l) }

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lang, origin := suiteprefs.Resolve(
		suiteprefs.Persisted(func() (Language, bool) {
			saved := suiteprefs.Get[Language](ctx, s.store, suiteprefs.KeyLanguage, "")
			return saved, isSupported(saved)
		}),
		suiteprefs.Environment(func() (Language, bool) {
			detected := Language(environment.PrimaryLanguage(s.env.Locale()))
			return detected, isSupported(detected)
		}),
		suiteprefs.Default(def),
	)

	s.mu.Lock()
	s.initialized = true
	s.language = lang
	s.fallback = fallback
	s.supported = supported
	for l, dict := range cfg.Translations {
		s.translations[l] = s.translations[l].Merge(dict)
	}
	s.bundleURL = strings.TrimRight(cfg.BundleURL, "/")
	if cfg.HTTPClient != nil {
		s.client = cfg.HTTPClient
	}
	s.mu.Unlock()

	s.root.SetLang(string(lang))
	s.logger.Info("i18n initialized", "language", lang, "origin", origin, "fallback", fallback)
	s.listeners.Notify(lang)
	return nil
}

// T translates key in the current language, then the fallback language. A key
// found in neither is returned verbatim and logged once per call.
// Every {{name}} placeholder with a matching entry in params is replaced.
func (s *Service) T(key string, params map[string]any) string {
	s.mu.RLock()
	initialized := s.initialized
	text, ok := s.translations[s.language].Lookup(key)
	if !ok && s.fallback != s.language {
		text, ok = s.translations[s.fallback].Lookup(key)
	}
	lang := s.language
	s.mu.RUnlock()

	if !initialized {
		s.logger.Warn("i18n not initialized", "key", key)
		return key
	}
	if !ok {
		s.logger.Warn("Translation missing", "key", key, "language", lang)
		return key
	}
	return interpolate(text, params)
}

func interpolate(text string, params map[string]any) string {
	if len(params) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-2]
		if v, ok := params[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}

// SetLanguage switches to lang, persists it, updates the document language and
// notifies subscribers. Unsupported languages are logged and refused.
func (s *Service) SetLanguage(ctx context.Context, lang Language) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		s.logger.Warn("i18n not initialized", "language", lang)
		return false
	}
	if !slices.Contains(s.supported, lang) {
		s.mu.Unlock()
		s.logger.Warn("Language not supported", "language", lang)
		return false
	}
	s.language = lang
	s.mu.Unlock()

	_ = s.store.Set(ctx, suiteprefs.KeyLanguage, lang)
	s.root.SetLang(string(lang))
	s.listeners.Notify(lang)
	return true
}

func (s *Service) Language() Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SupportedLanguages returns a copy of the supported set.
func (s *Service) SupportedLanguages() []Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.supported)
}

// LanguageName returns the native name of lang.
func (s *Service) LanguageName(lang Language) string {
	return LanguageName(lang)
}

// Subscribe registers fn for every language change and returns its unsubscribe function.
// fn must not call SetLanguage.
func (s *Service) Subscribe(fn func(Language)) func() {
	return s.listeners.Subscribe(fn)
}

// AddTranslations merges dict into the table for lang.
func (s *Service) AddTranslations(lang Language, dict Dictionary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[lang] = s.translations[lang].Merge(dict)
}

// LoadDir merges every bundle in dir into the translation tables.
func (s *Service) LoadDir(dir string) error {
	bundles, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for lang, dict := range bundles {
		s.AddTranslations(lang, dict)
	}
	s.logger.Debug("Loaded translation directory", "dir", dir, "languages", len(bundles))
	return nil
}

// LoadTranslations fetches <BundleURL>/<lang>.json and replaces the table for lang.
func (s *Service) LoadTranslations(ctx context.Context, lang Language) error {
	if !s.env.CanFetch() {
		return ErrFetchDisabled
	}

	s.mu.RLock()
	base, client := s.bundleURL, s.client
	s.mu.RUnlock()
	if base == "" {
		return fmt.Errorf("%w: no bundle URL configured", suiteprefs.ErrInvalidInput)
	}

	dict, err := fetchBundle(ctx, client, base+"/"+string(lang)+".json")
	if err != nil {
		s.logger.Error("Failed to load translations", "language", lang, "error", err)
		return err
	}

	s.mu.Lock()
	s.translations[lang] = dict
	s.mu.Unlock()
	s.logger.Info("Loaded translations", "language", lang, "keys", dict.Len())
	return nil
}

// LoadTranslationsAsync starts LoadTranslations in the background. Failures are
// only logged. Wait blocks until every pending load has finished.
func (s *Service) LoadTranslationsAsync(ctx context.Context, lang Language) {
	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		if err := s.LoadTranslations(ctx, lang); errors.Is(err, ErrFetchDisabled) {
			s.logger.Debug("Skipping remote translations", "language", lang)
		}
	}()
}

// Wait blocks until all LoadTranslationsAsync calls have completed.
func (s *Service) Wait() {
	s.loads.Wait()
}

func fetchBundle(ctx context.Context, client *http.Client, url string) (Dictionary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build bundle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch bundle: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return ParseDictionary(data)
}

// FormatNumber formats v for the current language.
func (s *Service) FormatNumber(v float64) string {
	return FormatNumber(s.Language(), v)
}

// FormatDate formats t as a short date for the current language.
func (s *Service) FormatDate(t time.Time) string {
	return FormatDate(s.Language(), t)
}

// FormatRelativeTime formats value units relative to now in the current language.
func (s *Service) FormatRelativeTime(value int, unit Unit) (string, error) {
	return FormatRelativeTime(s.Language(), value, unit)
}
