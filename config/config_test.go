package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
	"github.com/CreativeUnicorns/suiteprefs/theme"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suiteprefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "slog", cfg.Logging.Backend)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, suiteprefs.DefaultNamespace, cfg.Storage.Namespace)
	assert.Equal(t, "none", cfg.Cache.Driver)
	assert.Equal(t, suiteprefs.DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, theme.ModeAuto, cfg.Theme.DefaultMode)
	assert.Equal(t, i18n.Language("en"), cfg.I18n.DefaultLanguage)
	assert.Contains(t, cfg.I18n.SupportedLanguages, i18n.Language("ja"))
	assert.True(t, cfg.Analytics.RespectDNT)
	assert.True(t, cfg.Analytics.AnonymizeIP)
	assert.Equal(t, []string{"log", "prometheus"}, cfg.Analytics.Taggers)
	assert.Equal(t, 1.0, cfg.ErrorTracking.SampleRate)
	assert.Equal(t, 100, cfg.ErrorTracking.MaxBreadcrumbs)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
storage:
  driver: sqlite
  dsn: /tmp/prefs.db
theme:
  default_mode: dark
i18n:
  default_language: es
  fallback_language: en
  supported_languages: [en, es]
  translations_dir: ./locales
analytics:
  measurement_id: G-123
  taggers: [log]
error_tracking:
  sample_rate: 0.25
  require_consent: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/prefs.db", cfg.Storage.DSN)
	assert.Equal(t, theme.ModeDark, cfg.Theme.DefaultMode)
	assert.Equal(t, i18n.Language("es"), cfg.I18n.DefaultLanguage)
	assert.Equal(t, []i18n.Language{"en", "es"}, cfg.I18n.SupportedLanguages)
	assert.Equal(t, "./locales", cfg.I18n.TranslationsDir)
	assert.Equal(t, "G-123", cfg.Analytics.MeasurementID)
	assert.Equal(t, []string{"log"}, cfg.Analytics.Taggers)
	assert.Equal(t, 0.25, cfg.ErrorTracking.SampleRate)
	assert.True(t, cfg.ErrorTracking.RequireConsent)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")
	t.Setenv("SUITEPREFS_SERVER_PORT", "7070")
	t.Setenv("SUITEPREFS_LOGGING_BACKEND", "zap")
	t.Setenv("SUITEPREFS_THEME_DEFAULT_MODE", "light")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "zap", cfg.Logging.Backend)
	assert.Equal(t, theme.ModeLight, cfg.Theme.DefaultMode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "server: [",
		"bad port":     "server:\n  port: 70000\n",
		"bad backend":  "logging:\n  backend: logrus\n",
		"bad mode":     "theme:\n  default_mode: sepia\n",
		"bad tagger":   "analytics:\n  taggers: [statsd]\n",
		"amqp no url":  "analytics:\n  taggers: [amqp]\n",
		"bad sampling": "error_tracking:\n  sample_rate: 2\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
