// Package config loads the process configuration from defaults, an optional YAML
// file and SUITEPREFS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
	"github.com/CreativeUnicorns/suiteprefs/telemetry"
	"github.com/CreativeUnicorns/suiteprefs/theme"
)

// EnvPrefix prefixes every environment override: SUITEPREFS_SERVER_PORT=9090.
const EnvPrefix = "SUITEPREFS"

type AppConfig struct {
	Server        ServerConfig                  `mapstructure:"server"`
	Logging       LoggingConfig                 `mapstructure:"logging"`
	Storage       StorageConfig                 `mapstructure:"storage"`
	Cache         CacheConfig                   `mapstructure:"cache"`
	Encryption    EncryptionConfig              `mapstructure:"encryption"`
	Environment   EnvironmentConfig             `mapstructure:"environment"`
	Theme         theme.Config                  `mapstructure:"theme"`
	I18n          I18nConfig                    `mapstructure:"i18n"`
	Analytics     AnalyticsConfig               `mapstructure:"analytics"`
	ErrorTracking telemetry.ErrorTrackingConfig `mapstructure:"error_tracking"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LoggingConfig struct {
	// Backend is "slog" or "zap".
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
	// Format applies to zap only: "json" or "console".
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	Namespace string `mapstructure:"namespace"`
}

type CacheConfig struct {
	Driver   string        `mapstructure:"driver"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// EncryptionConfig turns on at-rest encryption. The key itself is only read from
// the SUITEPREFS_ENCRYPTION_KEY environment variable.
type EncryptionConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EnvironmentConfig seeds the environment signals. With FromOS the locale and
// Do-Not-Track come from the process environment and Locale/DoNotTrack are ignored.
type EnvironmentConfig struct {
	FromOS          bool   `mapstructure:"from_os"`
	Locale          string `mapstructure:"locale"`
	DoNotTrack      bool   `mapstructure:"do_not_track"`
	PrefersDark     bool   `mapstructure:"prefers_dark"`
	CanFetch        bool   `mapstructure:"can_fetch"`
	ColorSchemeFile string `mapstructure:"color_scheme_file"`
}

type I18nConfig struct {
	i18n.Config `mapstructure:",squash"`
	// TranslationsDir holds <lang>.yaml|.yml|.json bundles loaded at startup.
	TranslationsDir string `mapstructure:"translations_dir"`
	// Preload lists languages whose remote bundles are fetched in the background.
	Preload []i18n.Language `mapstructure:"preload"`
}

type AnalyticsConfig struct {
	telemetry.AnalyticsConfig `mapstructure:",squash"`
	// Taggers lists the egress sinks: "log", "prometheus", "amqp".
	Taggers  []string `mapstructure:"taggers"`
	AMQPURL  string   `mapstructure:"amqp_url"`
	Exchange string   `mapstructure:"exchange"`
}

// LoadViper builds the Viper instance. A missing config file is not an error;
// defaults and environment variables still apply.
func LoadViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("suiteprefs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/suiteprefs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.backend", "slog")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.namespace", suiteprefs.DefaultNamespace)

	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", suiteprefs.DefaultCacheTTL.String())

	v.SetDefault("encryption.enabled", false)

	v.SetDefault("environment.from_os", true)
	v.SetDefault("environment.locale", "")
	v.SetDefault("environment.do_not_track", false)
	v.SetDefault("environment.prefers_dark", false)
	v.SetDefault("environment.can_fetch", true)
	v.SetDefault("environment.color_scheme_file", "")

	v.SetDefault("theme.default_mode", string(theme.ModeAuto))

	v.SetDefault("i18n.default_language", string(i18n.DefaultLanguage))
	v.SetDefault("i18n.fallback_language", string(i18n.DefaultLanguage))
	v.SetDefault("i18n.supported_languages", []string{"en", "es", "fr", "de", "ja", "zh", "ar", "pt", "ru", "it"})
	v.SetDefault("i18n.bundle_url", "")
	v.SetDefault("i18n.translations_dir", "")
	v.SetDefault("i18n.preload", []string{})

	v.SetDefault("analytics.measurement_id", "")
	v.SetDefault("analytics.enable_debug", false)
	v.SetDefault("analytics.respect_dnt", true)
	v.SetDefault("analytics.anonymize_ip", true)
	v.SetDefault("analytics.max_queue", telemetry.DefaultMaxQueue)
	v.SetDefault("analytics.taggers", []string{"log", "prometheus"})
	v.SetDefault("analytics.amqp_url", "")
	v.SetDefault("analytics.exchange", telemetry.DefaultExchange)

	v.SetDefault("error_tracking.dsn", "")
	v.SetDefault("error_tracking.environment", telemetry.DefaultEnvironment)
	v.SetDefault("error_tracking.release", "")
	v.SetDefault("error_tracking.sample_rate", 1.0)
	v.SetDefault("error_tracking.max_breadcrumbs", telemetry.DefaultMaxBreadcrumbs)
	v.SetDefault("error_tracking.require_consent", false)
	v.SetDefault("error_tracking.respect_dnt", true)
	v.SetDefault("error_tracking.delivery_buffer", telemetry.DefaultDeliveryBuffer)
}

// Decode unmarshals v into an AppConfig and validates it.
func Decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is LoadViper followed by Decode.
func Load(configPath string) (*AppConfig, error) {
	v, err := LoadViper(configPath)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", suiteprefs.ErrInvalidInput, c.Server.Port)
	}
	switch c.Logging.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("%w: logging.backend must be \"slog\" or \"zap\", got %q", suiteprefs.ErrInvalidInput, c.Logging.Backend)
	}
	if c.Theme.DefaultMode != "" && !c.Theme.DefaultMode.Valid() {
		return fmt.Errorf("%w: theme.default_mode %q", suiteprefs.ErrInvalidMode, c.Theme.DefaultMode)
	}
	for _, name := range c.Analytics.Taggers {
		switch name {
		case "log", "prometheus", "amqp":
		default:
			return fmt.Errorf("%w: unknown analytics tagger %q", suiteprefs.ErrInvalidInput, name)
		}
		if name == "amqp" && c.Analytics.AMQPURL == "" {
			return fmt.Errorf("%w: analytics.amqp_url is required by the amqp tagger", suiteprefs.ErrInvalidInput)
		}
	}
	if r := c.ErrorTracking.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("%w: error_tracking.sample_rate %v outside [0, 1]", suiteprefs.ErrInvalidInput, r)
	}
	return nil
}
