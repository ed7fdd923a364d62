package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/CreativeUnicorns/suiteprefs"
	"github.com/CreativeUnicorns/suiteprefs/cache"
	"github.com/CreativeUnicorns/suiteprefs/config"
	"github.com/CreativeUnicorns/suiteprefs/document"
	"github.com/CreativeUnicorns/suiteprefs/environment"
	"github.com/CreativeUnicorns/suiteprefs/i18n"
	"github.com/CreativeUnicorns/suiteprefs/storage"
	"github.com/CreativeUnicorns/suiteprefs/telemetry"
	"github.com/CreativeUnicorns/suiteprefs/theme"
)

// app is the fully wired set of services shared by every subcommand.
type app struct {
	cfg      *config.AppConfig
	logger   suiteprefs.Logger
	registry *prometheus.Registry

	store     *suiteprefs.Store
	env       environment.Signals
	root      *document.Root
	theme     *theme.Service
	i18n      *i18n.Service
	analytics *telemetry.Analytics
	errors    *telemetry.ErrorTracker

	closers []func() error
}

// newApp loads the configuration and builds the store and the preference
// services. Telemetry is only wired when withTelemetry is set.
func newApp(ctx context.Context, withTelemetry bool) (*app, error) {
	v, err := config.LoadViper(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		v.Set("logging.level", logLevel)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}

	logger, syncLogger, err := config.NewLogger(v)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() error {
		_ = syncLogger()
		return nil
	})

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openEnvironment(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.root = document.NewRoot()

	a.theme = theme.NewService(a.store, a.env, a.root)
	a.closers = append(a.closers, a.theme.Close)
	if err := a.theme.Initialize(ctx, cfg.Theme); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize theme: %w", err)
	}

	a.i18n = i18n.NewService(a.store, a.env, a.root)
	if cfg.I18n.TranslationsDir != "" {
		if err := a.i18n.LoadDir(cfg.I18n.TranslationsDir); err != nil {
			a.Close()
			return nil, fmt.Errorf("load translations: %w", err)
		}
	}
	if err := a.i18n.Initialize(ctx, cfg.I18n.Config); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize i18n: %w", err)
	}

	if withTelemetry {
		if err := a.openTelemetry(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore() error {
	backend, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	c, err := cache.Open(cache.Options{
		Driver:   a.cfg.Cache.Driver,
		Addr:     a.cfg.Cache.Addr,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
	})
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("open cache: %w", err)
	}

	opts := []suiteprefs.Option{
		suiteprefs.WithBackend(backend),
		suiteprefs.WithLogger(a.logger),
		suiteprefs.WithCacheTTL(a.cfg.Cache.TTL),
	}
	if c != nil {
		opts = append(opts, suiteprefs.WithCache(c))
	}
	if a.cfg.Storage.Namespace != "" {
		opts = append(opts, suiteprefs.WithNamespace(a.cfg.Storage.Namespace))
	}
	if a.cfg.Encryption.Enabled {
		enc, err := suiteprefs.NewEncryptionAdapter()
		if err != nil {
			_ = backend.Close()
			if c != nil {
				_ = c.Close()
			}
			return fmt.Errorf("encryption: %w", err)
		}
		opts = append(opts, suiteprefs.WithEncryption(enc))
	}

	a.store = suiteprefs.NewStore(opts...)
	a.closers = append(a.closers, a.store.Close)
	a.logger.Info("Store opened", "driver", a.cfg.Storage.Driver, "cache", a.cfg.Cache.Driver, "namespace", a.store.Namespace())
	return nil
}

func (a *app) openEnvironment(ctx context.Context) error {
	ec := a.cfg.Environment
	var base *environment.Static
	if ec.FromOS {
		base = environment.FromOS(a.logger)
	} else {
		base = environment.NewStatic(environment.StaticConfig{
			PrefersDark: ec.PrefersDark,
			Locale:      ec.Locale,
			DoNotTrack:  ec.DoNotTrack,
			CanFetch:    ec.CanFetch,
			Logger:      a.logger,
		})
	}

	if ec.ColorSchemeFile == "" {
		a.env = base
		return nil
	}

	scheme, err := environment.NewFileColorScheme(ec.ColorSchemeFile, base, a.logger)
	if err != nil {
		return err
	}
	if err := scheme.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, scheme.Close)
	a.env = scheme
	return nil
}

func (a *app) openTelemetry(ctx context.Context) error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tagger, err := a.buildTagger()
	if err != nil {
		return err
	}
	a.analytics = telemetry.NewAnalytics(a.store, a.env, tagger)
	if a.cfg.Analytics.MeasurementID != "" {
		if err := a.analytics.Initialize(ctx, a.cfg.Analytics.AnalyticsConfig); err != nil {
			return fmt.Errorf("initialize analytics: %w", err)
		}
	} else {
		a.logger.Warn("Analytics measurement ID not configured, analytics disabled")
	}

	a.errors = telemetry.NewErrorTracker(a.store, a.env)
	a.closers = append(a.closers, a.errors.Close)
	if err := a.errors.Initialize(ctx, a.cfg.ErrorTracking); err != nil {
		return fmt.Errorf("initialize error tracking: %w", err)
	}
	return nil
}

func (a *app) buildTagger() (telemetry.Tagger, error) {
	var taggers telemetry.MultiTagger
	for _, name := range a.cfg.Analytics.Taggers {
		switch name {
		case "log":
			taggers = append(taggers, telemetry.NewLogTagger(a.logger))
		case "prometheus":
			t, err := telemetry.NewPrometheusTagger(a.registry)
			if err != nil {
				return nil, err
			}
			taggers = append(taggers, t)
		case "amqp":
			t, err := telemetry.NewAMQPTagger(a.cfg.Analytics.AMQPURL, a.cfg.Analytics.Exchange)
			if err != nil {
				return nil, fmt.Errorf("connect analytics broker: %w", err)
			}
			a.closers = append(a.closers, t.Close)
			taggers = append(taggers, t)
		}
	}
	if len(taggers) == 1 {
		return taggers[0], nil
	}
	return taggers, nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	if a.i18n != nil {
		a.i18n.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("Shutdown finished with errors", "error", err)
		return err
	}
	return nil
}
