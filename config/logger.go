package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CreativeUnicorns/suiteprefs"
)

// NewZapLogger creates a configured Zap logger from Viper settings.
// Reads "logging.level" (debug, info, warn, error; default "info")
// and "logging.format" (json, console; default "json").
// The returned level controls the logger at runtime.
func NewZapLogger(v *viper.Viper) (*zap.Logger, zap.AtomicLevel, error) {
	level := v.GetString("logging.level")
	format := v.GetString("logging.format")

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, cfg.Level, nil
}

// NewLogger returns the suiteprefs.Logger selected by "logging.backend", and a
// sync function to call before exit.
func NewLogger(v *viper.Viper) (suiteprefs.Logger, func() error, error) {
	switch backend := v.GetString("logging.backend"); backend {
	case "zap":
		zl, level, err := NewZapLogger(v)
		if err != nil {
			return nil, nil, err
		}
		return suiteprefs.NewZapLogger(zl, level), zl.Sync, nil
	case "slog", "":
		return suiteprefs.NewSlogLogger(os.Stderr, suiteprefs.ParseLogLevel(v.GetString("logging.level"))), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("invalid log backend %q: must be \"slog\" or \"zap\"", backend)
	}
}
