package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasr/batch-grades-processing/internal/config"
	"github.com/haasr/batch-grades-processing/internal/store"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded configuration in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom retrieves the configuration from the command context.
func ConfigFrom(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return nil, fmt.Errorf("no configuration loaded")
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger from the command context, falling back to
// a discard logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// openStore opens the configured grade database and brings its schema up to
// date.
func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := ConfigFrom(ctx)
	if err != nil {
		return nil, nil, err
	}

	s := store.New(LoggerFrom(ctx))
	if err := s.Open(cfg.Database); err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, cfg, nil
}
