package config

import "context"

type ctxKey struct{}

// WithContext attaches a loaded config to ctx for command plumbing.
func WithContext(ctx context.Context, cfg *UserConfig) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config attached by WithContext, or a default
// config when none is present.
func FromContext(ctx context.Context) *UserConfig {
	if cfg, ok := ctx.Value(ctxKey{}).(*UserConfig); ok {
		return cfg
	}
	cfg := &UserConfig{}
	cfg.applyDefaults()
	return cfg
}
