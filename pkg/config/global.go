package config

import "context"

var globalManager = NewManager()

// Initialize loads the process-wide configuration from sources, in order,
// and stores the result for Get to return. A singleton-accessor
// convenience used only by cmd/live-memory's bootstrap — everywhere else
// takes a *Config explicitly (Design Notes §9: explicit composition, not
// ambient globals).
func Initialize(sources ...Source) (*Config, error) {
	cfg, err := globalManager.Load(sources...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the last configuration passed to Initialize.
func Get() *Config { return globalManager.Get() }

type ctxKey string

const configCtxKey ctxKey = "live_memory_config"

// ContextWithConfig returns a copy of ctx carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configCtxKey, cfg)
}

// FromContext returns the Config stored in ctx, falling back to Get() (the
// process-wide config) if ctx carries none.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return Get()
}
