package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/embedprep/internal/config"
)

// FromConfig builds a Client for the configured provider. A redis cache is
// attached when CacheURL is set and reachable; otherwise generation runs
// uncached.
func FromConfig(ctx context.Context, cfg config.Config, log *slog.Logger) (*Client, error) {
	if err := cfg.ValidateGeneration(); err != nil {
		return nil, err
	}
	key, model := cfg.ProviderKey()
	p, err := NewProvider(ctx, ProviderConfig{
		Provider: cfg.GenerationProvider,
		APIKey:   key,
		Model:    model,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.GenerationProvider, err)
	}

	opts := []ClientOption{
		WithLogger(log),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			Factor:       2,
			MaxDelay:     cfg.RetryMaxDelay,
		}),
	}
	if cfg.CacheURL != "" {
		cache, err := NewRedisCache(cfg.CacheURL, cfg.CacheTTL)
		if err != nil {
			log.Warn("generation cache disabled", "error", err)
		} else if err := cache.Ping(ctx); err != nil {
			log.Warn("generation cache unreachable, continuing without it", "error", err)
			cache.Close()
		} else {
			opts = append(opts, WithCache(cache))
		}
	}

	c := NewClient(p, opts...)
	log.Info("generation client ready", "provider", c.Provider(), "model", c.Model())
	return c, nil
}
