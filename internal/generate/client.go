package generate

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dgallion1/embedprep/internal/telemetry"
)

// Client wraps a Provider with caching, retries, tracing and latency stats.
// It is safe for concurrent use.
type Client struct {
	provider Provider
	cache    Cache
	policy   RetryPolicy
	log      *slog.Logger
	tracer   trace.Tracer

	Stats *LLMStats
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache serves repeated prompts from c.
func WithCache(c Cache) ClientOption {
	return func(cl *Client) { cl.cache = c }
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(cl *Client) { cl.policy = p }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) { cl.log = l }
}

func WithStats(s *LLMStats) ClientOption {
	return func(cl *Client) { cl.Stats = s }
}

func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: p,
		policy:   DefaultRetryPolicy(),
		log:      slog.Default(),
		tracer:   telemetry.Tracer("embedprep/generate"),
		Stats:    NewLLMStats(time.Hour),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the provider's model name.
func (c *Client) Model() string { return c.provider.Model() }

// Provider returns the provider name.
func (c *Client) Provider() string { return c.provider.Name() }

// Close releases the provider and, when it holds connections, the cache.
func (c *Client) Close() error {
	err := c.provider.Close()
	if closer, ok := c.cache.(interface{ Close() error }); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Generate returns the raw reply for req.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	key := CacheKey(c.provider.Name(), c.provider.Model(), req.Prompt)
	if c.cache != nil {
		val, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("generation cache read failed", "error", err)
		} else if ok {
			c.Stats.RecordCacheHit()
			return val, nil
		}
	}

	ctx, span := c.tracer.Start(ctx, "generate."+c.provider.Name(),
		trace.WithAttributes(attribute.String("model", c.provider.Model())))

	var out string
	start := time.Now()
	err := c.policy.Do(ctx, func(attempt int) error {
		span.SetAttributes(attribute.Int("attempt", attempt+1))
		var err error
		out, err = c.provider.Generate(ctx, req)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		c.Stats.RecordRetry()
		c.log.Warn("Transient generation error, retrying",
			"provider", c.provider.Name(),
			"attempt", attempt+1,
			"max_attempts", c.policy.MaxAttempts,
			"wait", wait.Round(10*time.Millisecond),
			"error", err,
		)
	})
	telemetry.End(span, err)
	if err != nil {
		c.Stats.RecordFailure()
		return "", err
	}
	c.Stats.Record(time.Since(start))

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, out); err != nil {
			c.log.Warn("generation cache write failed", "error", err)
		}
	}
	return out, nil
}

// Generator answers a Request with the model's raw reply. *Client is one.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Structured generates and decodes a JSON array of T.
func Structured[T any](ctx context.Context, g Generator, req Request) ([]T, error) {
	raw, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return Decode[T](raw)
}
