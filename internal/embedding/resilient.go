package embedding

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"iacrag/internal/domain"
	"iacrag/internal/logging"
)

// RetryPolicy bounds how long and how often a single embedding call is tried.
type RetryPolicy struct {
	MaxRetries  int
	Timeout     time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		Timeout:     30 * time.Second,
		BaseBackoff: 200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// delay returns the exponential backoff before retry number attempt (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseBackoff << attempt
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Option configures a Resilient embedder.
type Option func(*Resilient)

// WithPolicy replaces the default retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(r *Resilient) { r.policy = p }
}

// WithRateLimit limits attempts to rps requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64) Option {
	return func(r *Resilient) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(lg *log.Logger) Option {
	return func(r *Resilient) { r.logger = logging.OrNop(lg) }
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Resilient) { r.sleep = sleep }
}

// Resilient wraps an embedder with per-attempt timeouts, bounded retries for
// transient failures and an optional rate limit.
type Resilient struct {
	inner   domain.Embedder
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *log.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// Wrap returns inner guarded by the configured policy.
func Wrap(inner domain.Embedder, opts ...Option) *Resilient {
	r := &Resilient{
		inner:  inner,
		policy: DefaultRetryPolicy(),
		logger: logging.Nop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unwrap returns the wrapped embedder.
func (r *Resilient) Unwrap() domain.Embedder { return r.inner }

// Name returns the wrapped embedder's model identity.
func (r *Resilient) Name() string { return r.inner.Name() }

// Embed embeds a single text.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.do(ctx, "embed", func(ctx context.Context) error {
		vec, err := r.inner.Embed(ctx, text)
		out = vec
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EmbedBatch embeds texts as one retried unit when the wrapped embedder
// supports batches, and text by text otherwise.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batcher, ok := r.inner.(domain.BatchEmbedder)
	if !ok {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			vec, err := r.Embed(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = vec
		}
		return out, nil
	}

	var out [][]float32
	err := r.do(ctx, "embed_batch", func(ctx context.Context) error {
		vecs, err := batcher.EmbedBatch(ctx, texts)
		out = vecs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Prepare fits the wrapped embedder when it needs fitting and wraps the
// result with the same policy.
func (r *Resilient) Prepare(corpus []string) (domain.Embedder, error) {
	p, ok := r.inner.(domain.Preparer)
	if !ok {
		return r, nil
	}
	fitted, err := p.Prepare(corpus)
	if err != nil {
		return nil, err
	}
	clone := *r
	clone.inner = fitted
	return &clone, nil
}

func (r *Resilient) do(ctx context.Context, op string, call func(context.Context) error) error {
	retries := r.policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	var lastErr *domain.EmbeddingError
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			wait := r.policy.delay(attempt - 1)
			r.logger.Warn().
				Str("op", op).
				Str("embedder", r.inner.Name()).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Err(lastErr).
				Msg("Retrying embedding call")
			if err := r.sleep(ctx, wait); err != nil {
				return Classify(err)
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return domain.NewEmbeddingError(domain.EmbeddingTimeout, "rate limiter wait", err)
			}
		}

		err := r.attempt(ctx, call)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !err.Retryable() {
			return err
		}
	}
	r.logger.Error().
		Str("op", op).
		Str("embedder", r.inner.Name()).
		Int("attempts", retries+1).
		Err(lastErr).
		Msg("Embedding retries exhausted")
	return lastErr
}

func (r *Resilient) attempt(ctx context.Context, call func(context.Context) error) *domain.EmbeddingError {
	attemptCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	err := call(attemptCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.NewEmbeddingError(domain.EmbeddingTimeout, "attempt timed out", err)
	}
	return Classify(err)
}

// Classify converts any error into an EmbeddingError. Errors that already
// carry a kind are returned unchanged.
func Classify(err error) *domain.EmbeddingError {
	if err == nil {
		return nil
	}
	if ee, ok := domain.AsEmbeddingError(err); ok {
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewEmbeddingError(domain.EmbeddingTimeout, "deadline exceeded", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewEmbeddingError(domain.EmbeddingUnknown, "cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.NewEmbeddingError(domain.EmbeddingTimeout, "network timeout", err)
		}
		return domain.NewEmbeddingError(domain.EmbeddingNetwork, "network failure", err)
	}
	return domain.NewEmbeddingError(domain.EmbeddingUnknown, "unclassified failure", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
