package gen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/abdhe/code-assistant/pkg/cache"
	"github.com/abdhe/code-assistant/pkg/metrics"
	"github.com/abdhe/code-assistant/pkg/prompt"
	"github.com/abdhe/code-assistant/pkg/provider"
	"github.com/abdhe/code-assistant/pkg/resilience"
)

// Defaults applied by NewInvoker.
const (
	DefaultMaxInputTokens = 1024
	DefaultTopP           = 0.9
	DefaultTimeout        = 2 * time.Minute
)

// Config holds the invoker configuration.
type Config struct {
	Handle   *provider.Handle
	Template prompt.Template

	MaxInputTokens int     // Prompt tokens kept after truncation
	TopP           float64 // Nucleus sampling mass

	// Timeout bounds queue wait plus generation.
	Timeout time.Duration

	// QueueSize is how many requests may wait while one generates.
	// Zero rejects whenever the model is busy; negative never rejects.
	QueueSize int

	Breaker *resilience.CircuitBreaker // optional
	Cache   cache.Cache                // optional, temperature 0 only
	Logger  *slog.Logger
}

// Invoker runs generations against a shared model handle, one at a time and
// in arrival order.
type Invoker struct {
	handle         *provider.Handle
	template       prompt.Template
	maxInputTokens int
	topP           float64
	timeout        time.Duration
	queueSize      int
	breaker        *resilience.CircuitBreaker
	cache          cache.Cache
	log            *slog.Logger

	sem     *semaphore.Weighted
	pending atomic.Int64 // waiting + running
}

// NewInvoker creates a new invoker.
func NewInvoker(cfg Config) *Invoker {
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = DefaultMaxInputTokens
	}
	if cfg.TopP <= 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Template == (prompt.Template{}) {
		cfg.Template = prompt.DefaultTemplate()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Invoker{
		handle:         cfg.Handle,
		template:       cfg.Template,
		maxInputTokens: cfg.MaxInputTokens,
		topP:           cfg.TopP,
		timeout:        cfg.Timeout,
		queueSize:      cfg.QueueSize,
		breaker:        cfg.Breaker,
		cache:          cfg.Cache,
		log:            cfg.Logger.With("component", "invoker"),
		sem:            semaphore.NewWeighted(1),
	}
}

// Handle returns the model handle, possibly nil.
func (inv *Invoker) Handle() *provider.Handle { return inv.handle }

// Template returns the chat template used to format and extract.
func (inv *Invoker) Template() prompt.Template { return inv.template }

// Invoke generates a reply to an already formatted prompt. It never returns
// an error value: every failure is folded into the Result.
func (inv *Invoker) Invoke(ctx context.Context, formatted string, maxNewTokens int, temperature float64) Result {
	if !inv.handle.Ready() {
		return failure(ErrModelUnavailable)
	}

	deterministic := temperature == 0
	var key string
	if inv.cache != nil && deterministic {
		key = cache.Key(inv.handle.ModelID(), maxNewTokens, formatted)
		if res, ok := inv.lookup(ctx, key); ok {
			return res
		}
	}

	// The deadline covers the wait in the queue and the generation itself.
	deadline := time.Now().Add(inv.timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := inv.acquire(waitCtx); err != nil {
		var genErr *Error
		switch {
		case errors.As(err, &genErr):
			return failure(genErr)
		case errors.Is(err, context.DeadlineExceeded):
			return failure(timeoutError(err))
		default:
			return failure(generationError(err))
		}
	}
	defer inv.release()

	// Once started, a generation is not cancelled by the caller going away.
	runCtx, runCancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer runCancel()

	decoded, err := inv.run(runCtx, formatted, maxNewTokens, temperature)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			inv.log.Warn("generation timed out", "timeout", inv.timeout)
			return failure(timeoutError(err))
		}
		inv.log.Error("generation failed", "error", err)
		return failure(generationError(err))
	}

	text, ok := inv.template.Extract(decoded)
	if !ok {
		return failure(ErrEmptyOutput)
	}

	if key != "" {
		inv.store(ctx, key, text)
	}
	return success(text)
}

// run calls the provider under the circuit breaker. Provider panics are
// converted into errors.
func (inv *Invoker) run(ctx context.Context, formatted string, maxNewTokens int, temperature float64) (decoded string, err error) {
	tok := inv.handle.Tokenizer()
	model := inv.handle.Model()

	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()

	err = inv.breaker.Execute(func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("provider panic: %v", r)
			}
		}()

		tokens, err := tok.Encode(ctx, formatted, inv.maxInputTokens)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		eos := tok.EOSTokenID()
		out, err := model.Generate(ctx, tokens, provider.SamplingParams{
			MaxNewTokens: maxNewTokens,
			Temperature:  temperature,
			TopP:         inv.topP,
			DoSample:     temperature > 0,
			PadTokenID:   eos,
			EOSTokenID:   eos,
		})
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}

		metrics.TokenUsageTotal.WithLabelValues("input").Add(float64(len(tokens)))
		if n := len(out) - len(tokens); n > 0 {
			metrics.TokenUsageTotal.WithLabelValues("output").Add(float64(n))
		}

		decoded, err = tok.Decode(ctx, out)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	})
	return decoded, err
}

func (inv *Invoker) acquire(ctx context.Context) error {
	n := inv.pending.Add(1)
	if inv.queueSize >= 0 && n > int64(inv.queueSize)+1 {
		inv.pending.Add(-1)
		return ErrBusy
	}

	metrics.QueueDepth.Inc()
	err := inv.sem.Acquire(ctx, 1)
	metrics.QueueDepth.Dec()
	if err != nil {
		inv.pending.Add(-1)
		return err
	}
	return nil
}

func (inv *Invoker) release() {
	inv.sem.Release(1)
	inv.pending.Add(-1)
}

func (inv *Invoker) lookup(ctx context.Context, key string) (Result, bool) {
	e, found, err := inv.cache.Get(ctx, key)
	if err != nil {
		inv.log.Warn("cache lookup failed, treating as miss", "error", err)
	}
	metrics.RecordCacheLookup(found)
	if !found || e.Text == "" {
		return Result{}, false
	}
	return Result{Text: e.Text, Cached: true}, true
}

func (inv *Invoker) store(ctx context.Context, key, text string) {
	if err := inv.cache.Set(context.WithoutCancel(ctx), key, cache.Entry{Text: text, StoredAt: time.Now()}); err != nil {
		inv.log.Warn("cache store failed", "error", err)
	}
}
