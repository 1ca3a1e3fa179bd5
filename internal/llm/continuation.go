package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"recast/internal/errors"
	"recast/internal/logging"
)

// DefaultMaxContinuations bounds how many continuation rounds a single
// completion may consume before the engine gives up.
const DefaultMaxContinuations = 5

// Rate-limit backoff: base doubles per retry up to the cap. Overload uses
// a shorter cap since providers recover faster from load shedding.
const (
	rateLimitBaseDelay  = 2 * time.Second
	rateLimitMaxDelay   = 60 * time.Second
	rateLimitMaxRetries = 5
	rateLimitJitter     = 0.10

	overloadBaseDelay  = 2 * time.Second
	overloadMaxDelay   = 32 * time.Second
	overloadMaxRetries = 5
)

// Diagnostics counts what the continuation engine did across one Complete
// call. All counters reset per call.
type Diagnostics struct {
	Attempts         int
	ExactMatches     int
	HashMatches      int
	TokenMatches     int
	LLMJoins         int
	Fallbacks        int
	StructureRepairs int
}

// Map renders the counters for event payloads.
func (d Diagnostics) Map() map[string]any {
	return map[string]any{
		"attempts":          d.Attempts,
		"exact_matches":     d.ExactMatches,
		"hash_matches":      d.HashMatches,
		"token_matches":     d.TokenMatches,
		"llm_joins":         d.LLMJoins,
		"fallbacks":         d.Fallbacks,
		"structure_repairs": d.StructureRepairs,
	}
}

// Engine wraps a Client and transparently rejoins responses that were cut
// off by the provider's output length limit. Rate-limited and overloaded
// requests are retried with backoff; truncated responses are continued
// with an overlap-anchored prompt and spliced back together.
type Engine struct {
	client  Client
	logger  logging.Logger
	maxCont int

	// sleeper is injectable so tests can observe delays without waiting.
	sleeper errors.Sleeper
	rng     *rand.Rand
}

var _ Client = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxContinuations overrides the continuation round budget.
func WithMaxContinuations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxCont = n
		}
	}
}

// WithSleeper replaces the backoff sleep function.
func WithSleeper(s errors.Sleeper) EngineOption {
	return func(e *Engine) { e.sleeper = s }
}

// NewEngine builds a continuation engine around a transport client.
func NewEngine(client Client, logger logging.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		client:  client,
		logger:  logging.OrNop(logger),
		maxCont: DefaultMaxContinuations,
		sleeper: errors.SleepContext,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the underlying client's model identifier.
func (e *Engine) Model() string { return e.client.Model() }

// Complete runs the request, continuing truncated responses until the
// model stops naturally or the continuation budget is exhausted.
func (e *Engine) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, _, err := e.CompleteWithDiagnostics(ctx, req)
	return resp, err
}

// CompleteWithDiagnostics is Complete plus the per-call counters, for
// callers that record engine behavior in lineage events.
func (e *Engine) CompleteWithDiagnostics(ctx context.Context, req CompletionRequest) (*CompletionResponse, Diagnostics, error) {
	var diag Diagnostics

	resp, err := e.completeWithBackoff(ctx, req)
	if err != nil {
		return nil, diag, err
	}

	contentType := DetectContentType(req.Messages)
	accumulated := resp.Content
	usage := resp.Usage
	finish := resp.FinishReason

	for finish == FinishLength && diag.Attempts < e.maxCont {
		diag.Attempts++
		overlap := overlapWindow(accumulated, contentType)
		e.logger.Info("continuation: attempt %d/%d, content_type=%s, overlap=%d lines",
			diag.Attempts, e.maxCont, contentType, len(overlap))

		contReq := CompletionRequest{
			Messages: append(append([]Message{}, req.Messages...),
				Message{Role: RoleAssistant, Content: accumulated},
				Message{Role: RoleUser, Content: continuationPrompt(overlap, contentType)},
			),
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			ExtraParams: req.ExtraParams,
		}

		next, err := e.completeWithBackoff(ctx, contReq)
		if err != nil {
			return nil, diag, fmt.Errorf("continuation attempt %d: %w", diag.Attempts, err)
		}

		accumulated = e.join(ctx, accumulated, next.Content, overlap, contentType, &diag)
		usage.Add(next.Usage)
		finish = next.FinishReason
	}

	if finish == FinishLength {
		e.logger.Warn("continuation: budget of %d attempts exhausted, returning partial content", e.maxCont)
	}

	if repaired, ok := repairEscapeArtifacts(accumulated, contentType); ok {
		e.logger.Info("continuation: repaired escape artifacts at join boundary")
		accumulated = repaired
	}
	if diag.Attempts > 0 {
		validated, repaired := validateJoined(accumulated, contentType, e.logger)
		if repaired {
			diag.StructureRepairs++
		}
		accumulated = validated
	}

	return &CompletionResponse{
		Content:      accumulated,
		FinishReason: finish,
		Model:        resp.Model,
		Usage:        usage,
	}, diag, nil
}

// join splices a continuation onto the accumulated content, trying each
// seam strategy in order of confidence.
func (e *Engine) join(ctx context.Context, accumulated, continuation string, overlap []string, contentType ContentType, diag *Diagnostics) string {
	if rest, ok := stripMarkers(continuation); ok {
		diag.ExactMatches++
		e.logger.Debug("continuation: joined via overlap markers")
		return basicJoin(accumulated, rest, contentType)
	}
	if rest, ok := exactJoin(continuation, overlap); ok {
		diag.ExactMatches++
		e.logger.Debug("continuation: joined via exact overlap")
		return basicJoin(accumulated, rest, contentType)
	}
	if rest, ok := hashJoin(continuation, overlap, contentType); ok {
		diag.HashMatches++
		e.logger.Debug("continuation: joined via normalized hash window")
		return basicJoin(accumulated, rest, contentType)
	}
	if joined, ok := tokenJoin(accumulated, continuation); ok {
		diag.TokenMatches++
		e.logger.Debug("continuation: joined via common token run")
		return joined
	}
	if joined, ok := llmJoin(ctx, e.client, accumulated, continuation, contentType); ok {
		diag.LLMJoins++
		e.logger.Info("continuation: joined via model-assisted stitch")
		return joined
	}
	diag.Fallbacks++
	e.logger.Warn("continuation: no seam match found, using syntax-aware concatenation")
	return basicJoin(accumulated, continuation, contentType)
}

// completeWithBackoff issues a single completion, absorbing rate-limit and
// overload errors with their own retry budgets. The caller's continuation
// attempt counter never advances across these retries. Any other error
// propagates immediately.
func (e *Engine) completeWithBackoff(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	rateLimitRetries := 0
	overloadRetries := 0

	for {
		resp, err := e.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		switch {
		case errors.IsRateLimit(err):
			if rateLimitRetries >= rateLimitMaxRetries {
				return nil, fmt.Errorf("rate limit retries exhausted: %w", err)
			}
			delay := e.rateLimitDelay(err, rateLimitRetries)
			rateLimitRetries++
			e.logger.Warn("rate limited, retry %d/%d in %s", rateLimitRetries, rateLimitMaxRetries, delay)
			if serr := e.sleeper(ctx, delay); serr != nil {
				return nil, serr
			}
		case errors.IsTransient(err):
			if overloadRetries >= overloadMaxRetries {
				return nil, fmt.Errorf("overload retries exhausted: %w", err)
			}
			delay := overloadDelay(overloadRetries)
			overloadRetries++
			e.logger.Warn("provider overloaded, retry %d/%d in %s", overloadRetries, overloadMaxRetries, delay)
			if serr := e.sleeper(ctx, delay); serr != nil {
				return nil, serr
			}
		default:
			return nil, err
		}
	}
}

// rateLimitDelay doubles a 2s base per retry, caps at 60s, honors a larger
// server-provided Retry-After, and jitters the result by ±10%.
func (e *Engine) rateLimitDelay(err error, retry int) time.Duration {
	delay := rateLimitBaseDelay << retry
	if delay > rateLimitMaxDelay {
		delay = rateLimitMaxDelay
	}
	var rle *errors.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		if serverDelay := time.Duration(rle.RetryAfter) * time.Second; serverDelay > delay {
			delay = serverDelay
		}
	}
	jitter := 1 + rateLimitJitter*(2*e.rng.Float64()-1)
	return time.Duration(float64(delay) * jitter)
}

// overloadDelay is 2^(retry) times the base, capped at 32s, no jitter.
func overloadDelay(retry int) time.Duration {
	delay := overloadBaseDelay << retry
	if delay > overloadMaxDelay {
		delay = overloadMaxDelay
	}
	return delay
}
