package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prodigy/internal/adapters/ai"
	"prodigy/internal/domain/counsel"
	"prodigy/internal/domain/usage"
	"prodigy/internal/metrics"
	"prodigy/pkg/errors"
	"prodigy/pkg/logger"
	"prodigy/pkg/schemas"
)

// RetryConfig configures exponential backoff between attempts of one call.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns 3 attempts with 500ms, 1s backoff capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryError is returned when every attempt of a call failed.
// It matches both ErrRetriesExhausted and the last cause.
type RetryError struct {
	Agent    string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: %d attempts failed: %v", e.Agent, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error {
	return []error{errors.ErrRetriesExhausted, e.Err}
}

// CallerConfig wires the caller's collaborators. Only Models is required.
type CallerConfig struct {
	Models    *ai.ModelSelector
	Validator *schemas.Validator
	Guard     *CostGuard
	Usage     usage.Recorder
	Retry     RetryConfig
}

// Caller performs one logical external call with bounded retry, cost
// accounting and usage recording. Safe for concurrent use.
type Caller struct {
	models    *ai.ModelSelector
	validator *schemas.Validator
	guard     *CostGuard
	usage     usage.Recorder
	retry     RetryConfig
	log       *logger.Logger
}

// NewCaller creates a caller
func NewCaller(cfg CallerConfig) *Caller {
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = 2.0
	}
	return &Caller{
		models:    cfg.Models,
		validator: cfg.Validator,
		guard:     cfg.Guard,
		usage:     cfg.Usage,
		retry:     cfg.Retry,
		log:       logger.Get().With("component", "agent_caller"),
	}
}

// Call describes one prompt sent on behalf of an agent.
type Call struct {
	Agent       string
	Mode        string
	Schema      string // empty skips validation
	System      string
	User        string
	Temperature float64
}

// Structured sends the call in JSON mode and returns the decoded object.
// Unparseable replies are retried like transport failures.
func (c *Caller) Structured(ctx context.Context, call Call) (counsel.Payload, error) {
	var payload counsel.Payload
	err := c.do(ctx, call, true, func(content string) error {
		p, err := counsel.ParsePayload(content)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if call.Schema != "" && c.validator != nil {
		if verr := c.validator.Validate(call.Schema, payload); verr != nil {
			metrics.SchemaViolations.WithLabelValues(call.Agent).Inc()
			c.log.Warnw("Reply does not match schema", "agent", call.Agent, "schema", call.Schema, "error", verr)
		}
	}
	return payload, nil
}

// Text sends the call and returns the reply verbatim.
func (c *Caller) Text(ctx context.Context, call Call) (string, error) {
	var text string
	err := c.do(ctx, call, false, func(content string) error {
		text = content
		return nil
	})
	return text, err
}

func (c *Caller) do(ctx context.Context, call Call, jsonMode bool, accept func(content string) error) error {
	binding, err := c.models.Resolve(ctx, call.Agent)
	if err != nil {
		return errors.Wrapf(err, "resolve model for %s", call.Agent)
	}

	var (
		tracker = CostTrackerFromContext(ctx)
		start   = time.Now()
		rec     = usage.Record{
			ID:       uuid.New(),
			Agent:    call.Agent,
			Mode:     call.Mode,
			Provider: binding.Config.Provider.String(),
			Model:    binding.Model.Name,
		}
		delay   = c.retry.InitialDelay
		lastErr error
	)
	if runID, ok := errors.RunIDFromContext(ctx); ok {
		rec.RunID = runID
	}
	if tracker != nil {
		tracker.RecordCall()
	}

	finish := func(err error) error {
		rec.LatencyMS = uint32(time.Since(start).Milliseconds())
		rec.Success = err == nil
		if err != nil {
			rec.Error = err.Error()
		}
		rec.CreatedAt = time.Now().UTC()
		if c.usage != nil {
			c.usage.RecordUsage(ctx, rec)
		}
		metrics.RecordAgentCall(call.Agent, rec.Model, time.Since(start), rec.CostUSD,
			int(rec.PromptTokens), int(rec.CompletionTokens), err)
		return err
	}

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		rec.Attempts = uint8(attempt)

		if err := c.guard.Check(ctx); err != nil {
			return finish(err)
		}

		resp, err := binding.Provider.Chat(ctx, ai.ChatRequest{
			Model:       binding.Model.Name,
			Messages:    ai.SystemAndUser(call.System, call.User),
			Temperature: ai.Temperature(call.Temperature),
			JSONMode:    jsonMode,
		})
		if err == nil {
			rec.PromptTokens += uint32(resp.Usage.PromptTokens)
			rec.CompletionTokens += uint32(resp.Usage.CompletionTokens)
			cost := binding.Model.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			rec.CostUSD += cost
			if tracker != nil {
				tracker.RecordUsage(binding.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			}
			c.guard.RecordCost(ctx, cost)

			if err = accept(resp.Content); err == nil {
				return finish(nil)
			}
		}
		lastErr = err

		if ctx.Err() != nil {
			return finish(errors.Wrapf(ctx.Err(), "%s call cancelled", call.Agent))
		}
		if !ai.IsRetryable(err) {
			return finish(errors.Wrapf(err, "%s call failed", call.Agent))
		}
		if attempt == c.retry.MaxAttempts {
			break
		}

		c.log.Warnw("Agent call failed, retrying",
			"agent", call.Agent,
			"attempt", attempt,
			"max_attempts", c.retry.MaxAttempts,
			"backoff", delay,
			"error", err,
		)
		metrics.RecordRetry(call.Agent, retryReason(err))

		select {
		case <-ctx.Done():
			return finish(errors.Wrapf(ctx.Err(), "%s call cancelled during backoff", call.Agent))
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.retry.Multiplier)
		if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}

	return finish(&RetryError{Agent: call.Agent, Attempts: c.retry.MaxAttempts, Err: lastErr})
}

func retryReason(err error) string {
	var rl *ai.RateLimitError
	switch {
	case errors.As(err, &rl):
		return "rate_limit"
	case errors.Is(err, errors.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, errors.ErrTimeout):
		return "timeout"
	default:
		return "transport"
	}
}
