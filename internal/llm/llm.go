// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the typed boundary to the language model. Every call names
// a result type; replies are schema-constrained, decoded into that type, and
// validated before they leave the package. Untyped maps never cross it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Client sends one structured chat request and decodes the reply into result.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

// Request is one structured completion.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int

	// Temperature nil uses the model default; explicit 0 is deterministic.
	Temperature *float64

	// Fast selects the cheaper model for classification-style passes.
	Fast bool
}

// Response carries token usage.
type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// Validator is implemented by result types that check their own invariants.
type Validator interface {
	Validate() error
}

// ErrInvalidOutput wraps replies that decode but fail validation.
var ErrInvalidOutput = errors.New("invalid model output")

// retryDelay is the base backoff between attempts. Tests override it.
var retryDelay = 500 * time.Millisecond

const defaultAttempts = 3

// Generate calls c and returns a validated T. The schema is derived from T
// when req.Schema is nil. Transient failures and invalid replies are retried
// up to attempts times (default 3).
func Generate[T any](ctx context.Context, c Client, req Request, attempts int) (T, error) {
	var zero T
	if req.Schema == nil {
		req.Schema = GenerateSchema[T]()
	}
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var out T
	err := retry.Do(
		func() error {
			var v T
			if _, err := c.Chat(ctx, req, &v); err != nil {
				return err
			}
			if val, ok := any(&v).(Validator); ok {
				if err := val.Validate(); err != nil {
					return fmt.Errorf("%w: %s: %v", ErrInvalidOutput, req.SchemaName, err)
				}
			}
			out = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return IsRetryable(ctx, err) }),
		retry.OnRetry(func(n uint, err error) {
			slog.WarnContext(ctx, "llm call failed, retrying",
				"component", "llm", "schema", req.SchemaName, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// GenerateSchema reflects a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Temp returns a pointer to t for Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}

// IsRetryable reports whether err is worth another attempt: rate limits,
// server errors, network failures and invalid replies are; cancellation and
// other client errors are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrInvalidOutput) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return true
		}
		slog.ErrorContext(ctx, "llm client error, not retryable",
			"component", "llm", "status_code", apiErr.StatusCode)
		return false
	}
	return true
}

// Observer is notified after every Chat call.
type Observer func(schema string, elapsed time.Duration, err error)

type observed struct {
	Client
	observe Observer
}

// WithObserver wraps c so obs sees the schema name, latency and error of each call.
func WithObserver(c Client, obs Observer) Client {
	if obs == nil {
		return c
	}
	return &observed{Client: c, observe: obs}
}

func (o *observed) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	start := time.Now()
	resp, err := o.Client.Chat(ctx, req, result)
	o.observe(req.SchemaName, time.Since(start), err)
	return resp, err
}
