// Package collab holds the HTTP clients for the services an enclave request
// fans out to: Together AI, the frontend credit API and the Walrus publisher.
package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	initialInterval  = 500 * time.Millisecond
	maxInterval      = 5 * time.Second
	multiplier       = 1.5
	maxElapsedTime   = 2 * time.Minute
	requestTimeout   = 2 * time.Minute
	maxResponseBytes = 32 << 20
)

// PromptRefiner rewrites a user prompt following instruction. A nil
// instruction returns prompt unchanged; an empty one still refines.
type PromptRefiner interface {
	Refine(ctx context.Context, prompt string, instruction *string) (string, error)
}

type GenerateRequest struct {
	Prompt    string
	Width     uint32
	Height    uint32
	Steps     uint32
	Seed      uint32
	LoraPath  string
	LoraScale float32
}

// ImageGenerator returns a base64 encoded image.
type ImageGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type Charge struct {
	UserAddress  string
	ModelCreator string
	ModelName    string
}

// CreditLedger tracks per-address generation credits.
type CreditLedger interface {
	Balance(ctx context.Context, address string) (int64, error)
	Charge(ctx context.Context, charge Charge) error
}

// BlobStore persists a blob and returns a URL it can be read from.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries a non-2xx response.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

type Option func(*baseClient)

func WithHTTPClient(c *http.Client) Option {
	return func(b *baseClient) { b.http = c }
}

// WithMaxElapsedTime bounds how long transient failures are retried.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(b *baseClient) { b.maxElapsed = d }
}

type baseClient struct {
	logger     *zap.Logger
	http       *http.Client
	maxElapsed time.Duration
}

func newBaseClient(logger *zap.Logger, opts []Option) baseClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := baseClient{
		logger:     logger,
		http:       &http.Client{Timeout: requestTimeout},
		maxElapsed: maxElapsedTime,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// do sends one request. 5xx responses and transport errors are retryable;
// every other non-2xx status is permanent.
func (b *baseClient) do(newRequest func() (*http.Request, error)) ([]byte, error) {
	req, err := newRequest()
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 500 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}
	return body, nil
}

func (b *baseClient) retryHTTPRequest(ctx context.Context, logMessage string, newRequest func() (*http.Request, error)) ([]byte, error) {
	retries := 0
	operation := func() ([]byte, error) {
		b.logger.Sugar().Debugw(logMessage, "retries", retries)
		retries++
		return b.do(newRequest)
	}

	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = initialInterval
	exponentialBackoff.MaxInterval = maxInterval
	exponentialBackoff.Multiplier = multiplier

	return backoff.Retry(
		ctx,
		operation,
		backoff.WithBackOff(exponentialBackoff),
		backoff.WithMaxElapsedTime(b.maxElapsed),
	)
}

// once sends a request that must not be repeated.
func (b *baseClient) once(newRequest func() (*http.Request, error)) ([]byte, error) {
	body, err := b.do(newRequest)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return nil, permanent.Err
	}
	return body, err
}
