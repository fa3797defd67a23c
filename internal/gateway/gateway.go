// Package gateway sequences every provider call: rate-limit admission,
// retry with breaker protection, then response decoding or validation.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tutorgate/tutorgate/internal/circuitbreaker"
	"github.com/tutorgate/tutorgate/internal/provider"
	"github.com/tutorgate/tutorgate/internal/ratelimit"
	"github.com/tutorgate/tutorgate/internal/retry"
	"github.com/tutorgate/tutorgate/internal/stream"
)

var (
	// ErrRateLimited means admission was denied; no provider call was
	// made and no quota consumed.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrMalformedResponse means the provider answered but the payload
	// is missing required structure. Retrying the same prompt is
	// unlikely to fix a format violation, so it is never retried.
	ErrMalformedResponse = errors.New("malformed provider response")
)

type Gateway struct {
	limiter  *ratelimit.Limiter
	provider provider.Provider
	breaker  *circuitbreaker.Breaker

	oneShotRetry retry.Config
	streamRetry  retry.Config
}

func New(limiter *ratelimit.Limiter, prov provider.Provider, breaker *circuitbreaker.Breaker, oneShotRetry, streamRetry retry.Config) *Gateway {
	return &Gateway{
		limiter:      limiter,
		provider:     prov,
		breaker:      breaker,
		oneShotRetry: oneShotRetry,
		streamRetry:  streamRetry,
	}
}

func (g *Gateway) Limits(ctx context.Context, identity string) (ratelimit.Usage, error) {
	return g.limiter.Describe(ctx, identity)
}

// admit charges quota exactly once per logical request, before any
// retry attempt.
func (g *Gateway) admit(ctx context.Context, identity string) error {
	allowed, err := g.limiter.Admit(ctx, identity)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		slog.Info("request rejected by rate limiter", "identity", identity)
		return ErrRateLimited
	}
	return nil
}

// Complete runs a one-shot generation and validates that the response
// is a JSON object containing every required top-level key.
func (g *Gateway) Complete(ctx context.Context, identity string, req provider.Request, requiredKeys []string) (map[string]json.RawMessage, error) {
	if err := g.admit(ctx, identity); err != nil {
		return nil, err
	}

	text, err := retry.Do(ctx, g.oneShotRetry, func() (string, error) {
		var out string
		err := g.breaker.Call(func() error {
			var callErr error
			out, callErr = g.provider.Generate(ctx, req)
			return callErr
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}

	for _, key := range requiredKeys {
		if _, ok := parsed[key]; !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrMalformedResponse, key)
		}
	}

	return parsed, nil
}

// CompleteStream runs a streaming generation through a fresh decoder.
// A transport failure restarts the whole call, decoder included, so the
// sink must tolerate seeing a smaller snapshot after a larger one from
// an abandoned attempt.
func (g *Gateway) CompleteStream(ctx context.Context, identity string, req provider.Request, sink stream.Sink) error {
	if err := g.admit(ctx, identity); err != nil {
		return err
	}

	_, err := retry.Do(ctx, g.streamRetry, func() (struct{}, error) {
		decoder := stream.NewDecoder(sink)
		err := g.breaker.Call(func() error {
			return g.provider.GenerateStream(ctx, req, func(fragment string) error {
				decoder.Feed(fragment)
				return nil
			})
		})
		return struct{}{}, err
	})
	return err
}
