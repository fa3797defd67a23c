// Package provider speaks to an OpenAI-compatible text-generation API.
package provider

import "context"

// Request is one generation call. Model and credentials are client
// configuration, not per-request inputs.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider is the capability the rest of the service depends on: given
// a prompt, produce either a complete text or a finite ordered stream
// of fragments.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream calls fn for each fragment in arrival order and
	// returns once the stream is exhausted or broken. An error from fn
	// stops consumption and is returned as-is.
	GenerateStream(ctx context.Context, req Request, fn func(fragment string) error) error
}

type Config struct {
	Endpoints   []string
	APIKey      string
	Model       string
	MaxTokens   int     // default when Request.MaxTokens is zero
	Temperature float64 // default when Request.Temperature is zero
	TimeoutSecs int
}
