// Package tutor turns study topics into prompts and routes them through
// the gateway.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tutorgate/tutorgate/internal/gateway"
	"github.com/tutorgate/tutorgate/internal/provider"
	"github.com/tutorgate/tutorgate/internal/ratelimit"
	"github.com/tutorgate/tutorgate/internal/stream"
)

var explainRequiredKeys = []string{"explanation", "summary"}

type Service struct {
	gateway *gateway.Gateway
}

func NewService(gw *gateway.Gateway) *Service {
	return &Service{gateway: gw}
}

// Explanation is the validated one-shot response.
type Explanation struct {
	Explanation string `json:"explanation"`
	Summary     string `json:"summary"`
}

// SuggestTopics streams an overview of a subject followed by five topic
// suggestions.
func (s *Service) SuggestTopics(ctx context.Context, identity, subject string, sink stream.Sink) error {
	return s.gateway.CompleteStream(ctx, identity, provider.Request{Prompt: topicsPrompt(subject)}, sink)
}

// GenerateQuestions streams an explanation of a topic followed by five
// practice questions.
func (s *Service) GenerateQuestions(ctx context.Context, identity, topic string, sink stream.Sink) error {
	return s.gateway.CompleteStream(ctx, identity, provider.Request{Prompt: questionsPrompt(topic)}, sink)
}

// Explain runs a one-shot explanation of a topic.
func (s *Service) Explain(ctx context.Context, identity, topic string) (*Explanation, error) {
	parsed, err := s.gateway.Complete(ctx, identity, provider.Request{Prompt: explainPrompt(topic)}, explainRequiredKeys)
	if err != nil {
		return nil, err
	}

	var result Explanation
	if err := unmarshalField(parsed, "explanation", &result.Explanation); err != nil {
		return nil, err
	}
	if err := unmarshalField(parsed, "summary", &result.Summary); err != nil {
		return nil, err
	}

	return &result, nil
}

func (s *Service) Limits(ctx context.Context, identity string) (ratelimit.Usage, error) {
	return s.gateway.Limits(ctx, identity)
}

func unmarshalField(parsed map[string]json.RawMessage, key string, dst *string) error {
	if err := json.Unmarshal(parsed[key], dst); err != nil {
		return fmt.Errorf("%w: key %q is not a string", gateway.ErrMalformedResponse, key)
	}
	return nil
}
