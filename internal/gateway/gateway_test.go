package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorgate/tutorgate/internal/circuitbreaker"
	"github.com/tutorgate/tutorgate/internal/provider"
	"github.com/tutorgate/tutorgate/internal/ratelimit"
	"github.com/tutorgate/tutorgate/internal/retry"
	"github.com/tutorgate/tutorgate/internal/stream"
)

// fakeProvider scripts responses per call.
type fakeProvider struct {
	generateCalls int
	streamCalls   int

	responses []string // per Generate call; empty string means error
	streams   []func(fn func(string) error) error
}

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) (string, error) {
	call := f.generateCalls
	f.generateCalls++
	if call >= len(f.responses) || f.responses[call] == "" {
		return "", errors.New("provider unavailable")
	}
	return f.responses[call], nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req provider.Request, fn func(string) error) error {
	call := f.streamCalls
	f.streamCalls++
	if call >= len(f.streams) {
		return errors.New("provider unavailable")
	}
	return f.streams[call](fn)
}

func noDelay() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func newTestGateway(prov provider.Provider, caps ratelimit.Caps) (*Gateway, *ratelimit.Limiter) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(100), caps)
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 100})
	return New(limiter, prov, breaker, noDelay(), noDelay()), limiter
}

func TestComplete_ValidResponse(t *testing.T) {
	prov := &fakeProvider{responses: []string{`{"explanation":"because","summary":"short"}`}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	parsed, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, []string{"explanation", "summary"})

	require.NoError(t, err)
	assert.Contains(t, parsed, "explanation")
	assert.Contains(t, parsed, "summary")
	assert.Equal(t, 1, prov.generateCalls)
}

func TestComplete_RateLimitedMakesNoProviderCall(t *testing.T) {
	prov := &fakeProvider{responses: []string{`{}`, `{}`}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 1, PerHour: 10, PerDay: 10})

	_, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)
	require.NoError(t, err)

	_, err = gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, prov.generateCalls, "denied request must not reach the provider")
}

func TestComplete_MissingKeyIsMalformed(t *testing.T) {
	prov := &fakeProvider{responses: []string{`{"explanation":"only"}`}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	_, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, []string{"explanation", "summary"})

	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "summary")
	assert.Equal(t, 1, prov.generateCalls, "format violations are not retried")
}

func TestComplete_NonObjectIsMalformed(t *testing.T) {
	prov := &fakeProvider{responses: []string{`just some text`}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	_, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestComplete_RetriesTransientFailures(t *testing.T) {
	prov := &fakeProvider{responses: []string{"", "", `{"ok":true}`}}
	gw, limiter := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	parsed, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, []string{"ok"})

	require.NoError(t, err)
	assert.Contains(t, parsed, "ok")
	assert.Equal(t, 3, prov.generateCalls)

	// Three attempts, one logical request, one unit of quota
	usage, err := limiter.Describe(context.Background(), "sess")
	require.NoError(t, err)
	assert.Equal(t, 4, usage.Minute.Remaining)
}

func TestComplete_ExhaustionSurfacesLastError(t *testing.T) {
	prov := &fakeProvider{}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	_, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)

	require.True(t, retry.IsExhausted(err))
	assert.Contains(t, err.Error(), "provider unavailable")
	assert.Equal(t, 3, prov.generateCalls)
}

func scriptedStream(fragments ...string) func(fn func(string) error) error {
	return func(fn func(string) error) error {
		for _, f := range fragments {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}
}

func brokenStream(fragments ...string) func(fn func(string) error) error {
	return func(fn func(string) error) error {
		for _, f := range fragments {
			if err := fn(f); err != nil {
				return err
			}
		}
		return errors.New("connection reset mid-stream")
	}
}

func TestCompleteStream_SnapshotsReachSink(t *testing.T) {
	prov := &fakeProvider{streams: []func(fn func(string) error) error{
		scriptedStream("Hi ", "there", "---", `{"topics":[{"name":"A","type":"x","detail":"d"}]}`),
	}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	var snapshots []stream.Snapshot
	err := gw.CompleteStream(context.Background(), "sess", provider.Request{Prompt: "p"},
		func(s stream.Snapshot) { snapshots = append(snapshots, s) })

	require.NoError(t, err)
	require.NotEmpty(t, snapshots)
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, "Hi there", final.Text)
	require.Len(t, final.Topics, 1)
}

func TestCompleteStream_RestartsDecoderPerAttempt(t *testing.T) {
	prov := &fakeProvider{streams: []func(fn func(string) error) error{
		brokenStream("First attempt partial"),
		scriptedStream("Second attempt", "---", `{"topics":[{"name":"A","type":"x","detail":"d"}]}`),
	}}
	gw, limiter := newTestGateway(prov, ratelimit.Caps{PerMinute: 5, PerHour: 5, PerDay: 5})

	var snapshots []stream.Snapshot
	err := gw.CompleteStream(context.Background(), "sess", provider.Request{Prompt: "p"},
		func(s stream.Snapshot) { snapshots = append(snapshots, s) })

	require.NoError(t, err)
	assert.Equal(t, 2, prov.streamCalls)

	// The abandoned attempt's text never bleeds into the retry
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, "Second attempt", final.Text)
	assert.NotContains(t, final.Text, "First attempt")

	// Quota charged once despite two attempts
	usage, err := limiter.Describe(context.Background(), "sess")
	require.NoError(t, err)
	assert.Equal(t, 4, usage.Minute.Remaining)
}

func TestCompleteStream_RateLimitedBeforeAnyAttempt(t *testing.T) {
	prov := &fakeProvider{streams: []func(fn func(string) error) error{
		scriptedStream("only call"),
	}}
	gw, _ := newTestGateway(prov, ratelimit.Caps{PerMinute: 1, PerHour: 1, PerDay: 1})

	_, err := gw.Limits(context.Background(), "sess")
	require.NoError(t, err)

	err = gw.CompleteStream(context.Background(), "sess", provider.Request{Prompt: "p"}, func(stream.Snapshot) {})
	require.NoError(t, err, "first request fits the quota")

	err = gw.CompleteStream(context.Background(), "sess", provider.Request{Prompt: "p"}, func(stream.Snapshot) {})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, prov.streamCalls)
}

func TestComplete_BreakerOpenFailsFast(t *testing.T) {
	prov := &fakeProvider{}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(10), ratelimit.Caps{PerMinute: 50, PerHour: 50, PerDay: 50})
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 2})
	gw := New(limiter, prov, breaker, noDelay(), noDelay())

	_, err := gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)
	require.Error(t, err)

	// Breaker opened during the first logical request's retries; further
	// attempts never reach the provider.
	calls := prov.generateCalls
	_, err = gw.Complete(context.Background(), "sess", provider.Request{Prompt: "p"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, calls, prov.generateCalls)
}
