package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		Endpoints: []string{url},
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 256,
	})
}

func TestGenerate_ReturnsContent(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"generated text"}}]}`)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	result, err := client.Generate(context.Background(), Request{Prompt: "explain gravity"})

	require.NoError(t, err)
	assert.Equal(t, "generated text", result)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	assert.False(t, gotBody.Stream)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "explain gravity", gotBody.Messages[0].Content)
	assert.Equal(t, 256, gotBody.MaxTokens, "client default applies when the request leaves it zero")
}

func TestGenerate_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.Generate(context.Background(), Request{Prompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestGenerate_APIErrorPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.Generate(context.Background(), Request{Prompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestGenerateStream_FragmentsInOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)

	var fragments []string
	err := client.GenerateStream(context.Background(), Request{Prompt: "x"}, func(f string) error {
		fragments = append(fragments, f)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello ", "world"}, fragments)
}

func TestGenerateStream_CallbackErrorStopsStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"f%d\"}}]}\n\n", i)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)

	stop := fmt.Errorf("consumer stopped")
	calls := 0
	err := client.GenerateStream(context.Background(), Request{Prompt: "x"}, func(string) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})

	require.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}

func TestGenerateStream_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	err := client.GenerateStream(context.Background(), Request{Prompt: "x"}, func(string) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
