package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const completionsPath = "/v1/chat/completions"

// Client talks to OpenAI-style chat completion endpoints over HTTP,
// using SSE for streaming.
type Client struct {
	config Config
	pool   *Pool
	http   *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if cfg.TimeoutSecs <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		config: cfg,
		pool:   NewPool(cfg.Endpoints),
		http:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) buildRequest(req Request, stream bool) chatRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}

	return chatRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(endpoint, "/")+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	return c.http.Do(httpReq)
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	endpoint := c.pool.Next()

	resp, err := c.post(ctx, endpoint, c.buildRequest(req, false))
	if err != nil {
		c.pool.ReportFailure(endpoint)
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.pool.ReportFailure(endpoint)
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.pool.ReportFailure(endpoint)
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}

	c.pool.ReportSuccess(endpoint)
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) GenerateStream(ctx context.Context, req Request, fn func(fragment string) error) error {
	endpoint := c.pool.Next()

	resp, err := c.post(ctx, endpoint, c.buildRequest(req, true))
	if err != nil {
		c.pool.ReportFailure(endpoint)
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.pool.ReportFailure(endpoint)
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.pool.ReportFailure(endpoint)
			return fmt.Errorf("failed to decode stream chunk: %w", err)
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := fn(content); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		c.pool.ReportFailure(endpoint)
		return fmt.Errorf("stream broken: %w", err)
	}

	c.pool.ReportSuccess(endpoint)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
