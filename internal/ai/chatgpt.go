package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/config"
	"github.com/elecsonJ/everyday-english-writing/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChatGPT is a client for an OpenAI compatible chat completions endpoint
type ChatGPT struct {
	apiKey  string
	apiURL  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a client from the AI section of the config
func New(cfg config.AIConfig, log *zap.Logger) (*ChatGPT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if log == nil {
		log = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &ChatGPT{
		apiKey:  cfg.APIKey,
		apiURL:  strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     log,
	}, nil
}

// Message represents a message in the conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a request to the chat completions API
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// ChatResponse represents a response from the chat completions API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends a single user prompt and returns the trimmed reply text
func (c *ChatGPT) complete(ctx context.Context, kind, prompt string, maxTokens int, temperature float64) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveGenerator(kind, start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	request := ChatRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	text = strings.TrimSpace(response.Choices[0].Message.Content)
	c.log.Debug("model reply", zap.String("kind", kind), zap.Int("length", len(text)))
	return text, nil
}
