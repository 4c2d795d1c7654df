package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/config"
)

// ErrUnavailable means the backend could not produce a completion
var ErrUnavailable = errors.New("language model backend unavailable")

// Client talks to an OpenAI-compatible chat-completion endpoint. Every call
// is attempted once; failures degrade to placeholder values.
type Client struct {
	baseURL     string
	model       string
	summary     prompt
	actionItems prompt
	client      *http.Client
	logger      *zap.Logger
}

type prompt struct {
	system      string
	user        *template.Template
	temperature float64
	maxTokens   int
}

// ChatMessage is one message of a chat-completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the shape for chat completion requests
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// ChatResponse is a minimal response shape
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a client from the llm configuration
func NewClient(cfg config.LLMConfig, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	summary, err := newPrompt("summary", cfg.Summary)
	if err != nil {
		return nil, err
	}
	actionItems, err := newPrompt("action_items", cfg.ActionItems)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		summary:     summary,
		actionItems: actionItems,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}, nil
}

func newPrompt(name string, cfg config.PromptConfig) (prompt, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(cfg.User)
	if err != nil {
		return prompt{}, fmt.Errorf("invalid %s prompt template: %w", name, err)
	}
	return prompt{
		system:      cfg.System,
		user:        tmpl,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Endpoint returns the backend base URL
func (c *Client) Endpoint() string {
	return c.baseURL
}

// Summarize returns a summary of transcript. ok is false when the backend
// failed and the returned text is the unavailable placeholder.
func (c *Client) Summarize(ctx context.Context, transcript string) (summary string, ok bool) {
	content, err := c.complete(ctx, c.summary, transcript)
	if err != nil {
		c.logger.Warn("Summarization unavailable, using placeholder", zap.Error(err))
		return SummaryUnavailable(c.baseURL), false
	}
	return strings.TrimSpace(content), true
}

// ExtractActionItems returns the action items found in transcript. The
// result is never empty. ok is false when the backend failed.
func (c *Client) ExtractActionItems(ctx context.Context, transcript string) (items []string, ok bool) {
	content, err := c.complete(ctx, c.actionItems, transcript)
	if err != nil {
		c.logger.Warn("Action item extraction unavailable, using placeholder", zap.Error(err))
		return []string{ActionItemsUnavailable(c.baseURL)}, false
	}
	return ParseActionItems(content), true
}

func (c *Client) complete(ctx context.Context, p prompt, transcript string) (string, error) {
	var userPrompt strings.Builder
	if err := p.user.Execute(&userPrompt, struct{ Transcript string }{transcript}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: p.system},
			{Role: "user", Content: userPrompt.String()},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return cr.Choices[0].Message.Content, nil
}
