package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIAdapter speaks the chat/completions API over plain HTTP.
type OpenAIAdapter struct {
	config configuration.ProviderConfig
	apiKey string
	client *http.Client
}

// NewOpenAIAdapter creates the adapter, defaulting the endpoint.
func NewOpenAIAdapter(cfg configuration.ProviderConfig, httpClient *http.Client) (*OpenAIAdapter, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, llmerrors.ErrMissingAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOpenAIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: configuration.DefaultHTTPTimeout}
	}
	return &OpenAIAdapter{config: cfg, apiKey: key, client: httpClient}, nil
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string { return ProviderOpenAI }

// Complete builds, sends and parses one chat completion.
func (a *OpenAIAdapter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	httpReq, err := a.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer httpResp.Body.Close()
	return a.Parse(httpResp)
}

// Build constructs the chat/completions HTTP request.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Parse extracts the first choice's content and usage.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
			TotalTokens      int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", llmerrors.ErrInvalidResponse, err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	requestID := httpResp.Header.Get("x-request-id")
	if requestID == "" {
		requestID = resp.ID
	}

	return &transport.Response{
		Content:   content,
		Provider:  ProviderOpenAI,
		Model:     resp.Model,
		RequestID: requestID,
		Usage: transport.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func parseOpenAIError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	perr := &llmerrors.ProviderError{
		Provider:   ProviderOpenAI,
		StatusCode: httpResp.StatusCode,
		Message:    string(body),
		Type:       classifyErrorType(httpResp.StatusCode, ""),
		RetryAfter: retryAfterSeconds(httpResp.Header),
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		perr.Message = errResp.Error.Message
		perr.Code = errResp.Error.Code
		perr.Type = classifyErrorType(httpResp.StatusCode, errResp.Error.Type)
	}
	return perr
}
