package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicAdapter calls the Messages API through the official SDK. SDK
// retries are disabled; the retry middleware owns backoff.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropicAdapter creates the adapter. The API key is required.
func NewAnthropicAdapter(cfg configuration.ProviderConfig, httpClient *http.Client) (*AnthropicAdapter, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, llmerrors.ErrMissingAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &AnthropicAdapter{client: anthropic.NewClient(opts...)}, nil
}

// Name returns the provider name.
func (a *AnthropicAdapter) Name() string { return ProviderAnthropic }

// Complete sends req as a single user turn and concatenates the text blocks
// of the reply.
func (a *AnthropicAdapter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &transport.Response{
		Content:   sb.String(),
		Provider:  ProviderAnthropic,
		Model:     string(msg.Model),
		RequestID: msg.ID,
		Usage: transport.Usage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
			TotalTokens:      msg.Usage.InputTokens + msg.Usage.OutputTokens,
		},
	}, nil
}

// mapAnthropicError converts SDK API errors into ProviderError so the retry
// middleware can classify them. Transport errors pass through unchanged.
func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic request: %w", err)
	}

	var header http.Header
	if apiErr.Response != nil {
		header = apiErr.Response.Header
	}
	return &llmerrors.ProviderError{
		Provider:   ProviderAnthropic,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Error(),
		Type:       classifyErrorType(apiErr.StatusCode, ""),
		RetryAfter: retryAfterSeconds(header),
	}
}
