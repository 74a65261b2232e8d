// Package providers adapts concrete judge backends to transport.Provider.
package providers

import (
	"fmt"
	"net/http"

	"github.com/ahrav/agentjudge/internal/llm/configuration"
	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
	"github.com/ahrav/agentjudge/internal/llm/transport"
)

// Supported provider identifiers. They match configuration keys.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// NewRouter builds an adapter for every configured provider.
func NewRouter(configs map[string]configuration.ProviderConfig, httpClient *http.Client) (transport.Router, error) {
	adapters := make(map[string]transport.Provider, len(configs))
	for name, cfg := range configs {
		var (
			adapter transport.Provider
			err     error
		)
		switch name {
		case ProviderAnthropic:
			adapter, err = NewAnthropicAdapter(cfg, httpClient)
		case ProviderOpenAI:
			adapter, err = NewOpenAIAdapter(cfg, httpClient)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		adapters[name] = adapter
	}
	return &router{adapters: adapters}, nil
}

type router struct {
	adapters map[string]transport.Provider
}

// Pick returns the adapter registered under provider.
func (r *router) Pick(provider string) (transport.Provider, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}
