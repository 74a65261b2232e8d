package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Request is a provider-neutral judge prompt.
type Request struct {
	Provider    string        `json:"provider"`
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Prompt      string        `json:"prompt"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"-"`

	// Scorer names the caller, for logs and cache namespacing.
	Scorer string `json:"scorer,omitempty"`

	// Accept reports why a response is unusable to the caller, or nil.
	// Middleware that persists responses keeps only accepted ones.
	Accept func(*Response) error `json:"-"`
}

// Accepts applies r.Accept to resp; a request without Accept takes any
// response.
func (r *Request) Accepts(resp *Response) error {
	if r.Accept == nil {
		return nil
	}
	return r.Accept(resp)
}

// Key returns a stable content hash of every field that influences the
// judge's answer.
func (r *Request) Key() string {
	canonical := struct {
		Provider    string  `json:"p"`
		Model       string  `json:"m"`
		System      string  `json:"s"`
		Prompt      string  `json:"u"`
		MaxTokens   int     `json:"n"`
		Temperature float64 `json:"t"`
		Scorer      string  `json:"c"`
	}{r.Provider, r.Model, r.System, r.Prompt, r.MaxTokens, r.Temperature, r.Scorer}

	// Marshalling a struct of strings and numbers cannot fail.
	b, _ := json.Marshal(canonical)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is a provider-neutral judge answer.
type Response struct {
	Content   string `json:"content"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	RequestID string `json:"request_id,omitempty"`
	Usage     Usage  `json:"usage"`

	// Cached is set when the response was served from the cache.
	Cached bool `json:"-"`
}
