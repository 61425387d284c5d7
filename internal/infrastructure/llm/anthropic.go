package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion         = "2023-06-01"
)

// AnthropicClient implements ports.Provider over the Messages API. The API
// has no strict JSON mode, so the JSON contract rides on the prompt alone.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	credential string
	maxTokens  int
	http       *resty.Client
}

var _ ports.Provider = (*AnthropicClient)(nil)

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicClient builds a client from provider options.
func NewAnthropicClient(opts Options) *AnthropicClient {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	return &AnthropicClient{
		endpoint:   endpoint,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		credential: opts.CredentialName,
		maxTokens:  maxTokens(opts),
		http:       newRestClient(opts),
	}
}

// Name identifies the provider in configuration and logs.
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// Call posts a single user content block and returns the first text block.
func (c *AnthropicClient) Call(ctx context.Context, req ports.ProviderRequest) (string, error) {
	if c.apiKey == "" {
		return "", missingCredential(ProviderAnthropic, c.credential)
	}

	body := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
		Temperature: 0,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderAnthropic, Err: fmt.Errorf("send request: %w", err)}
	}
	if resp.IsError() {
		return "", statusError(ProviderAnthropic, resp)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", &domain.ProviderError{Provider: ProviderAnthropic, Err: fmt.Errorf("decode response: %w", err)}
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}

	return "", &domain.ProviderError{Provider: ProviderAnthropic, Err: errors.New("response lacks a text content block")}
}
