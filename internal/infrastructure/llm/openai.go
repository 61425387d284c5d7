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

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements ports.Provider backed by OpenAI-compatible chat completions.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	credential string
	http       *resty.Client
}

var _ ports.Provider = (*OpenAIClient)(nil)

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient builds a client from provider options.
func NewOpenAIClient(opts Options) *OpenAIClient {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIClient{
		endpoint:   endpoint,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		credential: opts.CredentialName,
		http:       newRestClient(opts),
	}
}

// Name identifies the provider in configuration and logs.
func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

// Call sends the system and user prompts as chat messages in JSON mode.
func (c *OpenAIClient) Call(ctx context.Context, req ports.ProviderRequest) (string, error) {
	if c.apiKey == "" {
		return "", missingCredential(ProviderOpenAI, c.credential)
	}

	body := openAIRequest{
		Model: c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature:    0,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("send request: %w", err)}
	}
	if resp.IsError() {
		return "", statusError(ProviderOpenAI, resp)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", &domain.ProviderError{Provider: ProviderOpenAI, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &domain.ProviderError{Provider: ProviderOpenAI, Err: errors.New("response lacks choices[0].message.content")}
	}

	return parsed.Choices[0].Message.Content, nil
}
