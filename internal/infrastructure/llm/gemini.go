package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient implements ports.Provider over the generateContent API.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	credential string
	http       *resty.Client
}

var _ ports.Provider = (*GeminiClient)(nil)

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64        `json:"temperature"`
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient builds a client from provider options. Endpoint is the
// models collection URL; the model and method are appended per call.
func NewGeminiClient(opts Options) *GeminiClient {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	return &GeminiClient{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		model:      opts.Model,
		apiKey:     opts.APIKey,
		credential: opts.CredentialName,
		http:       newRestClient(opts),
	}
}

// Name identifies the provider in configuration and logs.
func (c *GeminiClient) Name() string {
	return ProviderGemini
}

// Call requests JSON output constrained by the response schema.
func (c *GeminiClient) Call(ctx context.Context, req ports.ProviderRequest) (string, error) {
	if c.apiKey == "" {
		return "", missingCredential(ProviderGemini, c.credential)
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.User}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
			ResponseSchema:   geminiSchema(req.Schema),
		},
	}
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", c.apiKey).
		SetBody(body).
		Post(fmt.Sprintf("%s/%s:generateContent", c.endpoint, c.model))
	if err != nil {
		return "", &domain.ProviderError{Provider: ProviderGemini, Err: fmt.Errorf("send request: %w", err)}
	}
	if resp.IsError() {
		return "", statusError(ProviderGemini, resp)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", &domain.ProviderError{Provider: ProviderGemini, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 || parsed.Candidates[0].Content.Parts[0].Text == "" {
		return "", &domain.ProviderError{Provider: ProviderGemini, Err: errors.New("response lacks candidates[0].content.parts[0].text")}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// geminiSchema converts a JSON-schema style document into the OpenAPI subset
// Gemini accepts: upper-case type names and no additionalProperties.
func geminiSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		switch {
		case k == "additionalProperties":
			continue
		case k == "properties":
			props, ok := v.(map[string]any)
			if !ok {
				out[k] = v
				continue
			}
			converted := make(map[string]any, len(props))
			for name, prop := range props {
				converted[name] = geminiSchemaValue(prop)
			}
			out[k] = converted
		case k == "type":
			if s, ok := v.(string); ok {
				out[k] = strings.ToUpper(s)
				continue
			}
			out[k] = v
		default:
			out[k] = geminiSchemaValue(v)
		}
	}
	return out
}

func geminiSchemaValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return geminiSchema(typed)
	case []any:
		items := make([]any, len(typed))
		for i, item := range typed {
			items[i] = geminiSchemaValue(item)
		}
		return items
	default:
		return v
	}
}
