package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

var testSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"scholarships": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
					"type":  map[string]any{"type": "string"},
				},
			},
		},
	},
}

func captureServer(t *testing.T, status int, response string, captured *map[string]any, headers *http.Header) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if captured != nil {
			assert.NoError(t, json.Unmarshal(raw, captured))
		}
		if headers != nil {
			*headers = r.Header.Clone()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIClientCall(t *testing.T) {
	var body map[string]any
	var headers http.Header
	server := captureServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"scholarships\":[]}"}}]}`, &body, &headers)

	client := NewOpenAIClient(Options{Endpoint: server.URL, Model: "gpt-4o-mini", APIKey: "sk-test"})
	out, err := client.Call(context.Background(), ports.ProviderRequest{System: "sys", User: "user"})
	require.NoError(t, err)

	assert.Equal(t, `{"scholarships":[]}`, out)
	assert.Equal(t, "Bearer sk-test", headers.Get("Authorization"))
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, float64(0), body["temperature"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["content"])
}

func TestOpenAIClientErrors(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		client := NewOpenAIClient(Options{Endpoint: "http://127.0.0.1:1", CredentialName: "OPENAI_API_KEY"})
		_, err := client.Call(context.Background(), ports.ProviderRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMissingCredential)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ProviderOpenAI, perr.Provider)
	})

	t.Run("non-2xx", func(t *testing.T) {
		server := captureServer(t, http.StatusTooManyRequests, `{"error":"slow down"}`, nil, nil)
		client := NewOpenAIClient(Options{Endpoint: server.URL, APIKey: "k"})
		_, err := client.Call(context.Background(), ports.ProviderRequest{})

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
		assert.Contains(t, err.Error(), "slow down")
	})

	t.Run("empty choices", func(t *testing.T) {
		server := captureServer(t, http.StatusOK, `{"choices":[]}`, nil, nil)
		client := NewOpenAIClient(Options{Endpoint: server.URL, APIKey: "k"})
		_, err := client.Call(context.Background(), ports.ProviderRequest{})

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, err.Error(), "choices[0].message.content")
	})

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := NewOpenAIClient(Options{Endpoint: url, APIKey: "k", Timeout: time.Second})
		_, err := client.Call(context.Background(), ports.ProviderRequest{})

		var perr *domain.ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Zero(t, perr.StatusCode)
	})
}

func TestAnthropicClientCall(t *testing.T) {
	var body map[string]any
	var headers http.Header
	server := captureServer(t, http.StatusOK, `{"content":[{"type":"text","text":"{\"scholarships\":[]}"}]}`, &body, &headers)

	client := NewAnthropicClient(Options{Endpoint: server.URL, Model: "claude-3-5-haiku-latest", APIKey: "ak"})
	out, err := client.Call(context.Background(), ports.ProviderRequest{System: "sys", User: "user"})
	require.NoError(t, err)

	assert.Equal(t, `{"scholarships":[]}`, out)
	assert.Equal(t, "ak", headers.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, headers.Get("anthropic-version"))
	assert.Equal(t, "sys", body["system"])
	assert.Equal(t, float64(0), body["temperature"])
	assert.Equal(t, float64(defaultMaxTokens), body["max_tokens"])
	assert.NotContains(t, body, "response_format")
}

func TestAnthropicClientNoTextBlock(t *testing.T) {
	server := captureServer(t, http.StatusOK, `{"content":[{"type":"tool_use"}]}`, nil, nil)
	client := NewAnthropicClient(Options{Endpoint: server.URL, APIKey: "ak"})

	_, err := client.Call(context.Background(), ports.ProviderRequest{})
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestGeminiClientCall(t *testing.T) {
	var body map[string]any
	var path string
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"scholarships\":[]}"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(Options{Endpoint: server.URL + "/", Model: "gemini-1.5-flash", APIKey: "gk"})
	out, err := client.Call(context.Background(), ports.ProviderRequest{System: "sys", User: "user", Schema: testSchema})
	require.NoError(t, err)

	assert.Equal(t, `{"scholarships":[]}`, out)
	assert.Equal(t, "/gemini-1.5-flash:generateContent", path)
	assert.Equal(t, "gk", headers.Get("x-goog-api-key"))

	cfg := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", cfg["responseMimeType"])
	assert.Equal(t, float64(0), cfg["temperature"])

	schema := cfg["responseSchema"].(map[string]any)
	assert.Equal(t, "OBJECT", schema["type"])
	items := schema["properties"].(map[string]any)["scholarships"].(map[string]any)["items"].(map[string]any)
	assert.NotContains(t, items, "additionalProperties")
	assert.Equal(t, "STRING", items["properties"].(map[string]any)["type"].(map[string]any)["type"])
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New("mistral", Options{})

	var cerr *domain.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "llm.provider", cerr.Setting)

	for _, name := range []string{"openai", "Anthropic", " gemini "} {
		p, err := New(name, Options{})
		require.NoError(t, err)
		assert.NotNil(t, p)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := captureServer(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, nil, nil)
	client := NewOpenAIClient(Options{Endpoint: server.URL, APIKey: "k", RequestsPerMinute: 1})

	_, err := client.Call(context.Background(), ports.ProviderRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Call(ctx, ports.ProviderRequest{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrMissingCredential))
}
