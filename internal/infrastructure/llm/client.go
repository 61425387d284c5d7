package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"ScholarshipImporter/internal/domain"
	"ScholarshipImporter/internal/ports"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	defaultTimeout   = 90 * time.Second
	defaultMaxTokens = 4096
	errorBodyLimit   = 512
)

// Options configures a single provider client.
type Options struct {
	Endpoint string
	Model    string
	APIKey   string
	// CredentialName is reported when APIKey is empty, e.g. OPENAI_API_KEY.
	CredentialName    string
	Timeout           time.Duration
	MaxTokens         int
	RequestsPerMinute int
}

// New returns the provider implementation registered under name.
func New(name string, opts Options) (ports.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI:
		return NewOpenAIClient(opts), nil
	case ProviderAnthropic:
		return NewAnthropicClient(opts), nil
	case ProviderGemini:
		return NewGeminiClient(opts), nil
	default:
		return nil, &domain.ConfigurationError{
			Setting: "llm.provider",
			Err:     fmt.Errorf("unsupported provider %q", name),
		}
	}
}

func newRestClient(opts Options) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "ScholarshipImporter/1.0")

	if opts.RequestsPerMinute > 0 {
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	return client
}

func missingCredential(provider, name string) error {
	if name == "" {
		name = provider + " api key"
	}
	return &domain.ProviderError{
		Provider: provider,
		Err:      fmt.Errorf("%w: %s", domain.ErrMissingCredential, name),
	}
}

func statusError(provider string, resp *resty.Response) error {
	body := strings.TrimSpace(string(resp.Body()))
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	return &domain.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode(),
		Err:        fmt.Errorf("unexpected status %s: %s", resp.Status(), body),
	}
}

func maxTokens(opts Options) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return defaultMaxTokens
}
