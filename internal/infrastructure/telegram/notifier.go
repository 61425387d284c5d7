package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ScholarshipImporter/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// Notifier sends run summaries to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	endpoint string
	client   *resty.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty endpoint
// targets the public bot API.
func NewNotifier(botToken, chatID, endpoint string) *Notifier {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   resty.New().SetTimeout(5 * time.Second),
	}
}

// PublishSummary posts a plain-text message to the chat.
func (n *Notifier) PublishSummary(ctx context.Context, message string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": n.chatID,
			"text":    message,
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken))
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram error: %s", resp.Status())
	}

	return nil
}
