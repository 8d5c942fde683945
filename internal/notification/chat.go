package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramProvider posts messages through the Telegram bot API.
type TelegramProvider struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramProvider creates a Telegram provider. baseURL is normally https://api.telegram.org.
func NewTelegramProvider(baseURL, token, chatID string) *TelegramProvider {
	return &TelegramProvider{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *TelegramProvider) Name() string { return "telegram" }

func (p *TelegramProvider) Notify(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)
	return postJSON(ctx, p.client, url, map[string]any{
		"chat_id":                  p.chatID,
		"text":                     msg.Text(),
		"disable_web_page_preview": true,
	})
}

// GreenAPIProvider posts messages to a green-api sendMessage URL.
type GreenAPIProvider struct {
	url    string
	chatID string
	client *http.Client
}

// NewGreenAPIProvider creates a green-api provider for a full sendMessage URL.
func NewGreenAPIProvider(url, chatID string) *GreenAPIProvider {
	return &GreenAPIProvider{
		url:    url,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *GreenAPIProvider) Name() string { return "green_api" }

func (p *GreenAPIProvider) Notify(ctx context.Context, msg Message) error {
	return postJSON(ctx, p.client, p.url, map[string]any{
		"chatId":  p.chatID,
		"message": msg.Text(),
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}
