package unify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Relay delivers the merged text to a downstream consumer.
type Relay interface {
	Send(ctx context.Context, text string) error
}

type relayPayload struct {
	Text string `json:"text"`
}

// WebhookRelay posts {"text": ...} to a fixed URL.
type WebhookRelay struct {
	url    string
	client *http.Client
}

// NewWebhookRelay returns a relay whose requests give up after timeout.
func NewWebhookRelay(url string, timeout time.Duration) *WebhookRelay {
	return &WebhookRelay{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookRelay) URL() string {
	return w.url
}

func (w *WebhookRelay) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(relayPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SecureFileHub-Relay/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
