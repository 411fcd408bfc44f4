package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NtfyClient sends notifications to an ntfy server.
type NtfyClient struct {
	serverURL  string
	topic      string
	httpClient *http.Client
}

// NewNtfyClient creates a new ntfy client for the given server and topic.
func NewNtfyClient(serverURL, topic string) *NtfyClient {
	return &NtfyClient{
		serverURL: serverURL,
		topic:     topic,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ntfyMessage is the JSON publish payload ntfy expects.
type ntfyMessage struct {
	Topic   string   `json:"topic"`
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Tags    []string `json:"tags,omitempty"`
}

// Send publishes the notification to the configured topic.
func (c *NtfyClient) Send(notification Notification) error {
	msg := ntfyMessage{
		Topic:   c.topic,
		Title:   notification.Title,
		Message: notification.Message,
	}
	if notification.Kind != "" {
		msg.Tags = []string{string(notification.Kind)}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling ntfy payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending to ntfy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	return nil
}
