package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramTimeout = 10 * time.Second

var telegramBaseURL = "https://api.telegram.org/bot"

// TelegramSender posts messages through the Telegram Bot API
type TelegramSender struct {
	botToken   string
	chatID     string
	httpClient *http.Client
}

// NewTelegramSender creates a Telegram sender. chatID is used when Send is
// given no recipient and may be empty.
func NewTelegramSender(botToken, chatID string) (*TelegramSender, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	return &TelegramSender{
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: telegramTimeout,
		},
	}, nil
}

func (s *TelegramSender) Send(ctx context.Context, to, message string) error {
	if message == "" {
		return fmt.Errorf("message text is required")
	}
	if to == "" {
		to = s.chatID
	}
	if to == "" {
		return fmt.Errorf("chat ID is required")
	}

	url := fmt.Sprintf("%s%s/sendMessage", telegramBaseURL, s.botToken)

	payload := map[string]interface{}{
		"chat_id": to,
		"text":    message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}

	return nil
}
