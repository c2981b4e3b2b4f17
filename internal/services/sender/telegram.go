package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramTransport отправляет сообщения через Telegram Bot API.
type TelegramTransport struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegramTransport создает новый экземпляр TelegramTransport.
func NewTelegramTransport(token string) *TelegramTransport {
	return &TelegramTransport{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage отправляет текстовое сообщение в чат.
func (t *TelegramTransport) SendMessage(ctx context.Context, chatID int64, text string) error {
	const op = "sender.TelegramTransport.SendMessage"

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var parsed sendMessageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s: telegram api: %s", op, parsed.Description)
	}
	return nil
}
