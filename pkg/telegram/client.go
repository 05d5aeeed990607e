// Package telegram provides a small client for the Telegram Bot API,
// used as the chat transport for alert notifications. Messages with an
// image go out as a photo with caption, plain messages as text.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiBase = "https://api.telegram.org/bot"

// captionLimit is the Telegram Bot API limit for photo captions.
const captionLimit = 1024

// Client represents a Telegram client used to send notifications.
type Client struct {
	token  string       // bot token for authentication
	client *http.Client // HTTP client used to make requests
}

// NewClient creates a new Telegram Client instance with the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// sendMessageRequest is the payload for the sendMessage API.
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// sendPhotoRequest is the payload for the sendPhoto API.
type sendPhotoRequest struct {
	ChatID  string `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption"`
}

// Send delivers one message to the chat. When imageURL is non-empty the
// message is sent as a photo with the text as caption, falling back to a
// plain message if the photo call fails (e.g. a dead image link).
func (c *Client) Send(chatID, text, imageURL string) error {
	if imageURL != "" {
		caption := truncateCaption(text)

		err := c.post("sendPhoto", sendPhotoRequest{
			ChatID:  chatID,
			Photo:   imageURL,
			Caption: caption,
		})
		if err == nil {
			return nil
		}
	}

	return c.post("sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: false,
	})
}

// truncateCaption cuts the text to the caption limit on a rune boundary;
// a byte slice could split a multi-byte character and the API rejects
// invalid UTF-8.
func truncateCaption(text string) string {
	runes := []rune(text)
	if len(runes) <= captionLimit {
		return text
	}
	return string(runes[:captionLimit])
}

func (c *Client) post(method string, payload interface{}) error {
	url := fmt.Sprintf("%s%s/%s", apiBase, c.token, method)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error: %s: %s", resp.Status, detail)
	}

	return nil
}
