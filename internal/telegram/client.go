package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
	"unicode/utf8"
)

// Telegram rejects messages longer than this.
const maxMessageLen = 4096

// Client talks to the Telegram Bot API for one bot/chat pair. A client with
// missing credentials is valid and silently drops everything, so the rest of
// the program never needs to care whether notifications are configured.
type Client struct {
	token   string
	chatID  string
	apiBase string
	http    *http.Client
}

func NewClient(token, chatID string) *Client {
	return &Client{
		token:   token,
		chatID:  chatID,
		apiBase: "https://api.telegram.org",
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) enabled() bool {
	return c.token != "" && c.chatID != ""
}

// Notify sends a subject/body message to the configured chat. Failures are
// logged, never propagated: a dead notification channel must not take the
// trader down.
func (c *Client) Notify(subject, body string) {
	text := fmt.Sprintf("*%s*\n%s", subject, body)
	if len(text) > maxMessageLen {
		cut := maxMessageLen - 4
		// Never split a multi-byte rune; Telegram rejects invalid UTF-8.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "\n..."
	}
	c.send(text)
}

func (c *Client) send(text string) {
	if !c.enabled() {
		log.Println("Warning: Telegram credentials missing, skipping notification")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	payload := map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, _ := json.Marshal(payload)

	resp, err := c.http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram send failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("Telegram API error: status %s", resp.Status)
	}
}
