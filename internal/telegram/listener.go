package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Update is a Telegram Update object, partial schema.
type Update struct {
	UpdateID int `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

type updateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes one operator command ("/next", "/forcerun", ...)
// with its arguments and returns the reply text.
type CommandHandler func(command string, args []string) string

// Listen long-polls getUpdates and dispatches commands from the authorized
// chat to the handler. Blocking; run it on its own goroutine. Returns when
// ctx is cancelled.
func (c *Client) Listen(ctx context.Context, handler CommandHandler) {
	if !c.enabled() {
		log.Println("Telegram listener: credentials missing, disabled")
		return
	}
	authChatID, err := strconv.ParseInt(c.chatID, 10, 64)
	if err != nil {
		log.Printf("Telegram listener: bad chat id %q, disabled", c.chatID)
		return
	}

	log.Println("Telegram listener started")
	offset := 0
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Telegram listener: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1

			if u.Message.Chat.ID != authChatID {
				// No reply: do not leak the bot's existence to strangers.
				log.Printf("UNAUTHORIZED telegram access: user %s (chat %d) sent: %s",
					u.Message.From.Username, u.Message.Chat.ID, u.Message.Text)
				continue
			}

			text := strings.TrimSpace(u.Message.Text)
			if !strings.HasPrefix(text, "/") {
				continue
			}
			log.Printf("Command received: %s", text)
			fields := strings.Fields(text)
			reply := handler(fields[0], fields[1:])
			if reply != "" {
				c.send(reply)
			}
		}
	}
}

func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=60", c.apiBase, c.token, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result updateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("telegram API error: %s (code %d)", result.Description, result.ErrorCode)
	}
	return result.Result, nil
}
