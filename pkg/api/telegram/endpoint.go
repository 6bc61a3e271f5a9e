package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/pkg/api"
)

const apiURL = "https://api.telegram.org"

// ErrTooManyRequests is returned when the bot API answers with 429. Callers
// should back off for at least the attached retry-after duration.
var ErrTooManyRequests = errors.New("too many requests")

type Endpoint struct {
	BotToken string

	apiGenerator api.Generator
}

func New(cfg config.TelegramConfigs) *Endpoint {
	return &Endpoint{
		BotToken:     cfg.BotToken,
		apiGenerator: api.NewGenerator(),
	}
}

func (e *Endpoint) SendMessage(ctx context.Context, chatID int64, text string) error {
	resp, err := e.apiGenerator.New(apiURL, "/bot%s/sendMessage", e.BotToken).
		Body(api.JSON{
			"chat_id": strconv.FormatInt(chatID, 10),
			"text":    text,
		}).
		POST(ctx)
	if err != nil {
		return err
	}

	if resp.Code == http.StatusTooManyRequests {
		return ErrTooManyRequests
	}

	body, ok := resp.Body.(api.JSON)
	if !ok {
		return errors.New("invalid body type")
	}

	if ok, err := body.GetBool("ok"); err != nil || !ok {
		description, _ := body.GetString("description")
		return fmt.Errorf("send failed: %s", description)
	}

	return nil
}
