package client

import (
	"context"
	"errors"

	"github.com/raffleworks/backend/internal/domain"
	"github.com/raffleworks/backend/pkg/api/telegram"
)

// TelegramDeliverer sends broadcast messages through the bot API and
// translates its throttling response into the queue's throttle signal.
type TelegramDeliverer struct {
	endpoint telegram.IEndpoint
}

func NewTelegramDeliverer(endpoint telegram.IEndpoint) *TelegramDeliverer {
	return &TelegramDeliverer{endpoint: endpoint}
}

func (d *TelegramDeliverer) Send(ctx context.Context, externalID int64, message string) error {
	err := d.endpoint.SendMessage(ctx, externalID, message)
	if errors.Is(err, telegram.ErrTooManyRequests) {
		return domain.ErrThrottled
	}

	return err
}
