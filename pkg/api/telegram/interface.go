package telegram

import "context"

type IEndpoint interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type MockEndpoint struct {
	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
}

func (e *MockEndpoint) SendMessage(ctx context.Context, chatID int64, text string) error {
	if e.SendMessageFunc != nil {
		return e.SendMessageFunc(ctx, chatID, text)
	}

	return nil
}
