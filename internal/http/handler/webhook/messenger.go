package webhook

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Messenger is the outbound side of the platform boundary: reply-token
// addressed sends and profile lookups. Tests swap in a fake.
type Messenger interface {
	ReplyText(ctx context.Context, replyToken, text string) error
	DisplayName(ctx context.Context, userID string) (string, error)
}

type lineMessenger struct {
	api *messaging_api.MessagingApiAPI
}

// NewLineMessenger builds the production Messenger on top of the Messaging
// API client.
func NewLineMessenger(channelAccessToken string) (Messenger, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating messaging api client: %w", err)
	}
	return &lineMessenger{api: api}, nil
}

func (m *lineMessenger) ReplyText(ctx context.Context, replyToken, text string) error {
	_, err := m.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("replying: %w", err)
	}
	return nil
}

func (m *lineMessenger) DisplayName(ctx context.Context, userID string) (string, error) {
	profile, err := m.api.GetProfile(userID)
	if err != nil {
		return "", fmt.Errorf("fetching profile: %w", err)
	}
	return profile.DisplayName, nil
}
