package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the interface other modules use to access chat functionality.
type ChatPort interface {
	SendMessage(ctx context.Context, room, sender, content string) (Message, error)
	GetHistory(ctx context.Context, room string, limit int) ([]Message, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) *ChatAdapter {
	return &ChatAdapter{
		container: container,
	}
}

// SendMessage validates and publishes a chat message.
func (a *ChatAdapter) SendMessage(ctx context.Context, room, sender, content string) (Message, error) {
	req := SendMessageRequest{Room: room, Sender: sender, Message: content}
	var resp SendMessageResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"send-message",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return Message{}, fmt.Errorf("send-message request failed: %w", err)
	}

	return resp.Message, nil
}

// GetHistory returns the retained history for a room.
func (a *ChatAdapter) GetHistory(ctx context.Context, room string, limit int) ([]Message, error) {
	req := GetHistoryRequest{Room: room, Limit: limit}
	var resp GetHistoryResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get-history",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-history request failed: %w", err)
	}

	return resp.Messages, nil
}
