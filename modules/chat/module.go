package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/google/uuid"

	"github.com/example/socket-playground-demo/events"
)

// ChatModule provides room message history and message validation.
// Messages flow through the event bus: send-message publishes a
// ChatMessage event, and the module consumes its own events to store
// them in history.
type ChatModule struct {
	store    *MessageStore
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*ChatModule)(nil)
	_ mono.ServiceProviderModule = (*ChatModule)(nil)
	_ mono.EventBusAwareModule   = (*ChatModule)(nil)
	_ mono.EventEmitterModule    = (*ChatModule)(nil)
	_ mono.EventConsumerModule   = (*ChatModule)(nil)
	_ mono.HealthCheckableModule = (*ChatModule)(nil)
)

// NewModule creates a new ChatModule.
func NewModule() *ChatModule {
	return &ChatModule{
		store: NewMessageStore(maxHistorySize),
	}
}

// Name returns the module name.
func (m *ChatModule) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *ChatModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *ChatModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ChatMessageV1.ToBase(),
	}
}

// Start initializes the chat module.
func (m *ChatModule) Start(_ context.Context) error {
	log.Println("[chat] Module started")
	return nil
}

// Stop shuts down the module.
func (m *ChatModule) Stop(_ context.Context) error {
	log.Println("[chat] Module stopped")
	return nil
}

// Health returns the health status.
func (m *ChatModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms_with_history": len(m.store.Rooms()),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *ChatModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"send-message",
		json.Unmarshal,
		json.Marshal,
		m.handleSendMessage,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"get-history",
		json.Unmarshal,
		json.Marshal,
		m.handleGetHistory,
	); err != nil {
		return fmt.Errorf("failed to register get-history service: %w", err)
	}

	log.Println("[chat] Registered services: send-message, get-history")
	return nil
}

// RegisterEventConsumers registers event handlers for chat events.
// The chat module consumes its own events to store messages in history.
func (m *ChatModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatMessageV1, m.handleChatMessage, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatMessage consumer: %w", err)
	}

	log.Println("[chat] Registered event consumers: ChatMessage")
	return nil
}

// handleSendMessage validates a message and publishes it to the event bus.
func (m *ChatModule) handleSendMessage(_ context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	if err := ValidateRoomName(req.Room); err != nil {
		return SendMessageResponse{}, err
	}
	if err := ValidateMessage(req.Message); err != nil {
		return SendMessageResponse{}, err
	}

	msg := Message{
		ID:        uuid.New().String(),
		Room:      req.Room,
		Sender:    req.Sender,
		Message:   req.Message,
		Timestamp: time.Now(),
	}

	event := events.ChatMessageEvent{
		MessageID: msg.ID,
		Room:      msg.Room,
		Sender:    msg.Sender,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
	}
	if err := events.ChatMessageV1.Publish(m.eventBus, event, nil); err != nil {
		return SendMessageResponse{}, fmt.Errorf("failed to publish message: %w", err)
	}

	return SendMessageResponse{Message: msg}, nil
}

// handleGetHistory returns the retained history for a room.
func (m *ChatModule) handleGetHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	if err := ValidateRoomName(req.Room); err != nil {
		return GetHistoryResponse{}, err
	}

	return GetHistoryResponse{
		Room:     req.Room,
		Messages: m.store.History(req.Room, req.Limit),
	}, nil
}

// handleChatMessage stores published messages in room history.
func (m *ChatModule) handleChatMessage(_ context.Context, event events.ChatMessageEvent, _ *mono.Msg) error {
	m.store.Add(Message{
		ID:        event.MessageID,
		Room:      event.Room,
		Sender:    event.Sender,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	})
	return nil
}
