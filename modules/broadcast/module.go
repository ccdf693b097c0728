package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/socket-playground-demo/events"
)

// BroadcastModule owns the Hub and fans consumed events out to the
// connected WebSocket clients.
type BroadcastModule struct {
	hub *Hub
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start initializes the module.
func (m *BroadcastModule) Start(_ context.Context) error {
	log.Println("[broadcast] Module started")
	return nil
}

// Stop shuts down the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	log.Printf("[broadcast] Module stopped - %d clients were connected", m.hub.ClientCount())
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"active_rooms":      len(m.hub.Rooms()),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatMessageV1, m.handleChatMessage, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatMessage consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.CounterUpdatedV1, m.handleCounterUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register CounterUpdated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserConnectedV1, m.handleUserConnected, m,
	); err != nil {
		return fmt.Errorf("failed to register UserConnected consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserDisconnectedV1, m.handleUserDisconnected, m,
	); err != nil {
		return fmt.Errorf("failed to register UserDisconnected consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: ChatMessage, CounterUpdated, UserConnected, UserDisconnected")
	return nil
}

// handleChatMessage fans a stored message out to the whole room,
// sender included.
func (m *BroadcastModule) handleChatMessage(_ context.Context, event events.ChatMessageEvent, _ *mono.Msg) error {
	m.hub.SendToRoom(event.Room, "", "new-message", NewMessagePayload{
		Room:      event.Room,
		Sender:    event.Sender,
		Message:   event.Message,
		Timestamp: event.Timestamp,
	})
	return nil
}

// handleCounterUpdated syncs the full counter state to every connection.
func (m *BroadcastModule) handleCounterUpdated(_ context.Context, event events.CounterUpdatedEvent, _ *mono.Msg) error {
	m.hub.SendToAll("counter-updated", CounterUpdatedPayload{
		Count:     event.Count,
		UpdatedBy: event.UpdatedBy,
	})
	return nil
}

// handleUserConnected pushes the new connection count and online list
// to every connection.
func (m *BroadcastModule) handleUserConnected(_ context.Context, event events.UserConnectedEvent, _ *mono.Msg) error {
	m.broadcastPresence()
	return nil
}

// handleUserDisconnected notifies the remaining connections of the
// departure, then pushes the updated count and online list.
func (m *BroadcastModule) handleUserDisconnected(_ context.Context, event events.UserDisconnectedEvent, _ *mono.Msg) error {
	m.hub.SendToAll("user-disconnected", UserDisconnectedPayload{
		UserID:     event.User.ID,
		TotalUsers: m.hub.ClientCount(),
		Timestamp:  event.Timestamp,
	})
	m.broadcastPresence()
	return nil
}

// broadcastPresence pushes the live connection count and the online
// identity list to all connections.
func (m *BroadcastModule) broadcastPresence() {
	m.hub.SendToAll("clients-count", m.hub.ClientCount())
	m.hub.SendToAll("online-users", m.hub.OnlineUsers())
}

// GetHub returns the hub for the gateway module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
