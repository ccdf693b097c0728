package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/socket-playground-demo/domain/identity"
)

// ChatMessageEvent is emitted when a user sends a chat message to a room.
type ChatMessageEvent struct {
	MessageID string    `json:"message_id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CounterUpdatedEvent is emitted after every successful counter mutation.
// It carries the full counter state, not a delta.
type CounterUpdatedEvent struct {
	Count     int64             `json:"count"`
	UpdatedBy identity.Identity `json:"updated_by"`
	Timestamp time.Time         `json:"timestamp"`
}

// UserConnectedEvent is emitted when an authenticated connection registers.
type UserConnectedEvent struct {
	ConnID    string            `json:"conn_id"`
	User      identity.Identity `json:"user"`
	Timestamp time.Time         `json:"timestamp"`
}

// UserDisconnectedEvent is emitted after a connection has been unregistered.
type UserDisconnectedEvent struct {
	ConnID    string            `json:"conn_id"`
	User      identity.Identity `json:"user"`
	Timestamp time.Time         `json:"timestamp"`
}

// Event definitions for the realtime domain.
var (
	ChatMessageV1 = helper.EventDefinition[ChatMessageEvent](
		"chat",
		"ChatMessage",
		"v1",
	)

	CounterUpdatedV1 = helper.EventDefinition[CounterUpdatedEvent](
		"counter",
		"CounterUpdated",
		"v1",
	)

	UserConnectedV1 = helper.EventDefinition[UserConnectedEvent](
		"gateway",
		"UserConnected",
		"v1",
	)

	UserDisconnectedV1 = helper.EventDefinition[UserDisconnectedEvent](
		"gateway",
		"UserDisconnected",
		"v1",
	)
)
