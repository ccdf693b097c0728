package gateway

import (
	"time"

	"github.com/example/socket-playground-demo/domain/identity"
	"github.com/example/socket-playground-demo/modules/chat"
)

// Inbound payloads

// RoomPayload is the payload for join-room, leave-room and typing events.
type RoomPayload struct {
	Room string `json:"room"`
}

// SendMessagePayload is the payload for send-message.
type SendMessagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// BroadcastPayload is the payload for the broadcast-to-* family.
type BroadcastPayload struct {
	Message       string   `json:"message"`
	Type          string   `json:"type,omitempty"`
	Title         string   `json:"title,omitempty"`
	TargetUserID  string   `json:"targetUserId,omitempty"`
	TargetUserIDs []string `json:"targetUserIds,omitempty"`
	RoomID        string   `json:"roomId,omitempty"`
}

// CounterSetPayload is the payload for counter-set.
type CounterSetPayload struct {
	Value *int64 `json:"value"`
}

// Outbound payloads

// BroadcastAlert is delivered to every recipient of a broadcast.
type BroadcastAlert struct {
	Message    string            `json:"message"`
	Type       string            `json:"type,omitempty"`
	Title      string            `json:"title,omitempty"`
	Sender     identity.Identity `json:"sender"`
	FromConnID string            `json:"fromConnId"`
	Timestamp  time.Time         `json:"timestamp"`
}

// BroadcastSent confirms a delivery back to the sender.
type BroadcastSent struct {
	Message        string `json:"message"`
	Type           string `json:"type,omitempty"`
	Title          string `json:"title,omitempty"`
	Target         string `json:"target"`
	RecipientCount int    `json:"recipientCount"`
}

// BroadcastError reports a failed targeted broadcast to the sender.
type BroadcastError struct {
	Message      string `json:"message"`
	TargetUserID string `json:"targetUserId"`
}

// ChatStatus is the confirmation reply for chat actions.
type ChatStatus struct {
	Status string `json:"status"`
}

// ChatError reports a failed chat action to the sender.
type ChatError struct {
	Error string `json:"error"`
}

// SyncMessages carries the retained room history to a joining client.
type SyncMessages struct {
	Room     string         `json:"room"`
	Messages []chat.Message `json:"messages"`
}

// RoomEvent notifies room members of a join or leave.
type RoomEvent struct {
	UserID    string    `json:"userId"`
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingEvent notifies room members of a typing indicator change.
type TypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// CounterSync is the synchronous get-counter reply.
type CounterSync struct {
	Count            int64              `json:"count"`
	LastUpdatedBy    *identity.Identity `json:"lastUpdatedBy"`
	ConnectedClients int                `json:"connectedClients"`
}

// HelloReply echoes a hello event back to its sender.
type HelloReply struct {
	Message string            `json:"message"`
	User    identity.Identity `json:"user"`
}
