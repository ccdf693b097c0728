package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/example/socket-playground-demo/domain/identity"
	"github.com/example/socket-playground-demo/events"
	"github.com/example/socket-playground-demo/modules/broadcast"
	"github.com/example/socket-playground-demo/modules/chat"
	"github.com/example/socket-playground-demo/modules/counter"
)

// historyLimit is the number of messages synced to a joining client.
const historyLimit = 50

// Handlers contains the WebSocket event handlers. Inbound dispatch is
// separated from the read loop so it can be tested without a socket.
type Handlers struct {
	hub          *broadcast.Hub
	chatPort     chat.ChatPort
	counterPort  counter.CounterPort
	eventBus     mono.EventBus
	rateLimiters sync.Map // connID -> *tokenBucket
	logger       *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(hub *broadcast.Hub, chatPort chat.ChatPort, counterPort counter.CounterPort, eventBus mono.EventBus) *Handlers {
	return &Handlers{
		hub:         hub,
		chatPort:    chatPort,
		counterPort: counterPort,
		eventBus:    eventBus,
		logger:      slog.Default(),
	}
}

// HandleWebSocket runs the connection lifecycle: register the
// authenticated identity, pump inbound events, and clean up on close.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	user, ok := c.Locals(userContextKey).(identity.Identity)
	if !ok {
		// The upgrade middleware always sets the identity; a missing one
		// means the handshake never completed.
		_ = c.Close()
		return
	}

	connID := uuid.New().String()
	h.hub.Register(&broadcast.Client{
		ID:          connID,
		User:        user,
		Conn:        c,
		ConnectedAt: time.Now(),
	})
	h.rateLimiters.Store(connID, newTokenBucket(messageBurst, messagesPerSecond))

	h.publishConnected(connID, user)
	h.logger.Info("WebSocket connected", "connID", connID, "userID", user.ID)

	defer func() {
		h.disconnect(connID, user)
		c.Close()
	}()

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			break
		}

		var env broadcast.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			h.hub.SendError(connID, "Invalid message format")
			continue
		}

		h.dispatch(connID, user, env)
	}

	h.logger.Info("WebSocket disconnected", "connID", connID, "userID", user.ID)
}

// disconnect tears a connection down in the required order: room
// membership first (so departures can be notified from the member set),
// then presence, then the updated counts.
func (h *Handlers) disconnect(connID string, user identity.Identity) {
	left := h.hub.RemoveFromAllRooms(connID)
	now := time.Now()
	for _, room := range left {
		h.hub.SendToRoom(room, connID, "user-left-room", RoomEvent{
			UserID:    user.ID,
			Room:      room,
			Timestamp: now,
		})
	}

	h.hub.Unregister(connID)
	h.rateLimiters.Delete(connID)
	h.publishDisconnected(connID, user)
}

// dispatch routes one inbound envelope to its handler. Every failure is
// converted to an outbound event; nothing here may panic the process.
func (h *Handlers) dispatch(connID string, user identity.Identity, env broadcast.Envelope) {
	switch env.Type {
	case "join-room":
		h.handleJoinRoom(connID, user, env.Payload)
	case "leave-room":
		h.handleLeaveRoom(connID, user, env.Payload)
	case "send-message":
		h.handleSendMessage(connID, user, env.Payload)
	case "get-online-users":
		h.handleGetOnlineUsers(connID)
	case "broadcast-to-all":
		h.handleBroadcastToAll(connID, user, env.Payload)
	case "broadcast-to-user":
		h.handleBroadcastToUser(connID, user, env.Payload)
	case "broadcast-to-users":
		h.handleBroadcastToUsers(connID, user, env.Payload)
	case "broadcast-to-room":
		h.handleBroadcastToRoom(connID, user, env.Payload)
	case "counter-increment":
		h.handleCounterMutation(connID, user, "increment")
	case "counter-decrement":
		h.handleCounterMutation(connID, user, "decrement")
	case "counter-reset":
		h.handleCounterMutation(connID, user, "reset")
	case "counter-set":
		h.handleCounterSet(connID, user, env.Payload)
	case "get-counter":
		h.handleGetCounter(connID)
	case "typing-start":
		h.handleTyping(connID, user, env.Payload, true)
	case "typing-stop":
		h.handleTyping(connID, user, env.Payload, false)
	case "hello":
		h.handleHello(connID, user, env.Payload)
	default:
		h.hub.SendError(connID, "Unknown message type: "+env.Type)
	}
}

// handleJoinRoom adds the identity to a room, syncs history to the
// joiner and notifies the other room members.
func (h *Handlers) handleJoinRoom(connID string, user identity.Identity, payload json.RawMessage) {
	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" {
		h.hub.SendToConn(connID, "chat-error", ChatError{Error: "room is required"})
		return
	}

	if !h.hub.JoinRoom(connID, req.Room) {
		h.hub.SendToConn(connID, "chat-error", ChatError{Error: "connection is not registered"})
		return
	}

	history, err := h.chatPort.GetHistory(context.Background(), req.Room, historyLimit)
	if err != nil {
		h.logger.Error("failed to load history", "room", req.Room, "error", err)
		history = []chat.Message{}
	}

	h.hub.SendToConn(connID, "sync-messages", SyncMessages{Room: req.Room, Messages: history})
	h.hub.SendToConn(connID, "chat-status", ChatStatus{Status: "Joined room: " + req.Room})

	h.hub.SendToRoom(req.Room, connID, "user-joined", RoomEvent{
		UserID:    user.ID,
		Room:      req.Room,
		Timestamp: time.Now(),
	})
}

// handleLeaveRoom removes the identity from a room and notifies the
// remaining members.
func (h *Handlers) handleLeaveRoom(connID string, user identity.Identity, payload json.RawMessage) {
	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" {
		h.hub.SendToConn(connID, "chat-error", ChatError{Error: "room is required"})
		return
	}

	h.hub.LeaveRoom(connID, req.Room)
	h.hub.SendToConn(connID, "chat-status", ChatStatus{Status: "Left room: " + req.Room})

	h.hub.SendToRoom(req.Room, connID, "user-left", RoomEvent{
		UserID:    user.ID,
		Room:      req.Room,
		Timestamp: time.Now(),
	})
}

// handleSendMessage validates and stores a chat message. Room fan-out
// of the stored message happens in the broadcast module.
func (h *Handlers) handleSendMessage(connID string, user identity.Identity, payload json.RawMessage) {
	if limiterVal, ok := h.rateLimiters.Load(connID); ok {
		limiter := limiterVal.(*tokenBucket)
		if !limiter.allow() {
			h.hub.SendToConn(connID, "chat-error", ChatError{Error: "Rate limit exceeded, please slow down"})
			return
		}
	}

	var req SendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" || req.Message == "" {
		h.hub.SendToConn(connID, "chat-error", ChatError{Error: "Message or room is missing"})
		return
	}

	if _, err := h.chatPort.SendMessage(context.Background(), req.Room, user.Email, req.Message); err != nil {
		h.hub.SendToConn(connID, "chat-error", ChatError{Error: err.Error()})
		return
	}

	h.hub.SendToConn(connID, "chat-status", ChatStatus{Status: "Message sent successfully"})
}

// handleGetOnlineUsers replies with the current online list to the
// requester only.
func (h *Handlers) handleGetOnlineUsers(connID string) {
	h.hub.SendToConn(connID, "online-users", h.hub.OnlineUsers())
}

// handleBroadcastToAll alerts every other connection and confirms the
// actual recipient count to the sender.
func (h *Handlers) handleBroadcastToAll(connID string, user identity.Identity, payload json.RawMessage) {
	var req BroadcastPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.hub.SendError(connID, "Invalid broadcast payload")
		return
	}

	count := h.hub.SendToOthers(connID, "broadcast-alert", h.alert(connID, user, req))

	h.hub.SendToConn(connID, "broadcast-sent", BroadcastSent{
		Message:        req.Message,
		Type:           req.Type,
		Title:          req.Title,
		Target:         "all users",
		RecipientCount: count,
	})
}

// handleBroadcastToUser alerts a single identity, or reports the missing
// target back to the sender.
func (h *Handlers) handleBroadcastToUser(connID string, user identity.Identity, payload json.RawMessage) {
	var req BroadcastPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.TargetUserID == "" {
		h.hub.SendError(connID, "Invalid broadcast payload")
		return
	}

	if !h.hub.SendToUser(req.TargetUserID, "broadcast-alert", h.alert(connID, user, req)) {
		h.hub.SendToConn(connID, "broadcast-error", BroadcastError{
			Message:      "Target user not found or offline",
			TargetUserID: req.TargetUserID,
		})
		return
	}

	target := req.TargetUserID
	if targetConn, ok := h.hub.LookupUser(req.TargetUserID); ok {
		if targetUser, ok := h.hub.Identity(targetConn); ok {
			target = targetUser.FullName()
		}
	}

	h.hub.SendToConn(connID, "broadcast-sent", BroadcastSent{
		Message:        req.Message,
		Type:           req.Type,
		Title:          req.Title,
		Target:         target,
		RecipientCount: 1,
	})
}

// handleBroadcastToUsers alerts each present target, silently skipping
// absent ones, and reports the delivered count.
func (h *Handlers) handleBroadcastToUsers(connID string, user identity.Identity, payload json.RawMessage) {
	var req BroadcastPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.hub.SendError(connID, "Invalid broadcast payload")
		return
	}

	delivered := h.hub.SendToUsers(req.TargetUserIDs, "broadcast-alert", h.alert(connID, user, req))

	names := make([]string, 0, len(delivered))
	for _, target := range delivered {
		names = append(names, target.FullName())
	}

	h.hub.SendToConn(connID, "broadcast-sent", BroadcastSent{
		Message:        req.Message,
		Type:           req.Type,
		Title:          req.Title,
		Target:         strings.Join(names, ", "),
		RecipientCount: len(delivered),
	})
}

// handleBroadcastToRoom alerts the room members except the sender.
func (h *Handlers) handleBroadcastToRoom(connID string, user identity.Identity, payload json.RawMessage) {
	var req BroadcastPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.RoomID == "" {
		h.hub.SendError(connID, "Invalid broadcast payload")
		return
	}

	count := h.hub.SendToRoom(req.RoomID, connID, "broadcast-alert", h.alert(connID, user, req))

	h.hub.SendToConn(connID, "broadcast-sent", BroadcastSent{
		Message:        req.Message,
		Type:           req.Type,
		Title:          req.Title,
		Target:         "Room: " + req.RoomID,
		RecipientCount: count,
	})
}

// handleCounterMutation applies a payload-free counter operation. The
// full-state broadcast to all connections happens in the broadcast
// module when the CounterUpdated event lands.
func (h *Handlers) handleCounterMutation(connID string, user identity.Identity, op string) {
	ctx := context.Background()
	var err error
	switch op {
	case "increment":
		_, err = h.counterPort.Increment(ctx, user)
	case "decrement":
		_, err = h.counterPort.Decrement(ctx, user)
	case "reset":
		_, err = h.counterPort.Reset(ctx, user)
	}
	if err != nil {
		h.logger.Error("counter mutation failed", "op", op, "error", err)
		h.hub.SendError(connID, "Counter operation failed")
	}
}

// handleCounterSet assigns an explicit value. A missing or non-numeric
// value is silently dropped: no mutation, no broadcast, no error event.
func (h *Handlers) handleCounterSet(connID string, user identity.Identity, payload json.RawMessage) {
	var req CounterSetPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Value == nil {
		return
	}

	if _, err := h.counterPort.Set(context.Background(), user, *req.Value); err != nil {
		h.logger.Error("counter set failed", "error", err)
		h.hub.SendError(connID, "Counter operation failed")
	}
}

// handleGetCounter replies with the counter state and the current
// connection count to the requester only.
func (h *Handlers) handleGetCounter(connID string) {
	state, err := h.counterPort.Get(context.Background())
	if err != nil {
		h.logger.Error("counter get failed", "error", err)
		h.hub.SendError(connID, "Counter operation failed")
		return
	}

	h.hub.SendToConn(connID, "counter-sync", CounterSync{
		Count:            state.Count,
		LastUpdatedBy:    state.LastUpdatedBy,
		ConnectedClients: h.hub.ClientCount(),
	})
}

// handleTyping relays typing indicators to the other room members.
func (h *Handlers) handleTyping(connID string, user identity.Identity, payload json.RawMessage, start bool) {
	var req RoomPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Room == "" {
		return
	}

	if start {
		h.hub.SendToRoom(req.Room, connID, "user-typing", TypingEvent{
			UserID:   user.ID,
			UserName: user.FullName(),
		})
		return
	}
	h.hub.SendToRoom(req.Room, connID, "user-stop-typing", TypingEvent{UserID: user.ID})
}

// handleHello echoes a greeting back to the sender.
func (h *Handlers) handleHello(connID string, user identity.Identity, payload json.RawMessage) {
	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		text = string(payload)
	}

	h.hub.SendToConn(connID, "hello", HelloReply{
		Message: fmt.Sprintf("Hello back from server! You said: %q", text),
		User:    user,
	})
}

// alert builds the broadcast-alert payload with the sender attached.
func (h *Handlers) alert(connID string, user identity.Identity, req BroadcastPayload) BroadcastAlert {
	return BroadcastAlert{
		Message:    req.Message,
		Type:       req.Type,
		Title:      req.Title,
		Sender:     user,
		FromConnID: connID,
		Timestamp:  time.Now(),
	}
}

// publishConnected emits the connect event for presence fan-out.
func (h *Handlers) publishConnected(connID string, user identity.Identity) {
	if h.eventBus == nil {
		return
	}
	event := events.UserConnectedEvent{
		ConnID:    connID,
		User:      user,
		Timestamp: time.Now(),
	}
	if err := events.UserConnectedV1.Publish(h.eventBus, event, nil); err != nil {
		h.logger.Warn("Failed to publish UserConnected event", "error", err)
	}
}

// publishDisconnected emits the disconnect event for presence fan-out.
func (h *Handlers) publishDisconnected(connID string, user identity.Identity) {
	if h.eventBus == nil {
		return
	}
	event := events.UserDisconnectedEvent{
		ConnID:    connID,
		User:      user,
		Timestamp: time.Now(),
	}
	if err := events.UserDisconnectedV1.Publish(h.eventBus, event, nil); err != nil {
		h.logger.Warn("Failed to publish UserDisconnected event", "error", err)
	}
}
