package broadcast

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/example/socket-playground-demo/domain/identity"
)

// Hub tracks live connections, which identity owns which connection,
// and room membership, and fans events out to recipient sets. It is the
// single process-wide registry: constructed once at startup and injected
// into the modules that need it.
//
// Identity collisions follow last-connection-wins: registering a second
// connection for the same identity repoints the identity index without
// closing the stale connection. The stale connection keeps receiving
// all-connection broadcasts but no longer owns the identity, so targeted
// delivery and room membership resolve to the newest connection.
type Hub struct {
	clients   map[string]*Client         // connID -> client (every live connection)
	userConns map[string]string          // userID -> connID (identity index)
	userSeq   map[string]uint64          // userID -> registration order
	rooms     map[string]map[string]bool // room -> set of userIDs
	userRooms map[string]map[string]bool // userID -> set of rooms
	seq       uint64
	logger    *slog.Logger
	mu        sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		userConns: make(map[string]string),
		userSeq:   make(map[string]uint64),
		rooms:     make(map[string]map[string]bool),
		userRooms: make(map[string]map[string]bool),
		logger:    slog.Default(),
	}
}

// Register adds an authenticated connection to the hub. If the identity
// already owns a connection, the identity index is repointed to the new
// connection and the previous one is left registered but unowned.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.seq++
	h.userConns[client.User.ID] = client.ID
	h.userSeq[client.User.ID] = h.seq
	h.logger.Info("client registered", "connID", client.ID, "userID", client.User.ID)
}

// Unregister removes a connection. When the connection still owns its
// identity, the identity index and any remaining room membership are
// removed with it. Calling it for an unknown connection is a no-op.
func (h *Hub) Unregister(connID string) (identity.Identity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return identity.Identity{}, false
	}
	delete(h.clients, connID)

	userID := client.User.ID
	if h.userConns[userID] == connID {
		delete(h.userConns, userID)
		delete(h.userSeq, userID)
		for room := range h.userRooms[userID] {
			h.removeMembership(room, userID)
		}
	}

	h.logger.Info("client unregistered", "connID", connID, "userID", userID)
	return client.User, true
}

// Identity returns the identity attached to a connection.
func (h *Hub) Identity(connID string) (identity.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return identity.Identity{}, false
	}
	return client.User, true
}

// LookupUser returns the connection currently owned by an identity.
func (h *Hub) LookupUser(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	connID, ok := h.userConns[userID]
	return connID, ok
}

// OnlineUsers returns the identities currently present, unique per
// identity and stable in registration order.
func (h *Hub) OnlineUsers() []identity.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]string, 0, len(h.userConns))
	for userID := range h.userConns {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		return h.userSeq[userIDs[i]] < h.userSeq[userIDs[j]]
	})

	users := make([]identity.Identity, 0, len(userIDs))
	for _, userID := range userIDs {
		if client, ok := h.clients[h.userConns[userID]]; ok {
			users = append(users, client.User)
		}
	}
	return users
}

// ClientCount returns the total number of live connections, stale
// connections included.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// JoinRoom adds the connection's identity to a room, creating the room
// on first join. Returns false when the connection is unknown or no
// longer owns its identity.
func (h *Hub) JoinRoom(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.owningUser(connID)
	if !ok {
		return false
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][userID] = true
	if h.userRooms[userID] == nil {
		h.userRooms[userID] = make(map[string]bool)
	}
	h.userRooms[userID][room] = true

	h.logger.Info("joined room", "connID", connID, "userID", userID, "room", room)
	return true
}

// LeaveRoom removes the connection's identity from a room. The room is
// deleted when its last member leaves.
func (h *Hub) LeaveRoom(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.owningUser(connID)
	if !ok {
		return false
	}

	h.removeMembership(room, userID)
	h.logger.Info("left room", "connID", connID, "userID", userID, "room", room)
	return true
}

// RemoveFromAllRooms removes the connection's identity from every room
// it joined and returns the rooms it left, so the caller can notify the
// remaining members. Cost is bounded by the identity's own membership.
func (h *Hub) RemoveFromAllRooms(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.owningUser(connID)
	if !ok {
		return nil
	}

	left := make([]string, 0, len(h.userRooms[userID]))
	for room := range h.userRooms[userID] {
		left = append(left, room)
	}
	sort.Strings(left)
	for _, room := range left {
		h.removeMembership(room, userID)
	}
	return left
}

// RoomMembers returns the identities in a room. Unknown rooms yield an
// empty slice.
func (h *Hub) RoomMembers(room string) []identity.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]identity.Identity, 0, len(h.rooms[room]))
	for userID := range h.rooms[room] {
		if client, ok := h.clients[h.userConns[userID]]; ok {
			members = append(members, client.User)
		}
	}
	return members
}

// Rooms returns the names of all rooms with at least one member.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// UserRooms returns the rooms the identity owning connID has joined.
func (h *Hub) UserRooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return nil
	}

	rooms := make([]string, 0, len(h.userRooms[client.User.ID]))
	for room := range h.userRooms[client.User.ID] {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// SendToAll delivers an event to every live connection.
func (h *Hub) SendToAll(msgType string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, ok := h.encode(msgType, payload)
	if !ok {
		return
	}
	for _, client := range h.clients {
		h.write(client, data)
	}
}

// SendToOthers delivers an event to every live connection except one.
func (h *Hub) SendToOthers(exceptConnID, msgType string, payload any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, ok := h.encode(msgType, payload)
	if !ok {
		return 0
	}
	count := 0
	for connID, client := range h.clients {
		if connID == exceptConnID {
			continue
		}
		h.write(client, data)
		count++
	}
	return count
}

// SendToConn delivers an event to a single connection.
func (h *Hub) SendToConn(connID, msgType string, payload any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	data, ok := h.encode(msgType, payload)
	if !ok {
		return false
	}
	h.write(client, data)
	return true
}

// SendError delivers an error envelope to a single connection.
func (h *Hub) SendError(connID, errMsg string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	data, err := json.Marshal(Envelope{Type: "error", Error: errMsg})
	if err != nil {
		return
	}
	h.write(client, data)
}

// SendToUser delivers an event to the connection owned by an identity.
// Returns false when the identity has no live connection.
func (h *Hub) SendToUser(userID, msgType string, payload any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[h.userConns[userID]]
	if !ok {
		return false
	}
	data, ok := h.encode(msgType, payload)
	if !ok {
		return false
	}
	h.write(client, data)
	return true
}

// SendToUsers delivers an event to each identity in the list that has a
// live connection. Absent identities are silently skipped; the delivered
// identities are returned so callers can report the actual count.
func (h *Hub) SendToUsers(userIDs []string, msgType string, payload any) []identity.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, ok := h.encode(msgType, payload)
	if !ok {
		return nil
	}

	delivered := make([]identity.Identity, 0, len(userIDs))
	for _, userID := range userIDs {
		client, ok := h.clients[h.userConns[userID]]
		if !ok {
			continue
		}
		h.write(client, data)
		delivered = append(delivered, client.User)
	}
	return delivered
}

// SendToRoom delivers an event to the connections of every room member,
// excluding exceptConnID when set. Returns the number of recipients.
func (h *Hub) SendToRoom(room, exceptConnID, msgType string, payload any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, ok := h.encode(msgType, payload)
	if !ok {
		return 0
	}

	count := 0
	for userID := range h.rooms[room] {
		client, ok := h.clients[h.userConns[userID]]
		if !ok || client.ID == exceptConnID {
			continue
		}
		h.write(client, data)
		count++
	}
	return count
}

// owningUser resolves a connection to the identity it currently owns.
// Callers must hold the lock.
func (h *Hub) owningUser(connID string) (string, bool) {
	client, ok := h.clients[connID]
	if !ok {
		return "", false
	}
	if h.userConns[client.User.ID] != connID {
		return "", false
	}
	return client.User.ID, true
}

// removeMembership drops a user from a room on both sides of the dual
// index, deleting empty entries. Callers must hold the lock.
func (h *Hub) removeMembership(room, userID string) {
	if h.rooms[room] != nil {
		delete(h.rooms[room], userID)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	if h.userRooms[userID] != nil {
		delete(h.userRooms[userID], room)
		if len(h.userRooms[userID]) == 0 {
			delete(h.userRooms, userID)
		}
	}
}

// encode marshals the envelope, logging failures.
func (h *Hub) encode(msgType string, payload any) ([]byte, bool) {
	data, err := encodeEnvelope(msgType, payload)
	if err != nil {
		h.logger.Error("failed to marshal envelope", "type", msgType, "error", err)
		return nil, false
	}
	return data, true
}

// write is fire-and-forget: delivery failures are logged, never retried.
// Fan-out runs under the hub's read lock, so read-loop goroutines and
// event consumers can reach the same connection at once; the per-client
// write mutex serializes them, since the connection allows only one
// concurrent writer.
func (h *Hub) write(client *Client, data []byte) {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Error("failed to send to client", "connID", client.ID, "error", err)
	}
}
