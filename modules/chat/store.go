package chat

import "sync"

// MessageStore keeps a bounded in-memory message history per room.
// History lives for the process lifetime only; a restart loses it.
type MessageStore struct {
	messages map[string][]Message // room -> messages, oldest first
	maxSize  int
	mu       sync.RWMutex
}

// NewMessageStore creates a new MessageStore keeping at most maxSize
// messages per room.
func NewMessageStore(maxSize int) *MessageStore {
	if maxSize <= 0 {
		maxSize = maxHistorySize
	}
	return &MessageStore{
		messages: make(map[string][]Message),
		maxSize:  maxSize,
	}
}

// Add appends a message to its room's history, evicting the oldest
// entries beyond the per-room cap.
func (s *MessageStore) Add(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.messages[msg.Room], msg)
	if len(history) > s.maxSize {
		history = history[len(history)-s.maxSize:]
	}
	s.messages[msg.Room] = history
}

// History returns the last 'limit' messages for a room, oldest first.
// A limit <= 0 returns the full retained history. Unknown rooms yield
// an empty slice.
func (s *MessageStore) History(room string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[room]
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}

	result := make([]Message, limit)
	copy(result, history[len(history)-limit:])
	return result
}

// Rooms returns the names of all rooms with retained history.
func (s *MessageStore) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]string, 0, len(s.messages))
	for room := range s.messages {
		rooms = append(rooms, room)
	}
	return rooms
}
