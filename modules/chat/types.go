package chat

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
)

// maxHistorySize is the maximum number of messages to keep per room.
const maxHistorySize = 100

// Validation errors
var (
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrMessageEmpty    = errors.New("message content cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message is not valid UTF-8")
)

// Message represents a chat message delivered to a room.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidateRoomName validates a room name.
func ValidateRoomName(room string) error {
	if room == "" {
		return ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(room) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	return nil
}

// ValidateMessage validates message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// SendMessageRequest is the request for the send-message service.
type SendMessageRequest struct {
	Room    string `json:"room"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// SendMessageResponse is the response for the send-message service.
type SendMessageResponse struct {
	Message Message `json:"message"`
}

// GetHistoryRequest is the request for the get-history service.
type GetHistoryRequest struct {
	Room  string `json:"room"`
	Limit int    `json:"limit"`
}

// GetHistoryResponse is the response for the get-history service.
type GetHistoryResponse struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}
