package chat

import (
	"fmt"
	"testing"
	"time"
)

func makeMessage(room, content string) Message {
	return Message{
		ID:        content,
		Room:      room,
		Sender:    "alice@example.com",
		Message:   content,
		Timestamp: time.Now(),
	}
}

func TestMessageStore_AddAndHistory(t *testing.T) {
	store := NewMessageStore(100)

	store.Add(makeMessage("general", "first"))
	store.Add(makeMessage("general", "second"))
	store.Add(makeMessage("random", "other"))

	history := store.History("general", 0)
	if len(history) != 2 {
		t.Fatalf("History() returned %d messages, want 2", len(history))
	}
	if history[0].Message != "first" || history[1].Message != "second" {
		t.Errorf("History() order = [%s, %s], want [first, second]", history[0].Message, history[1].Message)
	}
}

func TestMessageStore_HistoryLimit(t *testing.T) {
	store := NewMessageStore(100)

	for i := 0; i < 10; i++ {
		store.Add(makeMessage("general", fmt.Sprintf("msg-%d", i)))
	}

	history := store.History("general", 3)
	if len(history) != 3 {
		t.Fatalf("History(3) returned %d messages, want 3", len(history))
	}
	if history[0].Message != "msg-7" {
		t.Errorf("History(3) first message = %s, want msg-7", history[0].Message)
	}
	if history[2].Message != "msg-9" {
		t.Errorf("History(3) last message = %s, want msg-9", history[2].Message)
	}
}

func TestMessageStore_EvictsOldestBeyondCap(t *testing.T) {
	store := NewMessageStore(5)

	for i := 0; i < 8; i++ {
		store.Add(makeMessage("general", fmt.Sprintf("msg-%d", i)))
	}

	history := store.History("general", 0)
	if len(history) != 5 {
		t.Fatalf("History() returned %d messages, want 5", len(history))
	}
	if history[0].Message != "msg-3" {
		t.Errorf("oldest retained message = %s, want msg-3", history[0].Message)
	}
}

func TestMessageStore_UnknownRoom(t *testing.T) {
	store := NewMessageStore(100)

	history := store.History("nowhere", 10)
	if history == nil {
		t.Error("History() for unknown room should return empty slice, got nil")
	}
	if len(history) != 0 {
		t.Errorf("History() for unknown room returned %d messages, want 0", len(history))
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "valid message", content: "hello", wantErr: nil},
		{name: "empty message", content: "", wantErr: ErrMessageEmpty},
		{name: "invalid utf8", content: string([]byte{0xff, 0xfe}), wantErr: ErrMessageInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateMessage(tt.content); err != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoomName(t *testing.T) {
	if err := ValidateRoomName("general"); err != nil {
		t.Errorf("ValidateRoomName(general) error = %v, want nil", err)
	}
	if err := ValidateRoomName(""); err != ErrRoomNameEmpty {
		t.Errorf("ValidateRoomName(\"\") error = %v, want ErrRoomNameEmpty", err)
	}
}
