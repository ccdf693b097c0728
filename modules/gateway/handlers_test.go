package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/socket-playground-demo/domain/identity"
	"github.com/example/socket-playground-demo/modules/broadcast"
	"github.com/example/socket-playground-demo/modules/chat"
	"github.com/example/socket-playground-demo/modules/counter"
)

// fakeSender records every envelope written to it.
type fakeSender struct {
	messages []broadcast.Envelope
}

func (f *fakeSender) WriteMessage(_ int, data []byte) error {
	var env broadcast.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	f.messages = append(f.messages, env)
	return nil
}

func (f *fakeSender) byType(msgType string) []broadcast.Envelope {
	var out []broadcast.Envelope
	for _, env := range f.messages {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

// localChat implements chat.ChatPort on the in-memory store, bypassing
// the event bus.
type localChat struct {
	store *chat.MessageStore
}

func (l *localChat) SendMessage(_ context.Context, room, sender, content string) (chat.Message, error) {
	if err := chat.ValidateRoomName(room); err != nil {
		return chat.Message{}, err
	}
	if err := chat.ValidateMessage(content); err != nil {
		return chat.Message{}, err
	}
	msg := chat.Message{
		ID:        uuid.New().String(),
		Room:      room,
		Sender:    sender,
		Message:   content,
		Timestamp: time.Now(),
	}
	l.store.Add(msg)
	return msg, nil
}

func (l *localChat) GetHistory(_ context.Context, room string, limit int) ([]chat.Message, error) {
	return l.store.History(room, limit), nil
}

// localCounter implements counter.CounterPort on the counter service,
// bypassing the event bus.
type localCounter struct {
	svc *counter.Service
}

func (l *localCounter) Increment(_ context.Context, actor identity.Identity) (counter.MutateResponse, error) {
	return counter.MutateResponse{Count: l.svc.Increment(actor), UpdatedBy: actor}, nil
}

func (l *localCounter) Decrement(_ context.Context, actor identity.Identity) (counter.MutateResponse, error) {
	return counter.MutateResponse{Count: l.svc.Decrement(actor), UpdatedBy: actor}, nil
}

func (l *localCounter) Reset(_ context.Context, actor identity.Identity) (counter.MutateResponse, error) {
	return counter.MutateResponse{Count: l.svc.Reset(actor), UpdatedBy: actor}, nil
}

func (l *localCounter) Set(_ context.Context, actor identity.Identity, value int64) (counter.MutateResponse, error) {
	return counter.MutateResponse{Count: l.svc.Set(actor, value), UpdatedBy: actor}, nil
}

func (l *localCounter) Get(_ context.Context) (counter.GetResponse, error) {
	count, last := l.svc.Snapshot()
	return counter.GetResponse{Count: count, LastUpdatedBy: last}, nil
}

type testEnv struct {
	handlers *Handlers
	hub      *broadcast.Hub
	counter  *counter.Service
}

func newTestEnv() *testEnv {
	hub := broadcast.NewHub()
	svc := counter.NewService()
	handlers := NewHandlers(
		hub,
		&localChat{store: chat.NewMessageStore(100)},
		&localCounter{svc: svc},
		nil,
	)
	return &testEnv{handlers: handlers, hub: hub, counter: svc}
}

func (e *testEnv) connect(connID, userID string) (identity.Identity, *fakeSender) {
	sender := &fakeSender{}
	user := identity.Identity{
		ID:        userID,
		FirstName: "User",
		LastName:  userID,
		Email:     userID + "@example.com",
	}
	e.hub.Register(&broadcast.Client{
		ID:          connID,
		User:        user,
		Conn:        sender,
		ConnectedAt: time.Now(),
	})
	return user, sender
}

func (e *testEnv) send(connID string, user identity.Identity, msgType string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		raw = data
	}
	e.handlers.dispatch(connID, user, broadcast.Envelope{Type: msgType, Payload: raw})
}

func TestDispatch_JoinRoomSyncsAndNotifies(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")
	u2, s2 := env.connect("conn-2", "u2")

	env.send("conn-1", u1, "join-room", RoomPayload{Room: "general"})
	env.send("conn-2", u2, "join-room", RoomPayload{Room: "general"})

	if got := s1.byType("sync-messages"); len(got) != 1 {
		t.Errorf("joiner received %d sync-messages, want 1", len(got))
	}
	if got := s1.byType("chat-status"); len(got) != 1 {
		t.Errorf("joiner received %d chat-status, want 1", len(got))
	}

	// The first member is notified about the second join; the joiner is not.
	if got := s1.byType("user-joined"); len(got) != 1 {
		t.Errorf("existing member received %d user-joined, want 1", len(got))
	}
	if got := s2.byType("user-joined"); len(got) != 0 {
		t.Errorf("joiner received %d user-joined about itself, want 0", len(got))
	}
}

func TestDispatch_SendMessageRequiresRoom(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")

	env.send("conn-1", u1, "send-message", SendMessagePayload{Message: "hi"})

	errs := s1.byType("chat-error")
	if len(errs) != 1 {
		t.Fatalf("sender received %d chat-error, want 1", len(errs))
	}
	var chatErr ChatError
	if err := json.Unmarshal(errs[0].Payload, &chatErr); err != nil {
		t.Fatalf("failed to decode chat-error payload: %v", err)
	}
	if chatErr.Error != "Message or room is missing" {
		t.Errorf("chat-error = %q, want %q", chatErr.Error, "Message or room is missing")
	}
}

func TestDispatch_SendMessageConfirms(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")
	env.send("conn-1", u1, "join-room", RoomPayload{Room: "general"})

	env.send("conn-1", u1, "send-message", SendMessagePayload{Room: "general", Message: "hello"})

	statuses := s1.byType("chat-status")
	if len(statuses) != 2 {
		t.Fatalf("sender received %d chat-status, want 2 (join + send)", len(statuses))
	}
}

func TestDispatch_BroadcastToUserScenario(t *testing.T) {
	// U1 and U2 connected, neither in any room. U1 targets U2, then a
	// nonexistent id.
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")
	_, s2 := env.connect("conn-2", "u2")

	env.send("conn-1", u1, "broadcast-to-user", BroadcastPayload{TargetUserID: "u2", Message: "hi"})

	if got := s2.byType("broadcast-alert"); len(got) != 1 {
		t.Fatalf("target received %d broadcast-alert, want 1", len(got))
	}
	sent := s1.byType("broadcast-sent")
	if len(sent) != 1 {
		t.Fatalf("sender received %d broadcast-sent, want 1", len(sent))
	}
	var confirm BroadcastSent
	if err := json.Unmarshal(sent[0].Payload, &confirm); err != nil {
		t.Fatalf("failed to decode broadcast-sent payload: %v", err)
	}
	if confirm.RecipientCount != 1 {
		t.Errorf("broadcast-sent recipientCount = %d, want 1", confirm.RecipientCount)
	}

	env.send("conn-1", u1, "broadcast-to-user", BroadcastPayload{TargetUserID: "ghost", Message: "hi"})

	errs := s1.byType("broadcast-error")
	if len(errs) != 1 {
		t.Fatalf("sender received %d broadcast-error, want 1", len(errs))
	}
	var bErr BroadcastError
	if err := json.Unmarshal(errs[0].Payload, &bErr); err != nil {
		t.Fatalf("failed to decode broadcast-error payload: %v", err)
	}
	if bErr.TargetUserID != "ghost" {
		t.Errorf("broadcast-error targetUserId = %q, want ghost", bErr.TargetUserID)
	}
	if got := s2.byType("broadcast-alert"); len(got) != 1 {
		t.Errorf("U2 received %d broadcast-alert after failed targeting, want still 1", len(got))
	}
}

func TestDispatch_BroadcastToUsersAccounting(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")
	env.connect("conn-2", "u2")
	env.connect("conn-3", "u3")

	env.send("conn-1", u1, "broadcast-to-users", BroadcastPayload{
		TargetUserIDs: []string{"u2", "u3", "ghost-1", "ghost-2"},
		Message:       "hi",
	})

	sent := s1.byType("broadcast-sent")
	if len(sent) != 1 {
		t.Fatalf("sender received %d broadcast-sent, want 1", len(sent))
	}
	var confirm BroadcastSent
	if err := json.Unmarshal(sent[0].Payload, &confirm); err != nil {
		t.Fatalf("failed to decode broadcast-sent payload: %v", err)
	}
	if confirm.RecipientCount != 2 {
		t.Errorf("broadcast-sent recipientCount = %d, want 2", confirm.RecipientCount)
	}
}

func TestDispatch_BroadcastToRoomExcludesSender(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")
	u2, s2 := env.connect("conn-2", "u2")
	env.send("conn-1", u1, "join-room", RoomPayload{Room: "general"})
	env.send("conn-2", u2, "join-room", RoomPayload{Room: "general"})

	env.send("conn-1", u1, "broadcast-to-room", BroadcastPayload{RoomID: "general", Message: "hi"})

	if got := s1.byType("broadcast-alert"); len(got) != 0 {
		t.Errorf("sender received %d broadcast-alert, want 0", len(got))
	}
	if got := s2.byType("broadcast-alert"); len(got) != 1 {
		t.Errorf("room member received %d broadcast-alert, want 1", len(got))
	}

	sent := s1.byType("broadcast-sent")
	if len(sent) != 1 {
		t.Fatalf("sender received %d broadcast-sent, want 1", len(sent))
	}
	var confirm BroadcastSent
	if err := json.Unmarshal(sent[0].Payload, &confirm); err != nil {
		t.Fatalf("failed to decode broadcast-sent payload: %v", err)
	}
	if confirm.Target != "Room: general" {
		t.Errorf("broadcast-sent target = %q, want %q", confirm.Target, "Room: general")
	}
}

func TestDispatch_CounterScenario(t *testing.T) {
	// Fresh counter at 0; U1 increments three times; a late-joining U2
	// requesting the counter sees count 3, U1 as modifier and both
	// connections counted.
	env := newTestEnv()
	u1, _ := env.connect("conn-1", "u1")
	u2, s2 := env.connect("conn-2", "u2")

	env.send("conn-1", u1, "counter-increment", nil)
	env.send("conn-1", u1, "counter-increment", nil)
	env.send("conn-1", u1, "counter-increment", nil)

	env.send("conn-2", u2, "get-counter", nil)

	syncs := s2.byType("counter-sync")
	if len(syncs) != 1 {
		t.Fatalf("requester received %d counter-sync, want 1", len(syncs))
	}
	var sync CounterSync
	if err := json.Unmarshal(syncs[0].Payload, &sync); err != nil {
		t.Fatalf("failed to decode counter-sync payload: %v", err)
	}
	if sync.Count != 3 {
		t.Errorf("counter-sync count = %d, want 3", sync.Count)
	}
	if sync.LastUpdatedBy == nil || sync.LastUpdatedBy.ID != "u1" {
		t.Errorf("counter-sync lastUpdatedBy = %+v, want u1", sync.LastUpdatedBy)
	}
	if sync.ConnectedClients != 2 {
		t.Errorf("counter-sync connectedClients = %d, want 2", sync.ConnectedClients)
	}
}

func TestDispatch_CounterSetRejectsNonNumericSilently(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")

	env.send("conn-1", u1, "counter-set", map[string]any{"value": "not-a-number"})
	env.send("conn-1", u1, "counter-set", map[string]any{})

	if len(s1.messages) != 0 {
		t.Errorf("sender received %d messages after invalid counter-set, want 0", len(s1.messages))
	}
	count, last := env.counter.Snapshot()
	if count != 0 || last != nil {
		t.Errorf("counter state = (%d, %+v) after invalid set, want untouched (0, nil)", count, last)
	}
}

func TestDispatch_CounterSetAppliesValue(t *testing.T) {
	env := newTestEnv()
	u1, _ := env.connect("conn-1", "u1")

	env.send("conn-1", u1, "counter-set", map[string]any{"value": 42})

	count, last := env.counter.Snapshot()
	if count != 42 {
		t.Errorf("counter = %d after set, want 42", count)
	}
	if last == nil || last.ID != "u1" {
		t.Errorf("lastUpdatedBy = %+v, want u1", last)
	}
}

func TestDispatch_UnknownTypeReturnsError(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")

	env.send("conn-1", u1, "no-such-event", nil)

	if len(s1.messages) != 1 || s1.messages[0].Type != "error" {
		t.Fatalf("sender messages = %+v, want single error envelope", s1.messages)
	}
	if s1.messages[0].Error != "Unknown message type: no-such-event" {
		t.Errorf("error = %q, want unknown message type report", s1.messages[0].Error)
	}
}

func TestDispatch_ConcurrentBroadcastsDeliverToSharedTarget(t *testing.T) {
	// Two connections broadcasting at the same time both fan out to a
	// third; its fakeSender appends without its own lock, so the race
	// detector catches overlapping writes to one connection.
	env := newTestEnv()
	u1, _ := env.connect("conn-1", "u1")
	u2, _ := env.connect("conn-2", "u2")
	_, s3 := env.connect("conn-3", "u3")

	const perSender = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			env.send("conn-1", u1, "broadcast-to-all", BroadcastPayload{Message: "from u1"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			env.send("conn-2", u2, "broadcast-to-all", BroadcastPayload{Message: "from u2"})
		}
	}()
	wg.Wait()

	if got := len(s3.byType("broadcast-alert")); got != 2*perSender {
		t.Errorf("bystander received %d broadcast-alert, want %d", got, 2*perSender)
	}
}

func TestDisconnect_CleansUpAndNotifiesOnce(t *testing.T) {
	env := newTestEnv()
	u1, _ := env.connect("conn-1", "u1")
	u2, s2 := env.connect("conn-2", "u2")
	env.send("conn-1", u1, "join-room", RoomPayload{Room: "general"})
	env.send("conn-2", u2, "join-room", RoomPayload{Room: "general"})

	env.handlers.disconnect("conn-1", u1)

	if got := s2.byType("user-left-room"); len(got) != 1 {
		t.Errorf("remaining member received %d user-left-room, want exactly 1", len(got))
	}

	env.send("conn-2", u2, "get-online-users", nil)
	lists := s2.byType("online-users")
	if len(lists) != 1 {
		t.Fatalf("requester received %d online-users, want 1", len(lists))
	}
	var users []identity.Identity
	if err := json.Unmarshal(lists[0].Payload, &users); err != nil {
		t.Fatalf("failed to decode online-users payload: %v", err)
	}
	for _, user := range users {
		if user.ID == "u1" {
			t.Error("online-users should not include the disconnected identity")
		}
	}
}

func TestDispatch_HelloEchoes(t *testing.T) {
	env := newTestEnv()
	u1, s1 := env.connect("conn-1", "u1")

	env.send("conn-1", u1, "hello", "hi there")

	replies := s1.byType("hello")
	if len(replies) != 1 {
		t.Fatalf("sender received %d hello replies, want 1", len(replies))
	}
	var reply HelloReply
	if err := json.Unmarshal(replies[0].Payload, &reply); err != nil {
		t.Fatalf("failed to decode hello payload: %v", err)
	}
	if reply.User.ID != "u1" {
		t.Errorf("hello reply user = %+v, want u1", reply.User)
	}
}
