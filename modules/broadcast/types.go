package broadcast

import (
	"time"

	"github.com/example/socket-playground-demo/domain/identity"
)

// NewMessagePayload is pushed to room members for every stored message.
type NewMessagePayload struct {
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CounterUpdatedPayload is the full-state counter sync pushed to all
// connections after every mutation.
type CounterUpdatedPayload struct {
	Count     int64             `json:"count"`
	UpdatedBy identity.Identity `json:"updatedBy"`
}

// UserDisconnectedPayload notifies remaining connections of a departure.
type UserDisconnectedPayload struct {
	UserID     string    `json:"userId"`
	TotalUsers int       `json:"totalUsers"`
	Timestamp  time.Time `json:"timestamp"`
}
