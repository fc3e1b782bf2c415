package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"ledger/internal/core"
)

// ActivityMessage carries one audit entry from the query front ends to the
// worker that persists it.
type ActivityMessage struct {
	Username  string    `json:"username"`
	Type      string    `json:"type"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewActivityMessage wraps a; a zero timestamp is replaced with now.
func NewActivityMessage(a core.Activity) *ActivityMessage {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ActivityMessage{
		Username:  a.Username,
		Type:      a.Type,
		Details:   a.Details,
		Timestamp: ts,
	}
}

// Activity converts the message back to the domain type.
func (m *ActivityMessage) Activity() core.Activity {
	return core.Activity{
		Username:  m.Username,
		Type:      m.Type,
		Details:   m.Details,
		Timestamp: m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ActivityMessageFromJSON decodes a message. Username and type are required.
func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var msg ActivityMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Username == "" || msg.Type == "" {
		return nil, errors.New("activity message missing username or type")
	}
	return &msg, nil
}
