// Package tabsync tells every other execution context about record mutations so each
// can refresh its view. Delivery is best effort: no ordering, no acknowledgement.
package tabsync

import (
	"context"
	"encoding/json"
	"time"
)

// MessageType is the only message type exchanged today.
const MessageType = "storage-update"

// DefaultNamespace scopes pub/sub traffic so unrelated applications never collide.
const DefaultNamespace = "fitflow-sync"

// Message is the wire form of one update.
type Message struct {
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"` // "null" when the record was removed
	Timestamp int64           `json:"timestamp"`
	Origin    string          `json:"origin,omitempty"` // empty for native storage events
}

// NewMessage encodes value into an update for key. A nil value encodes as null.
func NewMessage(origin, key string, value any, now time.Time) (Message, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      MessageType,
		Key:       key,
		Value:     raw,
		Timestamp: now.UnixMilli(),
		Origin:    origin,
	}, nil
}

// Removed reports whether the message announces a deleted record.
func (m Message) Removed() bool {
	return len(m.Value) == 0 || string(m.Value) == "null"
}

// Notifier is one transport for updates. A Channel may combine several.
type Notifier interface {
	// Name identifies the transport in logs.
	Name() string

	// Publish sends msg to every other subscriber of the transport.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers fn for incoming messages. fn must not block.
	Subscribe(ctx context.Context, fn func(Message)) (cancel func(), err error)

	// Close releases the transport.
	Close() error
}
