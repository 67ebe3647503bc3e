package tabsync

import (
	"alcyxob/fitflow/internal/storage"
	"context"
	"encoding/json"
	"time"
)

// redactedValue replaces the value of sensitive keys delivered by storage events.
var redactedValue = json.RawMessage(`"[redacted]"`)

// StorageEventNotifier is the fallback transport: the storage backend itself reports
// mutations made by any context sharing it. Publish does nothing because the write
// already produced the event. Writes tagged with storage.WithWriter carry the writer
// as the message origin, so the writing channel drops its own events.
type StorageEventNotifier struct {
	watcher storage.Watcher
	redact  map[string]bool
	now     func() time.Time
}

// NewStorageEventNotifier adapts w. Values of redactKeys are never forwarded.
func NewStorageEventNotifier(w storage.Watcher, redactKeys ...string) *StorageEventNotifier {
	redact := make(map[string]bool, len(redactKeys))
	for _, k := range redactKeys {
		redact[k] = true
	}
	return &StorageEventNotifier{watcher: w, redact: redact, now: time.Now}
}

func (n *StorageEventNotifier) Name() string { return "storage-event" }

func (n *StorageEventNotifier) Publish(context.Context, Message) error { return nil }

func (n *StorageEventNotifier) Subscribe(_ context.Context, fn func(Message)) (func(), error) {
	return n.watcher.Watch(func(ev storage.Event) {
		msg := Message{
			Type:      MessageType,
			Key:       ev.Key,
			Value:     json.RawMessage("null"),
			Timestamp: n.now().UnixMilli(),
			Origin:    ev.Writer,
		}
		if !ev.Removed && len(ev.Value) > 0 {
			switch {
			case n.redact[ev.Key]:
				msg.Value = redactedValue
			case json.Valid(ev.Value):
				msg.Value = json.RawMessage(ev.Value)
			default:
				// Record text that is not JSON is forwarded as a string.
				raw, _ := json.Marshal(string(ev.Value))
				msg.Value = raw
			}
		}
		fn(msg)
	})
}

// Close is a no-op; the backend owns the watch resources and cancel releases them.
func (n *StorageEventNotifier) Close() error { return nil }
