package tabsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	inboxSize      = 64
	publishTimeout = 5 * time.Second
)

// UpdateFunc receives the key and new value (JSON, "null" when removed) of a record
// changed by another context.
type UpdateFunc func(key string, value json.RawMessage)

// Channel is one context's handle on the sync transports. It fans every local
// broadcast out to all notifiers and fans incoming messages in to its listeners.
type Channel struct {
	origin    string
	logger    *zap.Logger
	notifiers []Notifier
	cancels   []func()

	ctx    context.Context
	cancel context.CancelFunc

	inbox  chan Message
	doneCh chan struct{}
	wg     sync.WaitGroup // in-flight publishes

	mu        sync.RWMutex
	listeners map[int]UpdateFunc
	nextID    int
	closed    bool

	closeOnce sync.Once
}

// Open subscribes to every notifier and starts dispatching. A notifier that cannot
// subscribe is logged and skipped; the channel still works over the others.
func Open(ctx context.Context, logger *zap.Logger, notifiers ...Notifier) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Channel{
		origin:    uuid.NewString(),
		logger:    logger,
		ctx:       base,
		cancel:    cancel,
		inbox:     make(chan Message, inboxSize),
		doneCh:    make(chan struct{}),
		listeners: make(map[int]UpdateFunc),
	}
	c.logger = logger.With(zap.String("origin", c.origin))

	for _, n := range notifiers {
		stop, err := n.Subscribe(ctx, c.receive)
		if err != nil {
			c.logger.Warn("sync transport unavailable", zap.String("transport", n.Name()), zap.Error(err))
			_ = n.Close()
			continue
		}
		c.notifiers = append(c.notifiers, n)
		c.cancels = append(c.cancels, stop)
	}

	go c.dispatch()
	return c
}

// Origin identifies this channel in outgoing messages.
func (c *Channel) Origin() string { return c.origin }

// Transports lists the notifiers that subscribed successfully.
func (c *Channel) Transports() []string {
	names := make([]string, len(c.notifiers))
	for i, n := range c.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Broadcast announces a mutation to every transport. It never blocks on peers and
// never fails; errors are only logged.
func (c *Channel) Broadcast(key string, value any) {
	c.mu.RLock()
	closed := c.closed
	if !closed {
		c.wg.Add(1)
	}
	c.mu.RUnlock()
	if closed {
		return
	}

	msg, err := NewMessage(c.origin, key, value, time.Now())
	if err != nil {
		c.wg.Done()
		c.logger.Error("failed to encode sync message", zap.String("key", key), zap.Error(err))
		return
	}

	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(c.ctx, publishTimeout)
		defer cancel()
		for _, n := range c.notifiers {
			if err := n.Publish(ctx, msg); err != nil {
				c.logger.Warn("sync publish failed",
					zap.String("transport", n.Name()), zap.String("key", key), zap.Error(err))
			}
		}
	}()
}

// OnUpdate registers fn for updates from other contexts. The returned function
// deregisters it; calling it more than once is harmless.
func (c *Channel) OnUpdate(fn UpdateFunc) (dispose func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Close stops every subscription and waits for in-flight work. Safe to call twice.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.wg.Wait()
		c.cancel()
		for _, stop := range c.cancels {
			stop()
		}
		for _, n := range c.notifiers {
			if err := n.Close(); err != nil {
				c.logger.Warn("failed to close sync transport", zap.String("transport", n.Name()), zap.Error(err))
			}
		}
		close(c.inbox)
		<-c.doneCh
	})
	return nil
}

// receive is called by transports, possibly from their own goroutines.
func (c *Channel) receive(msg Message) {
	if msg.Origin != "" && msg.Origin == c.origin {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.inbox <- msg:
	default:
		c.logger.Warn("sync inbox full, dropping update", zap.String("key", msg.Key))
	}
}

func (c *Channel) dispatch() {
	defer close(c.doneCh)
	for msg := range c.inbox {
		c.mu.RLock()
		fns := make([]UpdateFunc, 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.RUnlock()

		for _, fn := range fns {
			fn(msg.Key, msg.Value)
		}
	}
}
