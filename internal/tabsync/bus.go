package tabsync

import (
	"context"
	"sync"
)

// Bus is an in-process broker shared by every Channel of one process.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]func(Message)
	nextID int
}

// NewBus creates an empty broker.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(Message))}
}

func (b *Bus) subscribe(namespace string, fn func(Message)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[namespace] == nil {
		b.subs[namespace] = make(map[int]func(Message))
	}
	id := b.nextID
	b.nextID++
	b.subs[namespace][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[namespace], id)
			if len(b.subs[namespace]) == 0 {
				delete(b.subs, namespace)
			}
		})
	}
}

func (b *Bus) publish(namespace string, msg Message) {
	b.mu.RLock()
	fns := make([]func(Message), 0, len(b.subs[namespace]))
	for _, fn := range b.subs[namespace] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(msg)
	}
}

// BusNotifier publishes over a Bus under one namespace.
type BusNotifier struct {
	bus       *Bus
	namespace string

	mu      sync.Mutex
	cancels []func()
}

// NewBusNotifier attaches to bus. An empty namespace uses DefaultNamespace.
func NewBusNotifier(bus *Bus, namespace string) *BusNotifier {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &BusNotifier{bus: bus, namespace: namespace}
}

func (n *BusNotifier) Name() string { return "bus" }

func (n *BusNotifier) Publish(_ context.Context, msg Message) error {
	n.bus.publish(n.namespace, msg)
	return nil
}

func (n *BusNotifier) Subscribe(_ context.Context, fn func(Message)) (func(), error) {
	cancel := n.bus.subscribe(n.namespace, fn)
	n.mu.Lock()
	n.cancels = append(n.cancels, cancel)
	n.mu.Unlock()
	return cancel, nil
}

// Close drops every subscription made through this notifier.
func (n *BusNotifier) Close() error {
	n.mu.Lock()
	cancels := n.cancels
	n.cancels = nil
	n.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return nil
}
