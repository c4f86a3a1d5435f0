// Package events distributes resource lifecycle events to in-process
// subscribers. Publishing is fire-and-forget: the dispatch path never
// blocks on a slow subscriber, and events are dropped when the queue is
// saturated.
package events

import (
	"log/slog"
	"sync"

	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/resource"
)

// Type names a lifecycle event.
type Type string

const (
	ResourceCreated Type = "resourceCreated"
	ResourceDeleted Type = "resourceDeleted"
)

// Event carries a lifecycle notification.
type Event struct {
	Type     Type
	Resource *resource.Resource
}

// Handler consumes events. Handlers run on the bus goroutine and should
// hand off long work themselves.
type Handler func(Event)

// Bus is a buffered, single-goroutine event fan-out.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	ch       chan Event
	done     chan struct{}
	log      *slog.Logger
	once     sync.Once
}

// NewBus creates and starts an event bus with the given queue size.
func NewBus(queueSize int, log *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = logging.Nop()
	}
	b := &Bus{
		ch:   make(chan Event, queueSize),
		done: make(chan struct{}),
		log:  log,
	}
	go b.run()
	return b
}

// Subscribe registers a handler for all events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// ResourceCreatedEvent publishes a creation event.
func (b *Bus) ResourceCreatedEvent(r *resource.Resource) {
	b.publish(Event{Type: ResourceCreated, Resource: r})
}

// ResourceDeletedEvent publishes a deletion event.
func (b *Bus) ResourceDeletedEvent(r *resource.Resource) {
	b.publish(Event{Type: ResourceDeleted, Resource: r})
}

func (b *Bus) publish(ev Event) {
	select {
	case b.ch <- ev:
	case <-b.done:
	default:
		b.log.Warn("event queue full, dropping event", "type", string(ev.Type))
	}
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.ch:
			b.mu.RLock()
			handlers := b.handlers
			b.mu.RUnlock()
			for _, h := range handlers {
				h(ev)
			}
		case <-b.done:
			return
		}
	}
}

// Close stops the bus. Pending queued events are discarded.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
