package gateway

import (
	"sync"
	"time"
)

// EventKind names what happened in the engine.
type EventKind string

const (
	EventConnected   EventKind = "connected"
	EventRX          EventKind = "rx"        // valid frame decoded
	EventDropped     EventKind = "dropped"   // frame discarded
	EventForwarded   EventKind = "forwarded" // payload written to APRS-IS
	EventStatus      EventKind = "status"
	EventPosition    EventKind = "position"
	EventReconnect   EventKind = "reconnect"
	EventFatal       EventKind = "fatal"
	EventConfigError EventKind = "config-error"
)

type Event struct {
	Kind EventKind
	Time time.Time
	Line string
	Err  error
}

// Observer receives engine events. Observe is called on the engine's
// goroutines and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Hub fans events out to every registered observer.
type Hub struct {
	mu        sync.RWMutex
	observers []Observer
	now       func() time.Time
}

func NewHub(observers ...Observer) *Hub {
	return &Hub{observers: observers, now: time.Now}
}

func (h *Hub) Add(o Observer) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

func (h *Hub) Observe(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, o := range h.observers {
		o.Observe(ev)
	}
}

// ChanObserver buffers events for a consumer on another goroutine. Events
// are dropped when the buffer is full.
type ChanObserver struct {
	ch chan Event
}

func NewChanObserver(size int) *ChanObserver {
	return &ChanObserver{ch: make(chan Event, size)}
}

func (c *ChanObserver) Observe(ev Event) {
	select {
	case c.ch <- ev:
	default:
	}
}

func (c *ChanObserver) C() <-chan Event {
	return c.ch
}

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
