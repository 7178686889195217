package feed

import (
	"context"
	"sync"

	"github.com/arnavshah/ionm-board/pkg/models"
)

// Handlers receives change notifications for the staff collection.
// Nil callbacks are skipped.
type Handlers struct {
	OnInsert func(models.StaffRecord)
	OnUpdate func(models.StaffRecord)
	OnDelete func(models.StaffRecord)
}

// Dispatch routes an event to the matching callback
func (h Handlers) Dispatch(ev models.ChangeEvent) {
	switch ev.Type {
	case models.ChangeInsert:
		if h.OnInsert != nil && ev.New != nil {
			h.OnInsert(*ev.New)
		}
	case models.ChangeUpdate:
		if h.OnUpdate != nil && ev.New != nil {
			h.OnUpdate(*ev.New)
		}
	case models.ChangeDelete:
		if h.OnDelete != nil && ev.Old != nil {
			h.OnDelete(*ev.Old)
		}
	}
}

// Subscription is the handle returned by Subscribe
type Subscription interface {
	Unsubscribe() error
}

// Broker carries change events from the store to subscribers
type Broker interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Subscribe(h Handlers) (Subscription, error)
	Close() error
}

// Hub is an in-process Broker. Publish calls every handler synchronously,
// so handlers must not block.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Handlers
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]Handlers)}
}

// Publish delivers the event to all current subscribers
func (h *Hub) Publish(_ context.Context, ev models.ChangeEvent) error {
	h.mu.RLock()
	handlers := make([]Handlers, 0, len(h.subs))
	for _, s := range h.subs {
		handlers = append(handlers, s)
	}
	h.mu.RUnlock()

	for _, s := range handlers {
		s.Dispatch(ev)
	}
	return nil
}

// Subscribe registers handlers until the returned subscription is cancelled
func (h *Hub) Subscribe(handlers Handlers) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[id] = handlers
	return &hubSubscription{hub: h, id: id}, nil
}

// Len returns the number of active subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription
func (h *Hub) Close() error {
	h.mu.Lock()
	h.subs = make(map[uint64]Handlers)
	h.mu.Unlock()
	return nil
}

type hubSubscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

func (s *hubSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
