// Package realtime turns Postgres change notifications into per-subscriber
// event streams filtered by a column predicate.
package realtime

import (
	"sync"

	"github.com/dmitrijs2005/varejo/internal/records"
)

// Event types as reported by the notify triggers.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one row change.
type Event struct {
	Type  string         `json:"eventType"`
	Table string         `json:"table"`
	New   records.Record `json:"new"`
	Old   records.Record `json:"old"`
}

// Row returns the new image, or the old one for deletes.
func (e Event) Row() records.Record {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Filter selects events of Table whose Column equals Value. Empty fields
// match anything.
type Filter struct {
	Table  string
	Column string
	Value  string
}

func (f Filter) Matches(e Event) bool {
	if f.Table != "" && f.Table != e.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	row := e.Row()
	if row == nil {
		return false
	}
	return records.KeyString(row[f.Column]) == f.Value
}

const defaultBuffer = 16

// Hub fans published events out to matching subscriptions.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscription. Callers must Close it.
func (h *Hub) Subscribe(f Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		id:     h.nextID,
		hub:    h,
		filter: f,
		ch:     make(chan Event, defaultBuffer),
	}
	h.subs[s.id] = s
	return s
}

// Publish delivers e to every matching subscription without blocking. A
// subscriber that fell behind loses its oldest pending event.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.subs {
		if !s.filter.Matches(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			select {
			case <-s.ch:
			default:
			}
			s.ch <- e
		}
	}
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// CloseAll closes every subscription, ending their event streams.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
}

// Subscription is a handle on a filtered event stream.
type Subscription struct {
	id     uint64
	hub    *Hub
	filter Filter
	ch     chan Event
	once   sync.Once
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}
