package realtime

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-s.Events():
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case e := <-s.Events():
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestFilter_Matches(t *testing.T) {
	f := Filter{Table: "permissoes", Column: "usuario_id", Value: "u-1"}

	assert.True(t, f.Matches(Event{Type: EventUpdate, Table: "permissoes", New: records.Record{"usuario_id": "u-1"}}))
	assert.True(t, f.Matches(Event{Type: EventDelete, Table: "permissoes", Old: records.Record{"usuario_id": "u-1"}}))
	assert.False(t, f.Matches(Event{Type: EventUpdate, Table: "permissoes", New: records.Record{"usuario_id": "u-2"}}))
	assert.False(t, f.Matches(Event{Type: EventUpdate, Table: "clientes", New: records.Record{"usuario_id": "u-1"}}))
	assert.False(t, f.Matches(Event{Type: EventDelete, Table: "permissoes"}))
	assert.True(t, Filter{}.Matches(Event{Table: "x"}))
}

func TestHub_FansOutByFilter(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(Filter{Table: "permissoes", Column: "usuario_id", Value: "a"})
	b := h.Subscribe(Filter{Table: "permissoes", Column: "usuario_id", Value: "b"})
	defer a.Close()
	defer b.Close()

	h.Publish(Event{Type: EventInsert, Table: "permissoes", New: records.Record{"usuario_id": "a"}})

	got := recv(t, a)
	assert.Equal(t, EventInsert, got.Type)
	assertNoEvent(t, b)
}

func TestHub_SlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(Filter{})
	defer s.Close()

	for i := 0; i < defaultBuffer+5; i++ {
		h.Publish(Event{Type: EventUpdate, New: records.Record{"n": float64(i)}})
	}

	var last Event
	for i := 0; i < defaultBuffer; i++ {
		last = recv(t, s)
	}
	assert.Equal(t, float64(defaultBuffer+4), last.New["n"])
	assertNoEvent(t, s)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(Filter{})
	require.Equal(t, 1, h.Len())

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Len())

	_, ok := <-s.Events()
	assert.False(t, ok)

	h.Publish(Event{Type: EventUpdate})
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(Filter{})
	h.CloseAll()

	_, ok := <-s.Events()
	assert.False(t, ok)
	s.Close()
	assert.Equal(t, 0, h.Len())
}
