package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	execs    []string
	payloads chan string
	closed   bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	return pgconn.NewCommandTag("LISTEN"), nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p, ok := <-c.payloads:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return &pgconn.Notification{Channel: PermissionsChannel, Payload: p}, nil
	}
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestDecodeEvent(t *testing.T) {
	e, err := DecodeEvent(`{"eventType":"UPDATE","table":"permissoes","new":{"usuario_id":"u-1","permissoes":{}},"old":{"usuario_id":"u-1"}}`)
	require.NoError(t, err)
	assert.Equal(t, EventUpdate, e.Type)
	assert.Equal(t, "u-1", e.New["usuario_id"])

	_, err = DecodeEvent(`{"table":"permissoes"}`)
	require.Error(t, err)
	_, err = DecodeEvent(`not json`)
	require.Error(t, err)
}

func TestListener_PublishesAndReconnects(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Filter{Table: "permissoes", Column: "usuario_id", Value: "u-1"})
	defer sub.Close()

	first := &fakeConn{payloads: make(chan string, 2)}
	second := &fakeConn{payloads: make(chan string, 2)}
	conns := []*fakeConn{first, second}

	var mu sync.Mutex
	dials := 0
	l := NewListener("ignored", PermissionsChannel, hub, logging.NewNop())
	l.retryDelay = time.Millisecond
	l.connect = func(ctx context.Context) (notificationConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if dials >= len(conns) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		c := conns[dials]
		dials++
		return c, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	first.payloads <- `garbage`
	first.payloads <- `{"eventType":"INSERT","table":"permissoes","new":{"usuario_id":"u-1"}}`
	assert.Equal(t, EventInsert, recv(t, sub).Type)

	close(first.payloads)
	second.payloads <- `{"eventType":"DELETE","table":"permissoes","old":{"usuario_id":"u-1"}}`
	assert.Equal(t, EventDelete, recv(t, sub).Type)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}

	first.mu.Lock()
	assert.Equal(t, []string{`LISTEN "permissoes_changes"`}, first.execs)
	assert.True(t, first.closed)
	first.mu.Unlock()
}
