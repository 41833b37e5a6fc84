package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PermissionsChannel is the NOTIFY channel of the permissoes trigger.
const PermissionsChannel = "permissoes_changes"

// notificationConn is the part of *pgx.Conn the listener uses.
type notificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener holds a dedicated connection in LISTEN mode and publishes every
// notification to the hub. It reconnects after connection failures.
type Listener struct {
	connect    func(ctx context.Context) (notificationConn, error)
	channel    string
	hub        *Hub
	logger     logging.Logger
	retryDelay time.Duration
}

func NewListener(dsn string, channel string, hub *Hub, logger logging.Logger) *Listener {
	return &Listener{
		connect: func(ctx context.Context) (notificationConn, error) {
			return pgx.Connect(ctx, dsn)
		},
		channel:    channel,
		hub:        hub,
		logger:     logger.With("module", "realtime"),
		retryDelay: 2 * time.Second,
	}
}

// Run blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn(ctx, "listener disconnected", "channel", l.channel, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info(ctx, "listening", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, err := DecodeEvent(n.Payload)
		if err != nil {
			l.logger.Warn(ctx, "bad notification payload", "channel", n.Channel, "error", err)
			continue
		}
		l.hub.Publish(e)
	}
}

// DecodeEvent parses a trigger payload.
func DecodeEvent(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, errors.New("missing eventType")
	}
	return e, nil
}
