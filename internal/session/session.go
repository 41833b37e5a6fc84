// Package session carries the identity of whoever performs an operation.
// It is passed explicitly to every service call instead of living in a
// process-wide singleton.
package session

import "context"

// Context describes the actor of one request. The zero value is an
// anonymous/system actor.
type Context struct {
	ActorID   string
	IP        string
	UserAgent string
}

// Anonymous reports whether no actor is attached.
func (c Context) Anonymous() bool {
	return c.ActorID == ""
}

// System is the session used by background jobs.
func System() Context {
	return Context{UserAgent: "varejo-server"}
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Context, bool) {
	s, ok := ctx.Value(ctxKey{}).(Context)
	return s, ok
}
