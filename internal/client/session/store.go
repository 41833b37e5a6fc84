// Package session keeps the CLI's login state: the token pair on disk, the
// actor's permission map in memory and the watch that keeps that map in
// step with the server.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/varejo/internal/client/client"
	"github.com/dmitrijs2005/varejo/internal/filex"
	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/permissions"
)

// FileName is the session file inside the session directory.
const FileName = "session.json"

// ErrNotLoggedIn is returned when no saved session exists.
var ErrNotLoggedIn = errors.New("not logged in")

type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unauthenticated"
	}
}

// saved is the on-disk shape of a session.
type saved struct {
	ActorID string        `json:"usuario_id"`
	Email   string        `json:"email"`
	Tokens  client.Tokens `json:"tokens"`
}

type Store struct {
	client client.Client
	dir    string
	retry  time.Duration
	logger logging.Logger

	mu      sync.RWMutex
	state   State
	actorID string
	email   string
	perms   permissions.Map

	onChange func(permissions.Map)

	watchMu     sync.Mutex
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewStore returns an unauthenticated store persisting into dir. retry is the
// pause before a broken permission watch is reopened.
func NewStore(c client.Client, dir string, retry time.Duration, l logging.Logger) *Store {
	return &Store{
		client: c,
		dir:    dir,
		retry:  retry,
		logger: l.With("module", "session"),
		perms:  permissions.Defaults(),
	}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) ActorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorID
}

func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Permissions returns a copy of the current map.
func (s *Store) Permissions() permissions.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perms.Clone()
}

// Can reports whether the logged-in actor holds flag in section. It is
// false for everything until the store is ready.
func (s *Store) Can(section, flag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return false
	}
	return s.perms.Can(section, flag)
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Login exchanges credentials for tokens, loads the permission map and
// persists the session.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.setState(StateLoading)

	actorID, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.setState(StateUnauthenticated)
		return err
	}

	if err := s.load(ctx, actorID, email); err != nil {
		s.reset()
		return err
	}

	return s.Save()
}

// Restore reads the saved session and reloads the permission map. A session
// the server no longer accepts is wiped.
func (s *Store) Restore(ctx context.Context) error {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("read session: %w", err)
	}

	var sv saved
	if err := json.Unmarshal(b, &sv); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if sv.Tokens.AccessToken == "" {
		return ErrNotLoggedIn
	}

	s.setState(StateLoading)
	s.client.SetTokens(sv.Tokens)

	if err := s.load(ctx, sv.ActorID, sv.Email); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = s.Logout()
			return ErrNotLoggedIn
		}
		s.setState(StateUnauthenticated)
		return err
	}

	// the interceptor may have rotated the tokens while loading
	return s.Save()
}

func (s *Store) load(ctx context.Context, actorID, email string) error {
	m, err := s.client.GetPermissions(ctx, "")
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}

	s.mu.Lock()
	s.actorID = actorID
	s.email = email
	s.perms = permissions.Merge(m)
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// Save writes the current token pair to the session file.
func (s *Store) Save() error {
	if _, err := filex.EnsureDir(s.dir); err != nil {
		return err
	}

	s.mu.RLock()
	sv := saved{ActorID: s.actorID, Email: s.email, Tokens: s.client.Tokens()}
	s.mu.RUnlock()

	b, err := json.MarshalIndent(sv, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(s.path(), b, 0o600)
}

func (s *Store) reset() {
	s.mu.Lock()
	s.state = StateUnauthenticated
	s.actorID = ""
	s.email = ""
	s.perms = permissions.Defaults()
	s.mu.Unlock()
	s.client.SetTokens(client.Tokens{})
}

// Logout stops the watch, forgets the tokens and removes the session file.
func (s *Store) Logout() error {
	s.StopWatch()
	s.reset()
	return filex.RemoveIfExists(s.path())
}

// Apply folds one permission event into the map. Inserts and updates
// replace it (merged over the defaults); a delete resets it to all-false.
func (s *Store) Apply(e client.PermissionEvent) {
	s.mu.Lock()
	switch strings.ToUpper(e.Type) {
	case "INSERT", "UPDATE":
		s.perms = permissions.Merge(permissions.FromRow(e.New))
	case "DELETE":
		s.perms = permissions.Defaults()
	default:
		s.mu.Unlock()
		return
	}
	current, fn := s.perms.Clone(), s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(current)
	}
}

// OnChange registers fn to be called with the new map after every applied
// event.
func (s *Store) OnChange(fn func(permissions.Map)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// StartWatch keeps the permission map in step with the server until ctx is
// done or StopWatch is called. A broken stream is reopened after the retry
// interval; an Unauthenticated answer logs the session out.
func (s *Store) StartWatch(ctx context.Context) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.cancelWatch != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancelWatch = cancel
	s.watchDone = done

	go func() {
		defer close(done)
		s.watchLoop(ctx)

		// a watch that ended on its own must not block the next StartWatch
		s.watchMu.Lock()
		if s.watchDone == done {
			s.cancelWatch, s.watchDone = nil, nil
		}
		s.watchMu.Unlock()
		cancel()
	}()
}

// StopWatch cancels the watch task and waits for it to exit.
func (s *Store) StopWatch() {
	s.watchMu.Lock()
	cancel, done := s.cancelWatch, s.watchDone
	s.cancelWatch, s.watchDone = nil, nil
	s.watchMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// WaitWatch blocks until the watch task exits or ctx is done.
func (s *Store) WaitWatch(ctx context.Context) {
	s.watchMu.Lock()
	done := s.watchDone
	s.watchMu.Unlock()

	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Store) watchLoop(ctx context.Context) {
	for {
		err := s.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, client.ErrUnauthorized) {
			s.logger.Warn(ctx, "session rejected by server, logging out")
			s.reset()
			if err := filex.RemoveIfExists(s.path()); err != nil {
				s.logger.Error(ctx, "remove session file", "error", err)
			}
			return
		}
		s.logger.Warn(ctx, "permission watch broken", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry):
		}
	}
}

func (s *Store) watchOnce(ctx context.Context) error {
	w, err := s.client.WatchPermissions(ctx)
	if err != nil {
		return err
	}
	for {
		e, err := w.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("watch closed by server")
			}
			return err
		}
		s.Apply(e)
		s.logger.Debug(ctx, "permissions updated", "event", e.Type)
	}
}
