package session

import (
	"context"
	"sync"

	"github.com/kevinye7/PokeHub/internal/auth"
	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"go.uber.org/zap"
)

// Source is the part of the identity service the tracker observes.
type Source interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
	Subscribe(fn func(auth.Event)) (unsubscribe func())
}

// Change describes one transition of the tracked identity.
type Change struct {
	Event    auth.EventType
	Previous *models.Identity
	Current  *models.Identity
}

// IdentityAvailable reports whether an identity became present, or was
// replaced by a different one, in this change.
func (c Change) IdentityAvailable() bool {
	if c.Current == nil {
		return false
	}
	return c.Previous == nil || c.Previous.ID != c.Current.ID
}

// Tracker holds the current identity, readable synchronously and
// observable through Subscribe.
type Tracker struct {
	source Source
	logger *zap.Logger

	mu          sync.RWMutex
	session     *auth.Session
	version     uint64 // bumped by every applied event
	unsubscribe func()
	changes     utils.Broadcaster[Change]
}

func NewTracker(source Source, logger *zap.Logger) *Tracker {
	return &Tracker{
		source: source,
		logger: utils.OrNop(logger),
	}
}

// Start subscribes to session events and performs the single initial
// session read. A failed read leaves the tracker anonymous. Start is not
// safe to call twice without Close.
func (t *Tracker) Start(ctx context.Context) {
	unsubscribe := t.source.Subscribe(t.handle)
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	startVersion := t.version
	t.mu.Unlock()

	session, err := t.source.CurrentSession(ctx)
	if err != nil {
		t.logger.Warn("initial session read failed, continuing anonymous", zap.Error(err))
		session = nil
	}

	t.mu.Lock()
	if t.version != startVersion {
		// an event arrived during the read and is newer
		t.mu.Unlock()
		return
	}
	previous := identityOf(t.session)
	t.session = session
	t.version++
	t.mu.Unlock()

	t.changes.Publish(Change{
		Event:    auth.EventInitialSession,
		Previous: previous,
		Current:  identityOf(session),
	})
}

// Close drops the identity service subscription.
func (t *Tracker) Close() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns the signed-in identity or nil.
func (t *Tracker) Current() *models.Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return identityOf(t.session)
}

// Session returns a copy of the current session or nil.
func (t *Tracker) Session() *auth.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.session == nil {
		return nil
	}
	copied := *t.session
	return &copied
}

// Subscribe registers fn for every later change.
func (t *Tracker) Subscribe(fn func(Change)) func() {
	return t.changes.Subscribe(fn)
}

func (t *Tracker) handle(event auth.Event) {
	t.mu.Lock()
	previous := identityOf(t.session)
	switch event.Type {
	case auth.EventSignedIn, auth.EventTokenRefreshed, auth.EventInitialSession:
		if event.Session == nil {
			t.mu.Unlock()
			return
		}
		copied := *event.Session
		t.session = &copied
	case auth.EventSignedOut:
		t.session = nil
	default:
		t.mu.Unlock()
		t.logger.Debug("ignoring session event", zap.String("event", string(event.Type)))
		return
	}
	t.version++
	current := identityOf(t.session)
	t.mu.Unlock()

	t.logger.Debug("session changed", zap.String("event", string(event.Type)))
	t.changes.Publish(Change{Event: event.Type, Previous: previous, Current: current})
}

func identityOf(session *auth.Session) *models.Identity {
	if session == nil {
		return nil
	}
	identity := session.Identity
	return &identity
}
