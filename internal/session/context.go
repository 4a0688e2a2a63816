package session

import (
	"context"
	"sync"
	"time"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/infrastructure/logging"
)

const defaultLookupTimeout = 5 * time.Second

// Snapshot is the session's current view. Role is empty when no profile
// lookup has succeeded for the account; Ready is true once the first
// resolution (signed in or not) has completed.
type Snapshot struct {
	Account *identity.Identity
	Role    directory.Role
	Ready   bool
}

// SignedIn reports whether a household member is present.
func (s Snapshot) SignedIn() bool {
	return s.Account != nil
}

// Context is the injectable session state holder. Lifecycle: New →
// Start (subscribes to identity events) → Close (unsubscribes).
type Context struct {
	provider identity.Provider
	dir      directory.Repository
	log      *logging.Logger
	timeout  time.Duration

	mu         sync.Mutex
	account    *identity.Identity
	role       directory.Role
	ready      bool
	appliedSeq uint64
	started    bool
	unsub      identity.Unsubscribe
}

// New creates a session context. lookupTimeout bounds each directory
// lookup; zero means 5s.
func New(provider identity.Provider, dir directory.Repository, log *logging.Logger, lookupTimeout time.Duration) *Context {
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	if log == nil {
		log = logging.Default()
	}
	return &Context{
		provider: provider,
		dir:      dir,
		log:      log,
		timeout:  lookupTimeout,
	}
}

// Start subscribes to identity events. The provider delivers the current
// state immediately, so the session is Ready before Start returns.
// Starting twice is a no-op.
func (c *Context) Start(_ context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.unsub = c.provider.Subscribe(c.handleEvent)
	return nil
}

// Close unsubscribes from identity events. Idempotent.
func (c *Context) Close() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.started = false
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Snapshot returns the current session view.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Account: c.account, Role: c.role, Ready: c.ready}
}

// handleEvent resolves one identity change. Events may arrive from
// concurrent entry paths; application is last-write-wins by event
// sequence, so a slow lookup for an old event can never clobber a newer
// state.
func (c *Context) handleEvent(ev identity.Event) {
	if ev.Identity == nil {
		c.apply(ev.Seq, nil, "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	account, err := c.dir.Get(ctx, ev.Identity.AccountID)
	switch {
	case err == nil:
		c.apply(ev.Seq, ev.Identity, account.Role)

	case directory.IsNotFound(err):
		// No profile: the session is cleared rather than left half-populated.
		c.log.Info("no directory profile for signed-in identity; clearing session",
			"account_id", ev.Identity.AccountID)
		c.apply(ev.Seq, nil, "")

	default:
		// Soft-fail: keep the identity, drop the role, stay available.
		c.log.Warn("session profile lookup failed",
			"account_id", ev.Identity.AccountID, "degraded", true, "error", err)
		c.apply(ev.Seq, ev.Identity, "")
	}
}

// apply installs a resolved state unless a newer event has already been
// applied. Re-applying the same event is harmless.
func (c *Context) apply(seq uint64, account *identity.Identity, role directory.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready && seq < c.appliedSeq {
		return
	}
	c.appliedSeq = seq
	c.account = account
	c.role = role
	c.ready = true
}
