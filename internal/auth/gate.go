package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"login-gate/internal/session"
)

const (
	DefaultSessionTTL = 24 * time.Hour

	// maxMintAttempts bounds retries when a fresh token collides with a
	// stored one. With 256-bit tokens a second attempt is already unheard of.
	maxMintAttempts = 3
)

// State is the lifecycle position of a session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Gate authenticates credentials, mints and tracks sessions, and answers
// whether a session token resolves to a live identity.
//
// A Gate holds no mutable state of its own; all of it lives in the
// session.Store, so it is safe for concurrent use.
type Gate struct {
	store    session.Store
	verifier CredentialVerifier
	loader   IdentityLoader

	ttl  time.Duration
	idle time.Duration
	now  func() time.Time
}

type Option func(*Gate)

// WithSessionTTL sets the absolute session lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithIdleTimeout terminates sessions that have not been used for d.
// Zero disables the idle check.
func WithIdleTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.idle = d
		}
	}
}

// WithIdentityLoader replaces the default StaticLoader.
func WithIdentityLoader(l IdentityLoader) Option {
	return func(g *Gate) {
		if l != nil {
			g.loader = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGate(store session.Store, verifier CredentialVerifier, opts ...Option) *Gate {
	g := &Gate{
		store:    store,
		verifier: verifier,
		loader:   StaticLoader{},
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SessionTTL returns the absolute session lifetime.
func (g *Gate) SessionTTL() time.Duration {
	return g.ttl
}

// Authenticate checks cred with the configured verifier.
func (g *Gate) Authenticate(ctx context.Context, cred Credential) (Identity, error) {
	if cred.Identifier == "" || cred.Secret == "" {
		return Identity{}, ErrInvalidCredential
	}

	id, err := g.verifier.Verify(ctx, cred)
	if errors.Is(err, ErrInvalidCredential) {
		return Identity{}, ErrInvalidCredential
	}
	if err != nil {
		return Identity{}, storeError("verify", err)
	}
	return id, nil
}

// Login mints a session for an identity that has already passed
// Authenticate and returns it. The caller hands SessionID to the client.
func (g *Gate) Login(ctx context.Context, id Identity) (*session.Session, error) {
	if id.IsZero() {
		return nil, errors.New("auth: login requires an identity")
	}

	now := g.now()

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		token, err := session.GenerateID()
		if err != nil {
			return nil, err
		}

		sess := session.Session{
			SessionID:    token,
			IdentityID:   id.ID,
			CreatedAt:    now,
			LastAccessAt: now,
			ExpiresAt:    now.Add(g.ttl),
		}

		err = g.store.Create(ctx, sess)
		if err == nil {
			return &sess, nil
		}
		if !errors.Is(err, session.ErrExists) {
			return nil, storeError("create", err)
		}
	}

	return nil, storeError("create", session.ErrExists)
}

// Logout ends the session for token. Unknown, expired and malformed
// tokens are a no-op.
func (g *Gate) Logout(ctx context.Context, token string) error {
	if !session.ValidID(token) {
		return nil
	}
	if err := g.store.Delete(ctx, token); err != nil {
		return storeError("delete", err)
	}
	return nil
}

// CurrentIdentity resolves token to a live identity. A missing, expired
// or malformed token yields ok=false and no error.
func (g *Gate) CurrentIdentity(ctx context.Context, token string) (Identity, bool, error) {
	if !session.ValidID(token) {
		return Identity{}, false, nil
	}

	sess, err := g.store.Get(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, storeError("get", err)
	}

	now := g.now()
	if g.SessionState(sess, now) != StateAuthenticated {
		_ = g.store.Delete(ctx, token)
		return Identity{}, false, nil
	}

	if err := g.store.Touch(ctx, token, now); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// removed between Get and Touch
			return Identity{}, false, nil
		}
		return Identity{}, false, storeError("touch", err)
	}

	id, ok, err := g.loader.LoadIdentity(ctx, sess.IdentityID)
	if err != nil {
		return Identity{}, false, storeError("load identity", err)
	}
	if !ok {
		return Identity{}, false, nil
	}
	return id, true, nil
}

// RequireIdentity is CurrentIdentity for protected operations: absence
// becomes ErrUnauthorized.
func (g *Gate) RequireIdentity(ctx context.Context, token string) (Identity, error) {
	id, ok, err := g.CurrentIdentity(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

// SessionState places sess in the lifecycle at now. A nil session is
// anonymous.
func (g *Gate) SessionState(sess *session.Session, now time.Time) State {
	if sess == nil {
		return StateAnonymous
	}
	if sess.Expired(now) {
		return StateTerminated
	}
	if g.idle > 0 && now.Sub(sess.LastAccessAt) > g.idle {
		return StateTerminated
	}
	return StateAuthenticated
}
