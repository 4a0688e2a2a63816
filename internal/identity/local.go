package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homelink/homelink-core/internal/infrastructure/logging"
)

// Sign-in throttling: after maxFailedAttempts failures within
// attemptWindow, further attempts for that email are rejected until the
// window expires.
const (
	maxFailedAttempts = 5
	attemptWindow     = 5 * time.Minute
)

// LocalProvider is a SQLite-backed credential provider. It owns the
// credentials table and the provider-side session for the hub surface.
type LocalProvider struct {
	db  *sql.DB
	log *logging.Logger

	minPasswordLength int

	mu      sync.Mutex
	current *Identity
	seq     uint64
	subs    map[int]func(Event)
	nextSub int

	attemptsMu sync.Mutex
	attempts   map[string]*failureRecord
}

type failureRecord struct {
	count       int
	windowStart time.Time
}

// NewLocalProvider creates a credential provider over an open database.
func NewLocalProvider(db *sql.DB, log *logging.Logger, minPasswordLength int) *LocalProvider {
	return &LocalProvider{
		db:                db,
		log:               log,
		minPasswordLength: minPasswordLength,
		subs:              map[int]func(Event){},
		attempts:          map[string]*failureRecord{},
	}
}

// CreateAccount registers a new password identity and signs it in.
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password, displayName string) (*Identity, error) {
	email = normaliseEmail(email)
	if !IsValidEmail(email) {
		return nil, NewCredentialError(KindInvalidEmail, nil)
	}
	if len(password) < p.minPasswordLength {
		return nil, NewCredentialError(KindWeakPassword, nil)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	id := &Identity{
		AccountID:   uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO credentials (account_id, email, display_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id.AccountID, id.Email, id.DisplayName, hash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewCredentialError(KindEmailInUse, err)
		}
		return nil, classifyStoreError("creating credential", err)
	}

	p.setCurrent(id)
	return id, nil
}

// SignIn authenticates an email/password pair and makes the identity current.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	email = normaliseEmail(email)
	if !IsValidEmail(email) {
		return nil, NewCredentialError(KindInvalidEmail, nil)
	}
	if p.throttled(email) {
		return nil, NewCredentialError(KindTooManyRequests, nil)
	}

	cred, err := p.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			p.recordFailure(email)
			return nil, NewCredentialError(KindWrongCredentials, nil)
		}
		return nil, classifyStoreError("looking up credential", err)
	}

	if !cred.passwordHash.Valid {
		// Email is registered, but only for social sign-in.
		return nil, NewCredentialError(KindDifferentCredential, nil)
	}

	ok, err := VerifyPassword(password, cred.passwordHash.String)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		p.recordFailure(email)
		return nil, NewCredentialError(KindWrongCredentials, nil)
	}

	p.clearFailures(email)
	id := cred.identity()
	p.setCurrent(id)
	return id, nil
}

// SignInWithSocial accepts a verified social assertion, creating the
// credential record on first use, and makes the identity current.
func (p *LocalProvider) SignInWithSocial(ctx context.Context, assertion SocialAssertion) (*Identity, error) {
	if assertion.Cancelled {
		return nil, NewCredentialError(KindPopupClosed, nil)
	}
	if assertion.Blocked {
		return nil, NewCredentialError(KindPopupBlocked, nil)
	}
	if assertion.Provider == "" || assertion.Subject == "" {
		return nil, NewCredentialError(KindNetworkFailure, errors.New("incomplete social assertion"))
	}

	email := normaliseEmail(assertion.Email)
	if !IsValidEmail(email) {
		return nil, NewCredentialError(KindInvalidEmail, nil)
	}

	cred, err := p.getBySocial(ctx, assertion.Provider, assertion.Subject)
	if err == nil {
		id := cred.identity()
		p.setCurrent(id)
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, classifyStoreError("looking up social credential", err)
	}

	// Unknown subject. If the email already belongs to a different
	// credential, refuse rather than silently merging identities.
	if _, err := p.getByEmail(ctx, email); err == nil {
		return nil, NewCredentialError(KindDifferentCredential, nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, classifyStoreError("looking up credential", err)
	}

	id := &Identity{
		AccountID:   uuid.NewString(),
		Email:       email,
		DisplayName: assertion.DisplayName,
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO credentials (account_id, email, display_name, social_provider, social_subject, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.AccountID, id.Email, id.DisplayName, assertion.Provider, assertion.Subject, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewCredentialError(KindDifferentCredential, err)
		}
		return nil, classifyStoreError("creating social credential", err)
	}

	p.setCurrent(id)
	return id, nil
}

// SignOut clears the current session. Safe to call when nobody is signed in.
func (p *LocalProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.seq++
	ev := Event{Seq: p.seq, Identity: nil}
	subs := p.snapshotSubs()
	p.mu.Unlock()

	if wasSignedIn && p.log != nil {
		p.log.Debug("identity signed out")
	}
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// ListSignInMethods returns the methods registered for an email.
func (p *LocalProvider) ListSignInMethods(ctx context.Context, email string) ([]SignInMethod, error) {
	email = normaliseEmail(email)
	cred, err := p.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []SignInMethod{}, nil
		}
		return nil, classifyStoreError("looking up credential", err)
	}

	var methods []SignInMethod
	if cred.passwordHash.Valid {
		methods = append(methods, MethodPassword)
	}
	if cred.socialSubject.Valid {
		methods = append(methods, MethodSocial)
	}
	return methods, nil
}

// Subscribe registers an identity-change subscriber. The current state is
// delivered synchronously before Subscribe returns, so a subscriber never
// has to poll for the initial identity.
func (p *LocalProvider) Subscribe(fn func(Event)) Unsubscribe {
	p.mu.Lock()
	key := p.nextSub
	p.nextSub++
	p.subs[key] = fn
	ev := Event{Seq: p.seq, Identity: p.current}
	p.mu.Unlock()

	fn(ev)

	return func() {
		p.mu.Lock()
		delete(p.subs, key)
		p.mu.Unlock()
	}
}

// Current returns the currently signed-in identity (nil when signed out)
// and the sequence number of the last identity change.
func (p *LocalProvider) Current() (*Identity, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.seq
}

func (p *LocalProvider) setCurrent(id *Identity) {
	p.mu.Lock()
	p.current = id
	p.seq++
	ev := Event{Seq: p.seq, Identity: id}
	subs := p.snapshotSubs()
	p.mu.Unlock()

	if p.log != nil {
		p.log.Debug("identity signed in", "account_id", id.AccountID)
	}
	for _, fn := range subs {
		fn(ev)
	}
}

// snapshotSubs copies the subscriber list; callers must hold p.mu.
func (p *LocalProvider) snapshotSubs() []func(Event) {
	subs := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Throttling.

func (p *LocalProvider) throttled(email string) bool {
	p.attemptsMu.Lock()
	defer p.attemptsMu.Unlock()

	rec, ok := p.attempts[email]
	if !ok {
		return false
	}
	if time.Since(rec.windowStart) > attemptWindow {
		delete(p.attempts, email)
		return false
	}
	return rec.count >= maxFailedAttempts
}

func (p *LocalProvider) recordFailure(email string) {
	p.attemptsMu.Lock()
	defer p.attemptsMu.Unlock()

	rec, ok := p.attempts[email]
	if !ok || time.Since(rec.windowStart) > attemptWindow {
		p.attempts[email] = &failureRecord{count: 1, windowStart: time.Now()}
		return
	}
	rec.count++
}

func (p *LocalProvider) clearFailures(email string) {
	p.attemptsMu.Lock()
	delete(p.attempts, email)
	p.attemptsMu.Unlock()
}

// Persistence.

type credentialRow struct {
	accountID      string
	email          string
	displayName    string
	passwordHash   sql.NullString
	socialProvider sql.NullString
	socialSubject  sql.NullString
}

func (c *credentialRow) identity() *Identity {
	return &Identity{AccountID: c.accountID, Email: c.email, DisplayName: c.displayName}
}

const credentialColumns = "account_id, email, display_name, password_hash, social_provider, social_subject"

func (p *LocalProvider) getByEmail(ctx context.Context, email string) (*credentialRow, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM credentials WHERE email = ?", email)
	return scanCredential(row)
}

func (p *LocalProvider) getBySocial(ctx context.Context, provider, subject string) (*credentialRow, error) {
	row := p.db.QueryRowContext(ctx,
		"SELECT "+credentialColumns+" FROM credentials WHERE social_provider = ? AND social_subject = ?",
		provider, subject)
	return scanCredential(row)
}

func scanCredential(row *sql.Row) (*credentialRow, error) {
	var c credentialRow
	err := row.Scan(&c.accountID, &c.email, &c.displayName,
		&c.passwordHash, &c.socialProvider, &c.socialSubject)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// classifyStoreError maps context cancellation to a network-failure
// credential error and wraps everything else.
func classifyStoreError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewCredentialError(KindNetworkFailure, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
