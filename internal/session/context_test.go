package session

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/identity"
)

func testProvider(t *testing.T) *identity.LocalProvider {
	t.Helper()

	f, err := os.CreateTemp("", "session-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE credentials (
			account_id      TEXT PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			display_name    TEXT NOT NULL DEFAULT '',
			password_hash   TEXT,
			social_provider TEXT,
			social_subject  TEXT,
			created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			CHECK (password_hash IS NOT NULL OR social_subject IS NOT NULL)
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying credentials schema: %v", err)
	}

	return identity.NewLocalProvider(db, nil, 8)
}

// fakeDirectory holds profiles in memory and can inject lookup failures.
type fakeDirectory struct {
	accounts map[string]*directory.Account
	getErr   error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{accounts: map[string]*directory.Account{}}
}

func (f *fakeDirectory) Get(_ context.Context, accountID string) (*directory.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, directory.NewError(directory.KindNotFound, nil)
	}
	return a, nil
}

func (f *fakeDirectory) Put(_ context.Context, account *directory.Account) error {
	f.accounts[account.AccountID] = account
	return nil
}

func (f *fakeDirectory) QueryByLinkingID(_ context.Context, _ string) ([]directory.Account, error) {
	return nil, nil
}

func (f *fakeDirectory) AdminExistsForLinkingID(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeDirectory) Delete(_ context.Context, accountID string) error {
	delete(f.accounts, accountID)
	return nil
}

func TestStart_ReadyWithNobodySignedIn(t *testing.T) {
	c := New(testProvider(t), newFakeDirectory(), nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	snap := c.Snapshot()
	if !snap.Ready {
		t.Error("session not ready after start")
	}
	if snap.SignedIn() {
		t.Error("session reports a member with nobody signed in")
	}
}

func TestSignInPopulatesSession(t *testing.T) {
	provider := testProvider(t)
	dir := newFakeDirectory()
	c := New(provider, dir, nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	id, err := provider.CreateAccount(context.Background(), "dad@example.com", "a-long-password", "Dad")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	// Simulate the resolver's profile write, then re-sign-in so the
	// session sees an event with the profile in place.
	dir.accounts[id.AccountID] = &directory.Account{
		AccountID: id.AccountID, Role: directory.RoleAdmin, LinkingID: "admin-x",
	}
	if err := provider.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := provider.SignIn(context.Background(), "dad@example.com", "a-long-password"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	snap := c.Snapshot()
	if !snap.SignedIn() || snap.Account.AccountID != id.AccountID {
		t.Fatalf("session account = %+v", snap.Account)
	}
	if snap.Role != directory.RoleAdmin {
		t.Errorf("session role = %q, want admin", snap.Role)
	}
}

func TestSignOutClearsSession(t *testing.T) {
	provider := testProvider(t)
	dir := newFakeDirectory()
	c := New(provider, dir, nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	id, err := provider.CreateAccount(context.Background(), "dad@example.com", "a-long-password", "Dad")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	dir.accounts[id.AccountID] = &directory.Account{AccountID: id.AccountID, Role: directory.RoleAdmin, LinkingID: "admin-x"}

	if err := provider.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	snap := c.Snapshot()
	if snap.SignedIn() || snap.Role != "" {
		t.Errorf("session not cleared: %+v", snap)
	}
	if !snap.Ready {
		t.Error("session lost readiness on sign-out")
	}
}

func TestLookupPermissionFailure_SoftFails(t *testing.T) {
	provider := testProvider(t)
	dir := newFakeDirectory()
	dir.getErr = directory.NewError(directory.KindPermissionDenied, errors.New("rules"))

	c := New(provider, dir, nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	id, err := provider.CreateAccount(context.Background(), "dad@example.com", "a-long-password", "Dad")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	// Availability bias: identity kept, role dropped, session ready.
	snap := c.Snapshot()
	if !snap.Ready {
		t.Error("session not ready after failed lookup")
	}
	if !snap.SignedIn() || snap.Account.AccountID != id.AccountID {
		t.Errorf("identity dropped on lookup failure: %+v", snap.Account)
	}
	if snap.Role != "" {
		t.Errorf("role granted without directory confirmation: %q", snap.Role)
	}
}

func TestMissingProfileClearsSession(t *testing.T) {
	provider := testProvider(t)
	c := New(provider, newFakeDirectory(), nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	if _, err := provider.CreateAccount(context.Background(), "orphan@example.com", "a-long-password", "Orphan"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	snap := c.Snapshot()
	if snap.SignedIn() {
		t.Error("session kept an identity with no directory profile")
	}
	if !snap.Ready {
		t.Error("session not ready")
	}
}

func TestLastWriteWinsByEventOrder(t *testing.T) {
	provider := testProvider(t)
	dir := newFakeDirectory()
	dir.accounts["acc-new"] = &directory.Account{AccountID: "acc-new", Role: directory.RoleFamily, LinkingID: "admin-x"}
	c := New(provider, dir, nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	c.handleEvent(identity.Event{Seq: 5, Identity: &identity.Identity{AccountID: "acc-new"}})

	// A stale event resolving late must not clobber the newer state.
	c.handleEvent(identity.Event{Seq: 3, Identity: nil})

	snap := c.Snapshot()
	if !snap.SignedIn() || snap.Account.AccountID != "acc-new" {
		t.Errorf("stale event clobbered newer state: %+v", snap)
	}
}

func TestClose_StopsUpdates(t *testing.T) {
	provider := testProvider(t)
	dir := newFakeDirectory()
	c := New(provider, dir, nil, 0)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Close()

	if _, err := provider.CreateAccount(context.Background(), "dad@example.com", "a-long-password", "Dad"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if snap := c.Snapshot(); snap.SignedIn() {
		t.Error("session updated after Close")
	}
}
