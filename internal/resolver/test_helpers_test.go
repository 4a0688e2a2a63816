package resolver

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/identity"
)

// testDB creates a temporary SQLite database with the credential and
// account schemas applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "resolver-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
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

		CREATE TABLE accounts (
			account_id   TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL,
			role         TEXT NOT NULL,
			linking_id   TEXT NOT NULL,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			CHECK (linking_id <> '')
		) STRICT;

		CREATE INDEX idx_accounts_linking_id ON accounts(linking_id);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// testHarness wires a resolver over a real provider and directory
// sharing one database.
type testHarness struct {
	provider *identity.LocalProvider
	dir      *directory.SQLiteRepository
	resolver *Resolver
}

func newHarness(t *testing.T, opts Options) *testHarness {
	t.Helper()

	db := testDB(t)
	provider := identity.NewLocalProvider(db, nil, 8)
	dir := directory.NewRepository(db)
	return &testHarness{
		provider: provider,
		dir:      dir,
		resolver: New(provider, dir, nil, opts),
	}
}

// signUpAdmin registers an admin and signs them out, returning the
// resolution so tests can reuse the linking id.
func (h *testHarness) signUpAdmin(t *testing.T, email string) *Resolution {
	t.Helper()

	res, err := h.resolver.ResolveSignUp(context.Background(), SignUpInput{
		Email:       email,
		Password:    "a-long-password",
		DisplayName: "Admin",
		Role:        directory.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("admin sign-up: %v", err)
	}
	if err := h.provider.SignOut(context.Background()); err != nil {
		t.Fatalf("sign-out: %v", err)
	}
	return res
}

// fakeDirectory injects failures into directory operations; everything
// else delegates to an in-memory map.
type fakeDirectory struct {
	accounts  map[string]*directory.Account
	getErr    error
	putErr    error
	existsErr error
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
	if f.putErr != nil {
		return f.putErr
	}
	f.accounts[account.AccountID] = account
	return nil
}

func (f *fakeDirectory) QueryByLinkingID(_ context.Context, linkingID string) ([]directory.Account, error) {
	var out []directory.Account
	for _, a := range f.accounts {
		if a.LinkingID == linkingID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeDirectory) AdminExistsForLinkingID(_ context.Context, linkingID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, a := range f.accounts {
		if a.Role == directory.RoleAdmin && a.LinkingID == linkingID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDirectory) Delete(_ context.Context, accountID string) error {
	delete(f.accounts, accountID)
	return nil
}
