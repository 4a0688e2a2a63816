package identity

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the credentials schema
// applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "identity-test-*.db")
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

		CREATE UNIQUE INDEX idx_credentials_social
			ON credentials(social_provider, social_subject)
			WHERE social_subject IS NOT NULL;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying credentials schema: %v", err)
	}

	return db
}

// testProvider creates a LocalProvider over a fresh temp database.
func testProvider(t *testing.T) *LocalProvider {
	t.Helper()
	return NewLocalProvider(testDB(t), nil, 8)
}
