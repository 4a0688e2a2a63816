package home

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/homelink/homelink-core/internal/directory"
)

// testDB creates a temporary SQLite database with the household and
// directory schemas applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "home-test-*.db")
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
		CREATE TABLE accounts (
			account_id   TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL,
			role         TEXT NOT NULL,
			linking_id   TEXT NOT NULL,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			CHECK (linking_id <> '')
		) STRICT;

		CREATE TABLE homes (
			id         TEXT PRIMARY KEY,
			linking_id TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE rooms (
			id         TEXT PRIMARY KEY,
			home_id    TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (home_id) REFERENCES homes(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE devices (
			id          TEXT PRIMARY KEY,
			home_id     TEXT NOT NULL,
			room_id     TEXT,
			name        TEXT NOT NULL,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'off',
			last_active TEXT,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (home_id) REFERENCES homes(id) ON DELETE CASCADE,
			FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE SET NULL
		) STRICT;

		CREATE TABLE activity_logs (
			id         TEXT PRIMARY KEY,
			home_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			message    TEXT NOT NULL,
			user_id    TEXT,
			device_id  TEXT,
			severity   TEXT NOT NULL DEFAULT 'low',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			FOREIGN KEY (home_id) REFERENCES homes(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE user_access (
			home_id    TEXT NOT NULL,
			account_id TEXT NOT NULL,
			accessible INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (home_id, account_id),
			FOREIGN KEY (home_id) REFERENCES homes(id) ON DELETE CASCADE
		) STRICT;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// seedHome creates a home for a linking id.
func seedHome(t *testing.T, repo *SQLiteRepository, linkingID string) *Home {
	t.Helper()

	h := &Home{LinkingID: linkingID, Name: "Test Home"}
	if err := repo.CreateHome(context.Background(), h); err != nil {
		t.Fatalf("seeding home: %v", err)
	}
	return h
}

// fakePublisher records published topics and payloads.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (f *fakePublisher) PublishJSON(topic string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}

// fakeRecorder records status-history writes.
type fakeRecorder struct {
	mu     sync.Mutex
	points []string // "deviceID=status"
}

func (f *fakeRecorder) WriteDeviceStatus(_, _, deviceID, status, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, deviceID+"="+status)
}

// testService wires a service over a fresh database with fakes attached.
func testService(t *testing.T) (*Service, *SQLiteRepository, *directory.SQLiteRepository, *fakePublisher, *fakeRecorder) {
	t.Helper()

	db := testDB(t)
	repo := NewRepository(db)
	dir := directory.NewRepository(db)
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	return NewService(repo, dir, nil, pub, rec), repo, dir, pub, rec
}
