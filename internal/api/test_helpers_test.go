package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/home"
	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/infrastructure/config"
	"github.com/homelink/homelink-core/internal/infrastructure/logging"
	"github.com/homelink/homelink-core/internal/resolver"
	"github.com/homelink/homelink-core/internal/session"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// testDB creates a temporary SQLite database with the full schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
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

// testServer wires a full server over a fresh database and returns its
// router for httptest use.
func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	db := testDB(t)
	provider := identity.NewLocalProvider(db, nil, 8)
	dir := directory.NewRepository(db)
	res := resolver.New(provider, dir, nil, resolver.Options{})
	homeSvc := home.NewService(home.NewRepository(db), dir, nil, nil, nil)

	sess := session.New(provider, dir, nil, 0)
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("starting session: %v", err)
	}
	t.Cleanup(sess.Close)

	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		Auth: config.AuthConfig{
			JWT:               config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
			ResolveTimeout:    5,
			MinPasswordLength: 8,
		},
		Logger:    logging.Default(),
		Provider:  provider,
		Directory: dir,
		Resolver:  res,
		Session:   sess,
		Home:      homeSvc,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	return srv, srv.buildRouter()
}

// doJSON performs a request with an optional JSON body and bearer token.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a response body into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// signUp registers an account through the API and returns the admission.
func signUp(t *testing.T, h http.Handler, role, email, linkingID string) authResponse {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/signup/"+role, "", signUpRequest{
		Email:       email,
		Password:    "correct-horse-battery",
		DisplayName: strings.SplitN(email, "@", 2)[0],
		LinkingID:   linkingID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-up %s as %s: status %d, body %s", email, role, rec.Code, rec.Body.String())
	}

	var resp authResponse
	decodeBody(t, rec, &resp)
	return resp
}
