package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines account directory persistence.
type Repository interface {
	// Get retrieves an account's directory profile.
	Get(ctx context.Context, accountID string) (*Account, error)

	// Put creates or replaces an account's directory profile.
	Put(ctx context.Context, account *Account) error

	// QueryByLinkingID returns every account bound to a linking id,
	// ordered by creation date.
	QueryByLinkingID(ctx context.Context, linkingID string) ([]Account, error)

	// AdminExistsForLinkingID reports whether any admin owns the linking id.
	AdminExistsForLinkingID(ctx context.Context, linkingID string) (bool, error)

	// Delete removes an account's directory profile.
	Delete(ctx context.Context, accountID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed directory repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const accountColumns = "account_id, display_name, email, role, linking_id, created_at"

// Get retrieves an account by its id.
func (r *SQLiteRepository) Get(ctx context.Context, accountID string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE account_id = ?", accountID)
	return scanAccountFrom(row)
}

// Put creates or replaces an account's directory profile.
func (r *SQLiteRepository) Put(ctx context.Context, account *Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (account_id, display_name, email, role, linking_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
		   display_name = excluded.display_name,
		   email        = excluded.email,
		   role         = excluded.role,
		   linking_id   = excluded.linking_id`,
		account.AccountID, account.DisplayName, account.Email,
		string(account.Role), account.LinkingID,
		account.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return classify("putting account", err)
	}
	return nil
}

// QueryByLinkingID returns all accounts bound to a linking id.
func (r *SQLiteRepository) QueryByLinkingID(ctx context.Context, linkingID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE linking_id = ? ORDER BY created_at ASC",
		linkingID)
	if err != nil {
		return nil, classify("querying accounts by linking id", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccountFrom(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating accounts", err)
	}

	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// AdminExistsForLinkingID reports whether any admin owns the linking id.
func (r *SQLiteRepository) AdminExistsForLinkingID(ctx context.Context, linkingID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE role = ? AND linking_id = ?",
		string(RoleAdmin), linkingID).Scan(&count)
	if err != nil {
		return false, classify("checking admin linking id", err)
	}
	return count > 0, nil
}

// Delete removes an account's directory profile.
func (r *SQLiteRepository) Delete(ctx context.Context, accountID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE account_id = ?", accountID)
	if err != nil {
		return classify("deleting account", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return NewError(KindNotFound, nil)
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccountFrom(s scanner) (*Account, error) {
	var a Account
	var role, createdAt string

	err := s.Scan(&a.AccountID, &a.DisplayName, &a.Email, &role, &a.LinkingID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewError(KindNotFound, nil)
		}
		return nil, classify("scanning account", err)
	}

	a.Role = Role(role)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &a, nil
}

// classify maps low-level store failures onto directory error kinds.
func classify(op string, err error) error {
	cause := fmt.Errorf("%s: %w", op, err)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return NewError(KindTransient, cause)
	case strings.Contains(err.Error(), "readonly database"),
		strings.Contains(err.Error(), "access denied"):
		return NewError(KindPermissionDenied, cause)
	default:
		return NewError(KindTransient, cause)
	}
}
