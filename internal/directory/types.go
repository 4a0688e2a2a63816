package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is an account's position in the household hierarchy.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleFamily Role = "family"
	RoleGuest  Role = "guest"
)

// IsValid reports whether the role is one of the known household roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleFamily, RoleGuest:
		return true
	}
	return false
}

// ParseRole converts a string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// AdminLinkingIDPrefix prefixes every admin-generated linking id.
const AdminLinkingIDPrefix = "admin-"

// LinkingIDForAdmin derives an admin's linking id from their account id.
// The derivation is deterministic: the same account always produces the
// same linking id, so family and guest members can bind to it by value.
func LinkingIDForAdmin(accountID string) string {
	if len(accountID) > 8 {
		accountID = accountID[:8]
	}
	return AdminLinkingIDPrefix + accountID
}

// Account is a directory profile. LinkingID groups the account into a
// household: admins own the id, family and guest members reference it.
type Account struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	LinkingID   string    `json:"linking_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorKind classifies directory failures.
type ErrorKind string

const (
	// KindNotFound means the account has no directory profile.
	KindNotFound ErrorKind = "not_found"
	// KindPermissionDenied means the directory refused the operation.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindTransient covers timeouts, cancellation, and I/O failures that
	// may succeed on retry.
	KindTransient ErrorKind = "transient"
)

// Error is a classified directory failure.
type Error struct {
	Kind  ErrorKind
	cause error
}

// NewError wraps a cause with a kind. cause may be nil.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("directory error (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("directory error (%s)", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the ErrorKind from an error chain.
// Returns false if the chain contains no directory Error.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsNotFound reports whether err is a not-found directory error.
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}
