package resolver

import (
	"errors"
	"fmt"

	"github.com/homelink/homelink-core/internal/directory"
)

// ErrIncompleteProfile is returned when credentials verify but the
// directory holds no profile for the account. The credential record
// survives, so the profile can be recreated on a later attempt.
var ErrIncompleteProfile = errors.New("account profile incomplete")

// LinkingReason says why a linking id was rejected.
type LinkingReason string

const (
	LinkingMissing LinkingReason = "missing"
	LinkingInvalid LinkingReason = "invalid"
)

// LinkingError rejects a family/guest sign-up whose linking id is absent
// or matches no admin household.
type LinkingError struct {
	Reason LinkingReason
}

func (e *LinkingError) Error() string {
	return fmt.Sprintf("linking id %s", e.Reason)
}

// UserMessage returns the user-facing message for this rejection.
func (e *LinkingError) UserMessage() string {
	if e.Reason == LinkingMissing {
		return "A home link code is required for family and guest accounts."
	}
	return "That link code doesn't match any admin's home. Please check it and try again."
}

// RoleMismatchError rejects an entry attempt whose requested role differs
// from the role recorded in the directory.
type RoleMismatchError struct {
	Have directory.Role // role recorded in the directory
	Want directory.Role // role the caller asked to act as
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("role mismatch: account is %s, requested %s", e.Have, e.Want)
}

// UserMessage returns the user-facing message for this rejection.
func (e *RoleMismatchError) UserMessage() string {
	return fmt.Sprintf("This account is registered as %s. Please sign in as %s.", e.Have, e.Have)
}

// ProfilePersistError reports a directory write failure after the
// credential identity was already created. The credential is not rolled
// back; the account is recoverable on a later sign-in.
type ProfilePersistError struct {
	cause error
}

func (e *ProfilePersistError) Error() string {
	return fmt.Sprintf("persisting account profile: %v", e.cause)
}

func (e *ProfilePersistError) Unwrap() error {
	return e.cause
}

// UserMessage returns the user-facing message for this failure.
func (e *ProfilePersistError) UserMessage() string {
	return "Your account was created but its profile could not be saved. Please try signing in."
}
