package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// emailPattern is a pragmatic email format check: something@something.tld.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail checks whether an email address is plausibly well-formed.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Identity is the provider's view of an authenticated principal.
// AccountID is opaque, stable, and assigned by the provider at creation.
type Identity struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// SignInMethod names a way an email can authenticate.
type SignInMethod string

const (
	MethodPassword SignInMethod = "password"
	MethodSocial   SignInMethod = "social"
)

// SocialAssertion is a social sign-on outcome already verified by an
// upstream broker. Cancelled and Blocked report popup-level failures and
// map to the matching credential error kinds.
type SocialAssertion struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	Cancelled   bool
	Blocked     bool
}

// Event is an identity-change notification. Identity is nil on sign-out.
// Seq increases monotonically with event order; consumers apply events
// last-write-wins by Seq, not by delivery order.
type Event struct {
	Seq      uint64
	Identity *Identity
}

// Unsubscribe removes a previously registered event subscriber.
type Unsubscribe func()

// Provider is the credential provider contract.
//
// Implementations authenticate principals and manage the provider-side
// session, but never decide authorisation: role checks belong to the
// resolver, backed by the account directory.
type Provider interface {
	// CreateAccount registers a new password identity.
	CreateAccount(ctx context.Context, email, password, displayName string) (*Identity, error)

	// SignIn authenticates an email/password pair and makes the identity current.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignInWithSocial accepts a verified social assertion and makes the
	// identity current, creating the credential record if it is new.
	SignInWithSocial(ctx context.Context, assertion SocialAssertion) (*Identity, error)

	// SignOut clears the current provider-side session.
	SignOut(ctx context.Context) error

	// ListSignInMethods returns the methods registered for an email.
	// An empty slice means the email is unknown.
	ListSignInMethods(ctx context.Context, email string) ([]SignInMethod, error)

	// Subscribe registers an identity-change subscriber. The subscriber
	// is invoked for every sign-in and sign-out until unsubscribed.
	Subscribe(fn func(Event)) Unsubscribe
}

// ErrorKind classifies credential failures. Each kind maps one-to-one to
// a user-facing message.
type ErrorKind string

const (
	KindInvalidEmail        ErrorKind = "invalid_email"
	KindWeakPassword        ErrorKind = "weak_password"
	KindEmailInUse          ErrorKind = "email_in_use"
	KindWrongCredentials    ErrorKind = "wrong_credentials"
	KindTooManyRequests     ErrorKind = "too_many_requests"
	KindNetworkFailure      ErrorKind = "network_failure"
	KindPopupClosed         ErrorKind = "popup_closed"
	KindPopupBlocked        ErrorKind = "popup_blocked"
	KindDifferentCredential ErrorKind = "account_exists_different_credential"
)

// userMessages maps each error kind to its user-facing message.
var userMessages = map[ErrorKind]string{
	KindInvalidEmail:        "Invalid email format. Please provide a valid email.",
	KindWeakPassword:        "Password is too weak. Please use a stronger password.",
	KindEmailInUse:          "Email is already in use. Please use a different email or sign in.",
	KindWrongCredentials:    "Invalid email or password. Please try again.",
	KindTooManyRequests:     "Too many failed attempts. Please try again later.",
	KindNetworkFailure:      "Network error. Please check your connection and try again.",
	KindPopupClosed:         "Sign-in was closed before completing.",
	KindPopupBlocked:        "The sign-in popup was blocked. Please enable popups and retry.",
	KindDifferentCredential: "An account already exists with the same email address but different sign-in credentials.",
}

// CredentialError is a classified credential failure.
type CredentialError struct {
	Kind  ErrorKind
	cause error
}

// NewCredentialError wraps a cause with a kind. cause may be nil.
func NewCredentialError(kind ErrorKind, cause error) *CredentialError {
	return &CredentialError{Kind: kind, cause: cause}
}

func (e *CredentialError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("credential error (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("credential error (%s)", e.Kind)
}

func (e *CredentialError) Unwrap() error {
	return e.cause
}

// UserMessage returns the user-facing message for this error's kind.
func (e *CredentialError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return "Authentication failed. Please try again."
}

// KindOf extracts the ErrorKind from an error chain.
// Returns false if the chain contains no CredentialError.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
