// Package directory is the account directory: the sole source of truth
// for each account's role and linking id. Credential state lives in the
// identity provider; nothing here can authenticate, and nothing there
// can authorise.
//
// Directory failures are classified (not found, permission denied,
// transient) so the resolver can decide between rejecting a sign-in and
// degrading to optimistic continuation.
package directory
