// Package identity defines the credential provider contract and ships a
// local SQLite-backed implementation.
//
// The provider owns credentials only: email/password pairs (Argon2id)
// and verified social subjects. It knows nothing about roles or linking
// ids — those live in the account directory, which is the sole source of
// truth for authorisation. The provider emits identity-change events so
// the session context can track the currently signed-in household
// member without polling.
package identity
