// Package session tracks the currently signed-in household member for a
// hub surface (wall panel, local UI).
//
// The context subscribes to credential provider identity events and, on
// each change, re-runs the directory lookup only — passive restoration
// never re-applies the resolver's role rejection, which belongs to
// explicit sign-in actions. Readiness flips true after the first
// resolution so consumers never observe a transient signed-out state
// while the initial check is in flight.
package session
