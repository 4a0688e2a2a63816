// Package guard decides whether a session may enter a role-protected
// surface. Decisions are pure: the same session and requirement always
// produce the same outcome, so the guard can run on every request
// without side effects.
package guard

import (
	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/session"
)

// Kind is the category of a guard decision.
type Kind string

const (
	// Pending means the session is not ready yet: hold, don't redirect.
	Pending Kind = "pending"
	// Allow admits the request.
	Allow Kind = "allow"
	// Redirect sends the caller to Decision.Location.
	Redirect Kind = "redirect"
)

// Decision is the outcome of a guard check.
type Decision struct {
	Kind     Kind
	Location string
}

// EntryPath is where signed-out callers are sent.
const EntryPath = "/"

// DashboardPath returns the dashboard path for a role.
func DashboardPath(role directory.Role) string {
	return "/dashboard/" + string(role)
}

// Decide gates a session against a required role. An empty requiredRole
// only demands a signed-in session.
//
// A session whose role could not be resolved (availability-degraded
// lookup) cannot satisfy any role requirement; it is sent back to the
// entry path rather than to a dashboard that does not exist.
func Decide(s session.Snapshot, requiredRole directory.Role) Decision {
	if !s.Ready {
		return Decision{Kind: Pending}
	}
	if !s.SignedIn() {
		return Decision{Kind: Redirect, Location: EntryPath}
	}
	if requiredRole != "" && s.Role != requiredRole {
		if s.Role == "" {
			return Decision{Kind: Redirect, Location: EntryPath}
		}
		return Decision{Kind: Redirect, Location: DashboardPath(s.Role)}
	}
	return Decision{Kind: Allow}
}
