package resolver

import (
	"github.com/homelink/homelink-core/internal/directory"
)

// Secondary validation ops passed to a DegradePolicy.
const (
	OpSignInProfileFetch = "signin profile fetch"
	OpSignUpEmailCheck   = "signup email check"
	OpSignUpLinkingCheck = "signup linking check"
	OpSocialProfileFetch = "social profile fetch"
)

// DegradePolicy decides whether a failure during a secondary validation
// step may be tolerated, continuing the flow without strict enforcement.
// op names the validation so policies can discriminate per call site.
//
// Returning true continues permissively; returning false propagates the
// failure. The resolver logs every permissive decision at WARN with
// degraded=true, so availability-over-strictness is observable rather
// than silent.
type DegradePolicy func(op string, err error) bool

// PermissiveOnDirectoryFailure tolerates transient and permission
// failures from the directory. Not-found is never degradable: it is an
// answer, not a failure.
//
// The sign-up email pre-check is advisory — the provider enforces email
// uniqueness at credential creation anyway — so a failure of the check
// itself is tolerated whatever its source, provider errors included.
func PermissiveOnDirectoryFailure(op string, err error) bool {
	if op == OpSignUpEmailCheck {
		return err != nil
	}

	kind, ok := directory.KindOf(err)
	if !ok {
		return false
	}
	return kind == directory.KindTransient || kind == directory.KindPermissionDenied
}

// Strict never degrades. Useful for tests and high-assurance deployments.
func Strict(string, error) bool {
	return false
}
