// Package resolver drives every sign-up and sign-in attempt to an
// admission decision: admitted with a role, rejected with a reason, or
// left for the caller to retry.
//
// The resolver owns the household membership rules. Admins mint their
// own linking id from their account id; family and guest members must
// present an existing admin's linking id at sign-up. The directory's
// recorded role is re-checked on every explicit entry, and a mismatch
// forces a provider sign-out before the error is returned so no
// half-authenticated session survives.
//
// Directory failures during secondary validations do not hard-fail:
// they pass through an injectable degrade policy that may trade strict
// enforcement for availability. Every permissive decision is logged.
package resolver
