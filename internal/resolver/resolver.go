package resolver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/infrastructure/logging"
)

const defaultTimeout = 10 * time.Second

// Resolver decides admission for every entry path.
type Resolver struct {
	provider identity.Provider
	dir      directory.Repository
	log      *logging.Logger
	policy   DegradePolicy
	timeout  time.Duration
	tokens   atomic.Uint64
}

// Options tune resolver behaviour.
type Options struct {
	// Timeout bounds each resolution end to end. Zero means 10s.
	Timeout time.Duration
	// Policy decides whether directory failures during secondary
	// validations may be tolerated. Nil means PermissiveOnDirectoryFailure.
	Policy DegradePolicy
}

// New creates a resolver over a credential provider and account directory.
func New(provider identity.Provider, dir directory.Repository, log *logging.Logger, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Policy == nil {
		opts.Policy = PermissiveOnDirectoryFailure
	}
	if log == nil {
		log = logging.Default()
	}
	return &Resolver{
		provider: provider,
		dir:      dir,
		log:      log,
		policy:   opts.Policy,
		timeout:  opts.Timeout,
	}
}

// Resolution is an admission decision. Degraded marks admissions granted
// without a confirmed directory profile; Account is nil in that case and
// Role carries the caller's unverified requested role.
type Resolution struct {
	Identity *identity.Identity
	Account  *directory.Account
	Role     directory.Role
	Degraded bool

	// RequestToken orders resolutions. A result issued before a newer
	// resolution began must be discarded by the caller.
	RequestToken uint64
}

// IsStale reports whether a newer resolution has begun since this result
// was issued.
func (r *Resolver) IsStale(res *Resolution) bool {
	return res.RequestToken < r.tokens.Load()
}

// SignUpInput carries a sign-up request. LinkingID is required for
// family and guest roles and ignored for admins.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        directory.Role
	LinkingID   string
}

// ResolveSignUp registers a new account under a requested role.
//
// Family and guest sign-ups must present an existing admin's linking id,
// checked before any credential is created. Admins derive their linking
// id from the account id the provider assigns. The directory write
// happens last; if it fails the credential identity is kept and the
// failure surfaces as ProfilePersistError so a later sign-in can repair
// the profile.
func (r *Resolver) ResolveSignUp(ctx context.Context, in SignUpInput) (*Resolution, error) {
	token := r.tokens.Add(1)
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if !in.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", in.Role)
	}

	if in.Role != directory.RoleAdmin && in.LinkingID == "" {
		return nil, &LinkingError{Reason: LinkingMissing}
	}

	// Pre-check the email so the common duplicate case fails before any
	// state is created. The provider enforces uniqueness anyway.
	methods, err := r.provider.ListSignInMethods(ctx, in.Email)
	switch {
	case err != nil:
		if !r.degrade(OpSignUpEmailCheck, err) {
			return nil, err
		}
	case len(methods) > 0:
		return nil, identity.NewCredentialError(identity.KindEmailInUse, nil)
	}

	if in.Role != directory.RoleAdmin {
		if err := r.checkLinkingID(ctx, in.LinkingID); err != nil {
			return nil, err
		}
	}

	id, err := r.provider.CreateAccount(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		return nil, err
	}

	linkingID := in.LinkingID
	if in.Role == directory.RoleAdmin {
		linkingID = directory.LinkingIDForAdmin(id.AccountID)
	}

	account := &directory.Account{
		AccountID:   id.AccountID,
		DisplayName: in.DisplayName,
		Email:       id.Email,
		Role:        in.Role,
		LinkingID:   linkingID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.dir.Put(ctx, account); err != nil {
		// The credential identity is not rolled back: the account is
		// recoverable but incomplete, and must surface distinctly.
		r.log.Error("profile write failed after credential creation",
			"account_id", id.AccountID, "error", err)
		return nil, &ProfilePersistError{cause: err}
	}

	r.log.Info("account admitted via sign-up",
		"account_id", id.AccountID, "role", string(in.Role), "linking_id", linkingID)

	return &Resolution{Identity: id, Account: account, Role: in.Role, RequestToken: token}, nil
}

// ResolveSignIn authenticates a returning account and re-validates its
// recorded role against the requested one.
//
// A missing profile or a role mismatch forces a provider sign-out before
// the error returns, so the provider-side session never outlives the
// rejection. Directory failures (other than not-found) pass through the
// degrade policy: when tolerated the account is admitted on the
// credential identity alone, marked Degraded.
func (r *Resolver) ResolveSignIn(ctx context.Context, email, password string, requestedRole directory.Role) (*Resolution, error) {
	token := r.tokens.Add(1)
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if !requestedRole.IsValid() {
		return nil, fmt.Errorf("invalid role %q", requestedRole)
	}

	id, err := r.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	return r.admit(ctx, OpSignInProfileFetch, id, requestedRole, token)
}

// ResolveSocial handles social sign-on, which folds sign-in and sign-up
// into one decision: a returning identity gets the sign-in role check,
// a new identity gets the sign-up linking validation and profile write
// (credential creation already happened upstream). linkingID is only
// consulted for new family/guest identities.
func (r *Resolver) ResolveSocial(ctx context.Context, assertion identity.SocialAssertion, requestedRole directory.Role, linkingID string) (*Resolution, error) {
	token := r.tokens.Add(1)
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	if !requestedRole.IsValid() {
		return nil, fmt.Errorf("invalid role %q", requestedRole)
	}

	id, err := r.provider.SignInWithSocial(ctx, assertion)
	if err != nil {
		return nil, err
	}

	account, err := r.dir.Get(ctx, id.AccountID)
	switch {
	case err == nil:
		// Returning social user: same role check as password sign-in.
		if account.Role != requestedRole {
			r.signOut(ctx, "role mismatch", id.AccountID)
			return nil, &RoleMismatchError{Have: account.Role, Want: requestedRole}
		}
		return &Resolution{Identity: id, Account: account, Role: account.Role, RequestToken: token}, nil

	case directory.IsNotFound(err):
		// First social sign-in: create the profile now.
		return r.createSocialProfile(ctx, id, requestedRole, linkingID, token)

	default:
		if !r.degrade(OpSocialProfileFetch, err) {
			r.signOut(ctx, "directory failure", id.AccountID)
			return nil, err
		}
		return &Resolution{Identity: id, Role: requestedRole, Degraded: true, RequestToken: token}, nil
	}
}

func (r *Resolver) createSocialProfile(ctx context.Context, id *identity.Identity, role directory.Role, linkingID string, token uint64) (*Resolution, error) {
	if role != directory.RoleAdmin {
		if linkingID == "" {
			r.signOut(ctx, "linking id missing", id.AccountID)
			return nil, &LinkingError{Reason: LinkingMissing}
		}
		if err := r.checkLinkingID(ctx, linkingID); err != nil {
			r.signOut(ctx, "linking id rejected", id.AccountID)
			return nil, err
		}
	} else {
		linkingID = directory.LinkingIDForAdmin(id.AccountID)
	}

	account := &directory.Account{
		AccountID:   id.AccountID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		Role:        role,
		LinkingID:   linkingID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.dir.Put(ctx, account); err != nil {
		r.log.Error("profile write failed after social sign-in",
			"account_id", id.AccountID, "error", err)
		return nil, &ProfilePersistError{cause: err}
	}

	r.log.Info("account admitted via social sign-up",
		"account_id", id.AccountID, "role", string(role), "linking_id", linkingID)

	return &Resolution{Identity: id, Account: account, Role: role, RequestToken: token}, nil
}

// admit fetches the directory profile for an authenticated identity and
// applies the role check.
func (r *Resolver) admit(ctx context.Context, op string, id *identity.Identity, requestedRole directory.Role, token uint64) (*Resolution, error) {
	account, err := r.dir.Get(ctx, id.AccountID)
	switch {
	case directory.IsNotFound(err):
		r.signOut(ctx, "profile missing", id.AccountID)
		return nil, fmt.Errorf("%w: account %s", ErrIncompleteProfile, id.AccountID)

	case err != nil:
		if !r.degrade(op, err) {
			r.signOut(ctx, "directory failure", id.AccountID)
			return nil, err
		}
		return &Resolution{Identity: id, Role: requestedRole, Degraded: true, RequestToken: token}, nil
	}

	if account.Role != requestedRole {
		r.signOut(ctx, "role mismatch", id.AccountID)
		return nil, &RoleMismatchError{Have: account.Role, Want: requestedRole}
	}

	return &Resolution{Identity: id, Account: account, Role: account.Role, RequestToken: token}, nil
}

// checkLinkingID verifies that an admin owns the linking id. Directory
// failures pass through the degrade policy and, when tolerated, treat
// the id as valid.
func (r *Resolver) checkLinkingID(ctx context.Context, linkingID string) error {
	exists, err := r.dir.AdminExistsForLinkingID(ctx, linkingID)
	if err != nil {
		if r.degrade(OpSignUpLinkingCheck, err) {
			return nil
		}
		return err
	}
	if !exists {
		return &LinkingError{Reason: LinkingInvalid}
	}
	return nil
}

// degrade consults the policy and logs permissive decisions.
func (r *Resolver) degrade(op string, err error) bool {
	if !r.policy(op, err) {
		return false
	}
	r.log.Warn("continuing without directory confirmation",
		"op", op, "degraded", true, "error", err)
	return true
}

// signOut forces the provider-side session closed before a rejection
// returns. It must run even when the resolution context has expired.
func (r *Resolver) signOut(ctx context.Context, reason, accountID string) {
	if err := r.provider.SignOut(context.WithoutCancel(ctx)); err != nil {
		r.log.Error("forced sign-out failed",
			"reason", reason, "account_id", accountID, "error", err)
		return
	}
	r.log.Info("forced sign-out", "reason", reason, "account_id", accountID)
}

func (r *Resolver) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}
