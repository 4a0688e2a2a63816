package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/homelink/homelink-core/internal/directory"
	"github.com/homelink/homelink-core/internal/identity"
	"github.com/homelink/homelink-core/internal/resolver"
)

// signUpRequest is the request body for POST /auth/signup/{role}.
type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	LinkingID   string `json:"linking_id"`
	HomeName    string `json:"home_name"`
}

// signInRequest is the request body for POST /auth/signin/{role}.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// socialRequest is the request body for POST /auth/social/{role}. The
// assertion is assumed verified by an upstream broker; Cancelled and
// Blocked report popup-level outcomes.
type socialRequest struct {
	Provider    string `json:"provider"`
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Cancelled   bool   `json:"cancelled"`
	Blocked     bool   `json:"blocked"`
	LinkingID   string `json:"linking_id"`
}

// authResponse is the response body for successful admissions.
type authResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	ExpiresIn   int                `json:"expires_in"` // seconds
	Account     *directory.Account `json:"account,omitempty"`
	Role        directory.Role     `json:"role"`
	Degraded    bool               `json:"degraded,omitempty"`
}

// roleParam parses the {role} path parameter.
func roleParam(r *http.Request) (directory.Role, bool) {
	role, err := directory.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		return "", false
	}
	return role, true
}

// handleSignUp registers a new member under the requested role and
// returns an access token. Admin sign-ups also create the household's
// home record.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		writeBadRequest(w, "unknown role")
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.resolver.ResolveSignUp(r.Context(), resolver.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
		LinkingID:   req.LinkingID,
	})
	if err != nil {
		writeResolveError(w, err)
		return
	}

	if role == directory.RoleAdmin {
		if _, err := s.home.EnsureHome(r.Context(), res.Account.LinkingID, req.HomeName); err != nil {
			// The admission stands; the home record is created lazily on
			// the first dashboard load instead.
			s.logger.Warn("home creation deferred", "linking_id", res.Account.LinkingID, "error", err)
		}
	}
	s.home.AnnounceMember(res.Account.LinkingID, "signed_up", res.Account)

	s.writeAdmission(w, http.StatusCreated, res)
}

// handleSignIn authenticates a returning member under the requested role.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		writeBadRequest(w, "unknown role")
		return
	}

	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.resolver.ResolveSignIn(r.Context(), req.Email, req.Password, role)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	if res.Account != nil {
		s.home.AnnounceMember(res.Account.LinkingID, "signed_in", res.Account)
	}

	s.writeAdmission(w, http.StatusOK, res)
}

// handleSocial admits a social sign-on under the requested role. First
// sign-ins create the directory profile; linking_id is required then for
// family and guest roles.
func (s *Server) handleSocial(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		writeBadRequest(w, "unknown role")
		return
	}

	var req socialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.resolver.ResolveSocial(r.Context(), identity.SocialAssertion{
		Provider:    req.Provider,
		Subject:     req.Subject,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Cancelled:   req.Cancelled,
		Blocked:     req.Blocked,
	}, role, req.LinkingID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	if res.Account != nil {
		if role == directory.RoleAdmin {
			if _, err := s.home.EnsureHome(r.Context(), res.Account.LinkingID, ""); err != nil {
				s.logger.Warn("home creation deferred", "linking_id", res.Account.LinkingID, "error", err)
			}
		}
		s.home.AnnounceMember(res.Account.LinkingID, "signed_in", res.Account)
	}

	s.writeAdmission(w, http.StatusOK, res)
}

// handleSignOut clears the provider-side session. Idempotent.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.provider.SignOut(r.Context()); err != nil {
		writeInternalError(w, "sign-out failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signed_out": true})
}

// handleSession reports the hub session's current view.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": false})
		return
	}

	snap := s.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":     snap.Ready,
		"signed_in": snap.SignedIn(),
		"account":   snap.Account,
		"role":      snap.Role,
	})
}

// writeAdmission issues the access token for a resolution and writes the
// response. A resolution superseded by a newer entry attempt is discarded.
func (s *Server) writeAdmission(w http.ResponseWriter, status int, res *resolver.Resolution) {
	if s.resolver.IsStale(res) {
		writeError(w, http.StatusConflict, ErrCodeConflict,
			"A newer sign-in attempt superseded this one.")
		return
	}

	ttl := time.Duration(s.authCfg.JWT.AccessTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	token, err := identity.GenerateAccessToken(res.Identity, string(res.Role), s.authCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("access token generation failed",
			"account_id", res.Identity.AccountID, "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, status, authResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		Account:     res.Account,
		Role:        res.Role,
		Degraded:    res.Degraded,
	})
}
