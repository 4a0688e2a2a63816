package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homelink/homelink-core/internal/directory"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Entry paths (no auth required)
		r.Post("/auth/signup/{role}", s.handleSignUp)
		r.Post("/auth/signin/{role}", s.handleSignIn)
		r.Post("/auth/social/{role}", s.handleSocial)
		r.Post("/auth/signout", s.handleSignOut)

		// Hub session view (no auth required; mirrors the wall panel)
		r.Get("/session", s.handleSession)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/home", func(r chi.Router) {
				// Any household member
				r.Group(func(r chi.Router) {
					r.Use(s.requireRole(""))

					r.Get("/", s.handleOverview)
					r.Get("/rooms", s.handleListRooms)
					r.Get("/devices", s.handleListDevices)
					r.Put("/devices/{id}/status", s.handleUpdateDeviceStatus)
					r.Get("/activity", s.handleListActivity)
					r.Get("/members", s.handleListMembers)
				})

				// Admin only
				r.Group(func(r chi.Router) {
					r.Use(s.requireRole(directory.RoleAdmin))

					r.Post("/rooms", s.handleCreateRoom)
					r.Post("/devices", s.handleCreateDevice)
					r.Post("/activity", s.handleAddActivity)
					r.Put("/members/{id}/access", s.handleSetMemberAccess)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
