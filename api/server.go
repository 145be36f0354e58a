/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/entries/*        Entry commands, queries and event history
  /api/approvals/*      Monthly approval workflow
  /api/decisions/*      Daily supervisor decisions
  /api/members/*        Directory, daily totals, rejection log
  /api/organizations/*  Fiscal calendar resolution
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Admin operations (dev only)
  /*                    Landing page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
			r.Post("/{id}/status", h.ChangeEntryStatus)
			r.Get("/{id}/history", h.EntryHistory)
			r.Get("/{id}/decision", h.EntryDecision)
			r.Post("/{id}/reject", h.RejectEntry)
		})

		// Monthly approval routes
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", h.FindApproval)
			r.Post("/submit", h.SubmitMonth)
			r.Get("/{id}", h.GetApproval)
			r.Post("/{id}/approve", h.ApproveMonth)
			r.Post("/{id}/reject", h.RejectMonth)
		})

		// Daily decision routes
		r.Route("/decisions", func(r chi.Router) {
			r.Post("/approve", h.ApproveEntries)
			r.Get("/{id}", h.GetDecision)
			r.Post("/{id}/recall", h.RecallDecision)
		})

		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Get("/{id}/daily-total", h.DailyTotal)
			r.Get("/{id}/rejections", h.MemberRejections)
		})

		// Fiscal calendar routes
		r.Route("/organizations", func(r chi.Router) {
			r.Get("/{id}/date-info", h.DateInfo)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Landing page with endpoint index
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Worklog Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Worklog Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/members">/api/members</a> - Directory listing</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
<li>/api/entries - Work-log entries (see README for the full surface)</li>
<li>/api/approvals - Monthly approval workflow</li>
<li>/api/decisions - Daily supervisor decisions</li>
</ul>
</body>
</html>`))
	})

	return r
}
