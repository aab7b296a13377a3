package http

import (
	"net/http"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Spaces   *SpaceHandler
	Bookings *BookingHandler
	// RequireSession wraps every route that needs an authenticated principal.
	RequireSession func(http.Handler) http.Handler
	Middleware     []func(http.Handler) http.Handler
}

// NewRouter registers the JSON API on a method-aware ServeMux. Unmatched
// methods on a known path receive 405 with an Allow header from the mux.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := cfg.RequireSession
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /signup", cfg.Auth.Signup)
		mux.HandleFunc("POST /login", cfg.Auth.Login)
		mux.HandleFunc("POST /logout", cfg.Auth.Logout)
	}

	if cfg.Spaces != nil {
		mux.HandleFunc("GET /spaces", cfg.Spaces.List)
		mux.HandleFunc("GET /spaces/{id}", cfg.Spaces.Get)
		private("POST /spaces", cfg.Spaces.Create)
		private("PUT /spaces/{id}", cfg.Spaces.Update)
		private("DELETE /spaces/{id}", cfg.Spaces.Delete)
		private("POST /spaces/{id}/availability", cfg.Spaces.SetAvailability)
		private("POST /spaces/{id}/images", cfg.Spaces.AddImage)
		private("GET /host/spaces", cfg.Spaces.ListOwned)
	}

	if cfg.Bookings != nil {
		private("POST /spaces/{id}/bookings", cfg.Bookings.Create)
		private("GET /spaces/{id}/conflicts", cfg.Bookings.Conflicts)
		private("GET /bookings/{id}", cfg.Bookings.Get)
		private("POST /bookings/{id}/approve", cfg.Bookings.Approve)
		private("POST /bookings/{id}/decline", cfg.Bookings.Decline)
		private("POST /bookings/{id}/cancel", cfg.Bookings.Cancel)
		private("GET /my-bookings", cfg.Bookings.ListMine)
		private("GET /host/bookings", cfg.Bookings.ListHosted)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
