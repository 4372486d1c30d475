package http

import (
	"net/http"
)

// RouterConfig lists the handlers served by NewRouter. Nil handlers leave
// their routes unregistered. RequireSession guards every route except
// registration and login.
type RouterConfig struct {
	Auth           *AuthHandler
	Users          *UserHandler
	Rooms          *RoomHandler
	Bookings       *BookingHandler
	Events         *EventHandler
	RequireSession func(http.Handler) http.Handler
	Middleware     []func(http.Handler) http.Handler
}

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
		mux.HandleFunc("POST /auth/register", cfg.Auth.Register)
		mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
		private("POST /auth/logout", cfg.Auth.Logout)
	}

	if cfg.Users != nil {
		private("GET /users", cfg.Users.List)
	}

	if cfg.Rooms != nil {
		private("GET /rooms", cfg.Rooms.List)
		private("POST /rooms", cfg.Rooms.Create)
		private("PUT /rooms/{id}", cfg.Rooms.Update)
		private("DELETE /rooms/{id}", cfg.Rooms.Delete)
		private("GET /rooms/{id}/bookings", cfg.Rooms.Bookings)
		private("GET /rooms/{id}/availability", cfg.Rooms.Availability)
		private("GET /rooms-with-bookings", cfg.Rooms.ListWithBookings)
	}

	if cfg.Bookings != nil {
		private("GET /bookings", cfg.Bookings.ListMine)
		private("POST /bookings", cfg.Bookings.Create)
		private("GET /bookings/{id}", cfg.Bookings.Get)
		private("PUT /bookings/{id}", cfg.Bookings.Update)
		private("DELETE /bookings/{id}", cfg.Bookings.Delete)
	}

	if cfg.Events != nil {
		private("GET /events", cfg.Events.List)
		private("POST /events", cfg.Events.Create)
		private("GET /events/{id}", cfg.Events.Get)
		private("PUT /events/{id}", cfg.Events.Update)
		private("DELETE /events/{id}", cfg.Events.Delete)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
