package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

// Router is the interface handlers use to declare routes.
type Router interface {
	GET(path string, h HandlerFunc, mw ...Middleware)
	POST(path string, h HandlerFunc, mw ...Middleware)
	PUT(path string, h HandlerFunc, mw ...Middleware)
	PATCH(path string, h HandlerFunc, mw ...Middleware)
	DELETE(path string, h HandlerFunc, mw ...Middleware)

	// Route creates a route group with a pattern prefix.
	Route(pattern string, fn func(r Router))

	// Use appends middleware to the router's middleware stack.
	Use(mw ...Middleware)

	// Mount attaches a raw http.Handler at the given pattern (e.g. /metrics).
	Mount(pattern string, h http.Handler)
}

// Deps are the per-request construction dependencies a RouterAdapter closes
// over: the logger every Context is built with and the error handler invoked
// when a HandlerFunc returns a non-nil error.
type Deps struct {
	Logger  *slog.Logger
	OnError func(Context, error)
}

// RouterAdapter wraps chi.Router to implement Router.
type RouterAdapter struct {
	Chi  chi.Router
	Deps Deps
}

func (r *RouterAdapter) GET(path string, h HandlerFunc, mw ...Middleware) {
	r.Chi.Get(path, r.wrap(h, mw...))
}

func (r *RouterAdapter) POST(path string, h HandlerFunc, mw ...Middleware) {
	r.Chi.Post(path, r.wrap(h, mw...))
}

func (r *RouterAdapter) PUT(path string, h HandlerFunc, mw ...Middleware) {
	r.Chi.Put(path, r.wrap(h, mw...))
}

func (r *RouterAdapter) PATCH(path string, h HandlerFunc, mw ...Middleware) {
	r.Chi.Patch(path, r.wrap(h, mw...))
}

func (r *RouterAdapter) DELETE(path string, h HandlerFunc, mw ...Middleware) {
	r.Chi.Delete(path, r.wrap(h, mw...))
}

func (r *RouterAdapter) Route(pattern string, fn func(Router)) {
	r.Chi.Route(pattern, func(cr chi.Router) {
		fn(&RouterAdapter{Chi: cr, Deps: r.Deps})
	})
}

func (r *RouterAdapter) Use(mw ...Middleware) {
	for _, m := range mw {
		r.Chi.Use(r.adaptMiddleware(m))
	}
}

func (r *RouterAdapter) Mount(pattern string, h http.Handler) {
	r.Chi.Mount(pattern, h)
}

func (r *RouterAdapter) wrap(h HandlerFunc, mw ...Middleware) http.HandlerFunc {
	mw = slices.Clone(mw)
	slices.Reverse(mw)
	for _, m := range mw {
		h = m(h)
	}
	return r.adaptHandler(h)
}

func (r *RouterAdapter) adaptHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		c := NewContext(w, req, r.Deps.Logger)
		if err := h(c); err != nil {
			r.Deps.OnError(c, err)
		}
	}
}

// adaptMiddleware converts an api.Middleware to a chi-compatible
// func(http.Handler) http.Handler, so route-level and router-level
// middleware compose uniformly.
func (r *RouterAdapter) adaptMiddleware(mw Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			nextFunc := func(c Context) error {
				next.ServeHTTP(c.Response(), c.Request())
				return nil
			}
			wrapped := mw(nextFunc)
			c := NewContext(w, req, r.Deps.Logger)
			if err := wrapped(c); err != nil {
				r.Deps.OnError(c, err)
			}
		})
	}
}
