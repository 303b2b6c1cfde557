package server

import (
	"net/http"
	"sort"
	"strings"
)

// BasicRouter implements [Router] on top of [http.ServeMux].
//
// Method routes use the mux's "METHOD /path" patterns, so a request with the wrong method gets a
// 405 with an Allow header from the mux itself.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	patterns    []string
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use appends [Middleware]. The first added is the outermost.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method and path, wrapped in the middleware stack.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	pattern := strings.ToUpper(method) + " " + path
	r.mux.Handle(pattern, r.Apply(handler))
	r.patterns = append(r.patterns, pattern)
}

// Handler registers every route of a [Handler] for all methods.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
		r.patterns = append(r.patterns, route)
	}
}

// Patterns lists the registered patterns, sorted.
func (r *BasicRouter) Patterns() []string {
	out := append([]string(nil), r.patterns...)
	sort.Strings(out)
	return out
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler so middleware runs in the order it was added.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}
