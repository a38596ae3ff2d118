// Package chi serves HTTP requests from scopes built by a conventions
// builder, using the Chi router's middleware shape.
//
// Every request gets its own scope derived from a built scope, usually the
// application scope of an Artifact. Scoped services resolve to one instance
// per request; singletons are shared.
//
//	artifact, _ := builder.Build()
//
//	r := convchi.NewRouter(artifact.Application)
//	r.Get("/orders/{id}", convchi.Handle((*OrderController).Get))
package chi

import (
	"log/slog"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/junioryono/conventions"
)

// Initializer runs against the request scope before the next handler.
type Initializer func(scope conventions.Scope, r *http.Request) error

// Config holds the configuration for the scope middleware.
type Config struct {
	// Logger receives scope errors the default handlers report.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// ErrorHandler writes the response when the request scope cannot be
	// created or an initializer fails. Defaults to 500.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler receives errors from closing the request scope.
	CloseErrorHandler func(*http.Request, error)

	// Initializers run in order after the scope is created.
	Initializers []Initializer
}

// Option configures the scope middleware.
type Option func(*Config)

// WithLogger sets the logger of the default error handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithErrorHandler sets the handler for scope creation and initializer
// failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the handler for scope close failures.
func WithCloseErrorHandler(h func(*http.Request, error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithInitializer adds an initializer. Initializers run in the order they
// were added; the first failure ends the request.
func WithInitializer(fn Initializer) Option {
	return func(c *Config) {
		if fn != nil {
			c.Initializers = append(c.Initializers, fn)
		}
	}
}

func newConfig(opts []Option) *Config {
	cfg := &Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.ErrorHandler == nil {
		logger := cfg.Logger
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("request scope failed", "path", r.URL.Path, "route", route(r), "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	if cfg.CloseErrorHandler == nil {
		logger := cfg.Logger
		cfg.CloseErrorHandler = func(r *http.Request, err error) {
			logger.Error("failed to close request scope", "path", r.URL.Path, "route", route(r), "error", err)
		}
	}
	return cfg
}

// ScopeMiddleware derives a scope from parent for each request, attaches it
// to the request context and closes it once the next handler returns.
// Handlers retrieve it with conventions.FromContext or RequestScope.
func ScopeMiddleware(parent conventions.Scope, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, err := parent.CreateScope(r.Context())
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}
			defer func() {
				if err := scope.Close(); err != nil {
					cfg.CloseErrorHandler(r, err)
				}
			}()

			r = r.WithContext(scope.Context())

			for _, init := range cfg.Initializers {
				if err := init(scope, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter returns a chi router with ScopeMiddleware installed for parent.
func NewRouter(parent conventions.Scope, opts ...Option) chirouter.Router {
	r := chirouter.NewRouter()
	r.Use(ScopeMiddleware(parent, opts...))
	return r
}

// route returns the matched route pattern, or "" outside a chi router.
func route(r *http.Request) string {
	if rctx := chirouter.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// RequestScope returns the scope ScopeMiddleware attached to r.
func RequestScope(r *http.Request) (conventions.Scope, error) {
	return conventions.FromContext(r.Context())
}

// HandlerConfig holds the configuration of Handle.
type HandlerConfig struct {
	Logger *slog.Logger

	// PanicRecovery turns panics in the controller method into a call to
	// PanicHandler.
	PanicRecovery bool
	PanicHandler  func(http.ResponseWriter, *http.Request, any)

	// ScopeErrorHandler runs when the request carries no usable scope.
	ScopeErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler runs when the controller cannot be resolved.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// HandlerOption configures Handle.
type HandlerOption func(*HandlerConfig)

// WithHandlerLogger sets the logger of the default handlers.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithPanicRecovery enables or disables panic recovery.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for recovered panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the handler for missing request scopes.
func WithScopeErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the handler for controller resolution
// failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

func newHandlerConfig(opts []HandlerOption) *HandlerConfig {
	cfg := &HandlerConfig{Logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.Logger
	internalError := func(w http.ResponseWriter) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}

	if cfg.PanicHandler == nil {
		cfg.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
			logger.Error("panic in handler", "path", r.URL.Path, "route", route(r), "panic", v)
			internalError(w)
		}
	}
	if cfg.ScopeErrorHandler == nil {
		cfg.ScopeErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("no request scope", "path", r.URL.Path, "route", route(r), "error", err)
			internalError(w)
		}
	}
	if cfg.ResolutionErrorHandler == nil {
		cfg.ResolutionErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("failed to resolve controller", "path", r.URL.Path, "route", route(r), "error", err)
			internalError(w)
		}
	}
	return cfg
}

// Handle adapts a controller method to an http.HandlerFunc. The controller
// T is resolved from the request scope on every request, so a Scoped
// controller is built once per request.
//
//	type OrderController struct {
//	    Orders *OrderService
//	}
//
//	func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) { ... }
//
//	r.Get("/orders/{id}", convchi.Handle((*OrderController).Get))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := newHandlerConfig(opts)

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		scope, err := RequestScope(r)
		if err != nil {
			cfg.ScopeErrorHandler(w, r, err)
			return
		}

		controller, err := conventions.Resolve[T](scope)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
