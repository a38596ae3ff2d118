package conventions

import (
	"log/slog"

	"github.com/junioryono/conventions/config"
	"github.com/junioryono/conventions/logging"
	"go.uber.org/dig"
)

// Option configures a Builder or ServicesBuilder.
type Option interface {
	apply(*options)
}

type options struct {
	logger           *slog.Logger
	catalogs         []Catalog
	properties       *Properties
	containerOptions []dig.Option
	registry         *Registry
	validateScopes   *bool
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func newOptions(cfg config.Configuration, opts []Option) (*options, error) {
	o := &options{
		containerOptions: []dig.Option{dig.RecoverFromPanics()},
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}

	if o.logger == nil {
		logger, err := defaultLogger(cfg)
		if err != nil {
			return nil, err
		}
		o.logger = logger
	}
	if o.properties == nil {
		o.properties = NewProperties()
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	return o, nil
}

// defaultLogger reads the "logging" section of cfg. Without one, nothing is
// logged.
func defaultLogger(cfg config.Configuration) (*slog.Logger, error) {
	if len(cfg.Section("logging").Keys()) == 0 {
		return logging.Nop(), nil
	}

	logger, err := logging.FromConfiguration(cfg, nil)
	if err != nil {
		return nil, ArgumentError{Argument: "configuration", Cause: err}
	}
	return logger, nil
}

// WithLogger sets the logger used for composition and build diagnostics.
// The default is built from the "logging" configuration section and
// discards everything when that section is empty.
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithScopeValidation turns the check that singletons do not capture scoped
// services on or off. By default it runs in the Development environment
// only.
func WithScopeValidation(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.validateScopes = &enabled
	})
}

// WithCatalog scans catalog into the builder's registry when the builder
// is created. It may be given several times.
func WithCatalog(catalog Catalog) Option {
	return optionFunc(func(o *options) {
		if catalog != nil {
			o.catalogs = append(o.catalogs, catalog)
		}
	})
}

// WithProperties shares an existing property bag with the builder.
func WithProperties(properties *Properties) Option {
	return optionFunc(func(o *options) {
		o.properties = properties
	})
}

// WithRegistry makes the builder compose an existing registry instead of a
// new one.
func WithRegistry(registry *Registry) Option {
	return optionFunc(func(o *options) {
		o.registry = registry
	})
}

// WithContainerOptions replaces the options the root dig container is
// created with. The default is dig.RecoverFromPanics().
//
// Example:
//
//	builder, err := conventions.NewBuilder(services, cfg, env,
//	    conventions.WithContainerOptions(dig.DeferAcyclicVerification()),
//	)
func WithContainerOptions(opts ...dig.Option) Option {
	return optionFunc(func(o *options) {
		o.containerOptions = opts
	})
}
