package conventions

import (
	"fmt"
	"reflect"
	"strings"
)

// ModuleOption represents a registration action within a module.
type ModuleOption func(Collection) error

// NewModule creates a new module with the given name and builders.
// Modules group related registrations so a convention can add them to a
// bucket in one call.
//
// Example:
//
//	var StorageModule = conventions.NewModule("storage",
//	    conventions.AddSingleton(NewConnectionPool),
//	    conventions.AddScoped(NewUnitOfWork),
//	    conventions.AddTransient(NewQuery, conventions.As(new(Query))),
//	)
//
//	var AppModule = conventions.NewModule("app",
//	    StorageModule,
//	    conventions.AddScoped(NewOrderService),
//	)
func NewModule(name string, builders ...ModuleOption) ModuleOption {
	return func(s Collection) error {
		for _, builder := range builders {
			if builder == nil {
				continue
			}

			if err := builder(s); err != nil {
				return ModuleError{Module: name, Cause: err}
			}
		}

		return nil
	}
}

// AddSingleton creates a ModuleOption for adding a singleton service.
func AddSingleton(constructor any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddSingleton(constructor, opts...)
	}
}

// AddScoped creates a ModuleOption for adding a scoped service.
func AddScoped(constructor any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddScoped(constructor, opts...)
	}
}

// AddTransient creates a ModuleOption for adding a transient service.
func AddTransient(constructor any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddTransient(constructor, opts...)
	}
}

// AddInstance creates a ModuleOption for adding a pre-built instance.
func AddInstance(instance any, opts ...AddOption) ModuleOption {
	return func(s Collection) error {
		return s.AddInstance(instance, opts...)
	}
}

// ModuleConvention returns a service convention that adds modules to the
// named bucket when it is composed.
func ModuleConvention(bucket BucketName, modules ...ModuleOption) ServiceConvention {
	return ServiceConventionFunc(func(ctx Context) error {
		b := ctx.Bucket(bucket)
		if b == nil {
			return ArgumentError{Argument: "bucket", Cause: fmt.Errorf("unknown bucket %q", bucket)}
		}
		return b.Services().AddModules(modules...)
	})
}

// An AddOption modifies the descriptor created by the Add methods of a
// Collection.
type AddOption interface {
	applyAddOption(*addOptions)
}

type addOptions struct {
	Name  string
	As    any
	asSet bool
}

func (o *addOptions) Validate() error {
	// Names end up inside a struct tag, which cannot contain backquotes.
	if strings.ContainsRune(o.Name, '`') {
		return fmt.Errorf("invalid conventions.Name(%q): names cannot contain backquotes", o.Name)
	}

	if !o.asSet {
		return nil
	}

	t := reflect.TypeOf(o.As)
	if t == nil {
		return fmt.Errorf("invalid conventions.As(nil): argument must be a pointer to an interface")
	}
	if t.Kind() != reflect.Pointer {
		return fmt.Errorf("invalid conventions.As(%v): argument must be a pointer to an interface", t)
	}
	if t.Elem().Kind() != reflect.Interface {
		return fmt.Errorf("invalid conventions.As(*%v): argument must be a pointer to an interface", t.Elem())
	}
	return nil
}

func (o *addOptions) serviceType(fallback reflect.Type) reflect.Type {
	if o.As != nil {
		return reflect.TypeOf(o.As).Elem()
	}
	return fallback
}

func newAddOptions(opts []AddOption) (*addOptions, error) {
	options := &addOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyAddOption(options)
		}
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// Name is an AddOption that registers the service under the given name.
// Named services are resolved with ResolveKeyed or injected with a
// name:"..." struct tag.
//
//	c.AddSingleton(NewReadOnlyConnection, conventions.Name("ro"))
//	c.AddSingleton(NewReadWriteConnection, conventions.Name("rw"))
func Name(name string) AddOption {
	return addNameOption(name)
}

type addNameOption string

func (o addNameOption) String() string {
	return fmt.Sprintf("Name(%q)", string(o))
}

func (o addNameOption) applyAddOption(opt *addOptions) {
	opt.Name = string(o)
}

// As is an AddOption that registers the service as the interface pointed to
// by iface instead of the constructor's result type.
//
//	c.AddSingleton(NewFileStore, conventions.As(new(Store)))
func As(iface any) AddOption {
	return addAsOption{iface: iface}
}

type addAsOption struct {
	iface any
}

func (o addAsOption) String() string {
	if t := reflect.TypeOf(o.iface); t != nil && t.Kind() == reflect.Pointer {
		return fmt.Sprintf("As(%s)", t.Elem())
	}
	return fmt.Sprintf("As(%v)", o.iface)
}

func (o addAsOption) applyAddOption(opts *addOptions) {
	opts.As = o.iface
	opts.asSet = true
}
