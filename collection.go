package conventions

import (
	"reflect"
	"slices"
	"sync"
)

// Collection is an ordered list of service descriptors. Each bucket owns one
// Collection; the builder's Services() is the core bucket's collection.
//
// Descriptors keep their insertion order. When several descriptors share a
// service type and name, the last one added wins at registration time.
//
// Collection is meant to be filled from a single goroutine before Build.
//
// Example:
//
//	services := conventions.NewCollection()
//	services.AddSingleton(NewClock)
//	services.AddScoped(NewUnitOfWork)
//	services.AddTransient(NewCommand, conventions.As(new(Command)))
type Collection interface {
	// Add appends a validated descriptor.
	Add(d Descriptor) error

	// AddModules applies one or more modules to the collection.
	AddModules(modules ...ModuleOption) error

	// AddSingleton registers a constructor with Singleton lifetime.
	AddSingleton(constructor any, opts ...AddOption) error

	// AddScoped registers a constructor with Scoped lifetime.
	AddScoped(constructor any, opts ...AddOption) error

	// AddTransient registers a constructor with Transient lifetime.
	AddTransient(constructor any, opts ...AddOption) error

	// AddInstance registers a pre-built value as a Singleton.
	AddInstance(instance any, opts ...AddOption) error

	// AddFactory registers a factory that receives the resolving scope's
	// ServiceProvider.
	AddFactory(serviceType reflect.Type, lifetime Lifetime, factory FactoryFunc, opts ...AddOption) error

	// AddType registers a struct type whose exported fields are injected.
	AddType(serviceType, implementationType reflect.Type, lifetime Lifetime, opts ...AddOption) error

	// Contains reports whether an unnamed descriptor for serviceType exists.
	Contains(serviceType reflect.Type) bool

	// ContainsKeyed reports whether a descriptor with the given name exists.
	ContainsKeyed(serviceType reflect.Type, name string) bool

	// Remove deletes every descriptor for serviceType, named or not, and
	// returns how many were removed.
	Remove(serviceType reflect.Type) int

	// RemoveKeyed deletes the descriptors registered under name.
	RemoveKeyed(serviceType reflect.Type, name string) int

	// ToSlice returns a copy of the descriptors in insertion order.
	ToSlice() []Descriptor

	// Count returns the number of descriptors.
	Count() int
}

type collection struct {
	mu          sync.RWMutex
	descriptors []Descriptor
}

// NewCollection creates an empty Collection.
func NewCollection() Collection {
	return &collection{}
}

func (c *collection) Add(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return RegistrationError{ServiceType: d.ServiceType, Name: d.Name, Operation: "add", Cause: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = append(c.descriptors, d)
	return nil
}

func (c *collection) AddModules(modules ...ModuleOption) error {
	for _, module := range modules {
		if module == nil {
			continue
		}

		if err := module(c); err != nil {
			return err
		}
	}

	return nil
}

func (c *collection) AddSingleton(constructor any, opts ...AddOption) error {
	return c.addConstructor(constructor, Singleton, opts)
}

func (c *collection) AddScoped(constructor any, opts ...AddOption) error {
	return c.addConstructor(constructor, Scoped, opts)
}

func (c *collection) AddTransient(constructor any, opts ...AddOption) error {
	return c.addConstructor(constructor, Transient, opts)
}

func (c *collection) addConstructor(constructor any, lifetime Lifetime, opts []AddOption) error {
	if constructor == nil {
		return RegistrationError{Operation: "add", Cause: ErrConstructorNil}
	}

	options, err := newAddOptions(opts)
	if err != nil {
		return RegistrationError{Operation: "add", Cause: err}
	}

	result, err := constructorResult(reflect.TypeOf(constructor))
	if err != nil {
		return RegistrationError{Operation: "add", Cause: ValidationError{Cause: err}}
	}

	return c.Add(Descriptor{
		ServiceType: options.serviceType(result),
		Name:        options.Name,
		Lifetime:    lifetime,
		Constructor: constructor,
	})
}

func (c *collection) AddInstance(instance any, opts ...AddOption) error {
	if instance == nil {
		return RegistrationError{Operation: "add", Cause: ValidationError{Cause: ErrNoImplementation}}
	}

	options, err := newAddOptions(opts)
	if err != nil {
		return RegistrationError{Operation: "add", Cause: err}
	}

	return c.Add(Descriptor{
		ServiceType: options.serviceType(reflect.TypeOf(instance)),
		Name:        options.Name,
		Lifetime:    Singleton,
		Instance:    instance,
	})
}

func (c *collection) AddFactory(serviceType reflect.Type, lifetime Lifetime, factory FactoryFunc, opts ...AddOption) error {
	options, err := newAddOptions(opts)
	if err != nil {
		return RegistrationError{ServiceType: serviceType, Operation: "add", Cause: err}
	}

	return c.Add(Descriptor{
		ServiceType: options.serviceType(serviceType),
		Name:        options.Name,
		Lifetime:    lifetime,
		Factory:     factory,
	})
}

func (c *collection) AddType(serviceType, implementationType reflect.Type, lifetime Lifetime, opts ...AddOption) error {
	options, err := newAddOptions(opts)
	if err != nil {
		return RegistrationError{ServiceType: serviceType, Operation: "add", Cause: err}
	}

	return c.Add(Descriptor{
		ServiceType:        options.serviceType(serviceType),
		Name:               options.Name,
		Lifetime:           lifetime,
		ImplementationType: implementationType,
	})
}

func (c *collection) Contains(serviceType reflect.Type) bool {
	return c.ContainsKeyed(serviceType, "")
}

func (c *collection) ContainsKeyed(serviceType reflect.Type, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := serviceKey{Type: serviceType, Name: name}
	return slices.ContainsFunc(c.descriptors, func(d Descriptor) bool {
		return d.key() == key
	})
}

func (c *collection) Remove(serviceType reflect.Type) int {
	return c.removeWhere(func(d Descriptor) bool {
		return d.ServiceType == serviceType
	})
}

func (c *collection) RemoveKeyed(serviceType reflect.Type, name string) int {
	key := serviceKey{Type: serviceType, Name: name}
	return c.removeWhere(func(d Descriptor) bool {
		return d.key() == key
	})
}

func (c *collection) removeWhere(match func(Descriptor) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.descriptors)
	c.descriptors = slices.DeleteFunc(c.descriptors, match)
	return before - len(c.descriptors)
}

func (c *collection) ToSlice() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.descriptors)
}

func (c *collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.descriptors)
}

// AddInstanceOf registers instance as a Singleton resolved as T. Use it to
// register a value under an interface type.
//
//	conventions.AddInstanceOf[Clock](services, fixedClock{})
func AddInstanceOf[T any](c Collection, instance T, opts ...AddOption) error {
	return c.Add(Descriptor{
		ServiceType: reflect.TypeFor[T](),
		Name:        nameOf(opts),
		Lifetime:    Singleton,
		Instance:    instance,
	})
}

// AddFactoryOf registers a typed factory for T.
func AddFactoryOf[T any](c Collection, lifetime Lifetime, factory func(ServiceProvider) (T, error), opts ...AddOption) error {
	if factory == nil {
		return RegistrationError{ServiceType: reflect.TypeFor[T](), Operation: "add", Cause: ErrConstructorNil}
	}

	return c.AddFactory(reflect.TypeFor[T](), lifetime, func(sp ServiceProvider) (any, error) {
		return factory(sp)
	}, opts...)
}

// AddTypeOf registers TImpl as the implementation of TService. TImpl must
// be a struct or pointer to struct; its exported fields are injected.
func AddTypeOf[TService, TImpl any](c Collection, lifetime Lifetime, opts ...AddOption) error {
	return c.AddType(reflect.TypeFor[TService](), reflect.TypeFor[TImpl](), lifetime, opts...)
}

func nameOf(opts []AddOption) string {
	options := &addOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyAddOption(options)
		}
	}
	return options.Name
}
