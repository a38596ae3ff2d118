package conventions

import (
	"fmt"
	"reflect"
	"strings"
)

// FactoryFunc builds a service. The provider it receives is the scope that
// owns the registration and may be used while the factory runs.
type FactoryFunc func(ServiceProvider) (any, error)

// ImplementationKind identifies which implementation a Descriptor carries.
type ImplementationKind int

const (
	// NoImplementation marks a descriptor without an implementation.
	NoImplementation ImplementationKind = iota

	// ConstructorImplementation is a constructor function whose parameters
	// are resolved from the container.
	ConstructorImplementation

	// TypeImplementation is a struct type whose exported fields are injected.
	TypeImplementation

	// FactoryImplementation is a FactoryFunc.
	FactoryImplementation

	// InstanceImplementation is a pre-built value returned unchanged.
	InstanceImplementation
)

func (k ImplementationKind) String() string {
	switch k {
	case ConstructorImplementation:
		return "Constructor"
	case TypeImplementation:
		return "Type"
	case FactoryImplementation:
		return "Factory"
	case InstanceImplementation:
		return "Instance"
	default:
		return "None"
	}
}

// Descriptor declares a service registration independently of the
// container API. Exactly one of Constructor, ImplementationType, Factory or
// Instance must be set.
//
// Descriptors are values: collections store and return copies.
type Descriptor struct {
	// ServiceType is the type the service is resolved as.
	ServiceType reflect.Type

	// Name is optional and registers a named service.
	Name string

	// Lifetime determines instance sharing.
	Lifetime Lifetime

	// Constructor is a function returning the service, optionally followed
	// by an error.
	Constructor any

	// ImplementationType is a struct, or pointer to struct, whose exported
	// fields are resolved from the container. Fields tagged inject:"-" are
	// skipped; name:"..." and optional:"true" tags are honoured.
	ImplementationType reflect.Type

	// Factory builds the service from a ServiceProvider.
	Factory FactoryFunc

	// Instance is returned as-is.
	Instance any
}

// serviceKey identifies a registration inside one scope.
type serviceKey struct {
	Type reflect.Type
	Name string
}

func (k serviceKey) String() string {
	if k.Name != "" {
		return fmt.Sprintf("%s[%s]", formatType(k.Type), k.Name)
	}
	return formatType(k.Type)
}

func (d Descriptor) key() serviceKey {
	return serviceKey{Type: d.ServiceType, Name: d.Name}
}

// Kind reports which implementation d carries. It returns NoImplementation
// when none or several are set.
func (d Descriptor) Kind() ImplementationKind {
	kind := NoImplementation
	count := 0

	if d.Constructor != nil {
		kind = ConstructorImplementation
		count++
	}
	if d.ImplementationType != nil {
		kind = TypeImplementation
		count++
	}
	if d.Factory != nil {
		kind = FactoryImplementation
		count++
	}
	if d.Instance != nil {
		kind = InstanceImplementation
		count++
	}

	if count != 1 {
		return NoImplementation
	}
	return kind
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Lifetime, d.key(), d.Kind())
}

// Validate checks that d can be registered.
func (d Descriptor) Validate() error {
	if d.ServiceType == nil {
		return ValidationError{Cause: ErrServiceTypeNil}
	}

	if !d.Lifetime.IsValid() {
		return ValidationError{ServiceType: d.ServiceType, Cause: LifetimeError{Value: d.Lifetime}}
	}

	if strings.ContainsRune(d.Name, '`') {
		return ValidationError{
			ServiceType: d.ServiceType,
			Cause:       fmt.Errorf("invalid name %q: names cannot contain backquotes", d.Name),
		}
	}

	set := 0
	for _, ok := range []bool{d.Constructor != nil, d.ImplementationType != nil, d.Factory != nil, d.Instance != nil} {
		if ok {
			set++
		}
	}
	switch {
	case set == 0:
		return ValidationError{ServiceType: d.ServiceType, Cause: ErrNoImplementation}
	case set > 1:
		return ValidationError{ServiceType: d.ServiceType, Cause: ErrMultipleImplementations}
	}

	switch d.Kind() {
	case ConstructorImplementation:
		result, err := constructorResult(reflect.TypeOf(d.Constructor))
		if err != nil {
			return ValidationError{ServiceType: d.ServiceType, Cause: err}
		}
		return checkAssignable(d.ServiceType, result)

	case TypeImplementation:
		impl := d.ImplementationType
		base := impl
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		if base.Kind() != reflect.Struct {
			return ValidationError{
				ServiceType: d.ServiceType,
				Cause:       fmt.Errorf("implementation type %s must be a struct or pointer to struct", formatType(impl)),
			}
		}
		return checkAssignable(d.ServiceType, impl)

	case InstanceImplementation:
		return checkAssignable(d.ServiceType, reflect.TypeOf(d.Instance))
	}

	return nil
}

func checkAssignable(service, impl reflect.Type) error {
	if impl.AssignableTo(service) {
		return nil
	}

	return ValidationError{
		ServiceType: service,
		Cause:       fmt.Errorf("%w: %s", ErrNotAssignable, formatType(impl)),
	}
}

var errorType = reflect.TypeFor[error]()

// constructorResult returns the service type produced by a constructor of
// shape func(...) T or func(...) (T, error).
func constructorResult(fnType reflect.Type) (reflect.Type, error) {
	if fnType == nil {
		return nil, ErrConstructorNil
	}
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, got %s", ErrConstructorNotFunc, formatType(fnType))
	}

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errorType {
			return nil, ErrConstructorNoResult
		}
	case 2:
		if fnType.Out(0) == errorType || fnType.Out(1) != errorType {
			return nil, fmt.Errorf("%w: expected func(...) (T, error), got %s", ErrConstructorNoResult, fnType)
		}
	default:
		return nil, fmt.Errorf("%w: expected func(...) T or func(...) (T, error), got %s", ErrConstructorNoResult, fnType)
	}

	return fnType.Out(0), nil
}
