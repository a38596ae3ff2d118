package conventions

import (
	"fmt"
	"reflect"
)

// Resolve resolves a service of type T from the provider.
//
// Example:
//
//	logger, err := conventions.Resolve[Logger](artifact.Application)
func Resolve[T any](provider ServiceProvider) (T, error) {
	var zero T
	if provider == nil {
		return zero, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := provider.Resolve(serviceType)
	if err != nil {
		return zero, err
	}
	return assertService[T](service, serviceType)
}

// MustResolve resolves a service of type T from the provider and panics if
// resolution fails.
func MustResolve[T any](provider ServiceProvider) T {
	service, err := Resolve[T](provider)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve service: %v", err))
	}
	return service
}

// ResolveKeyed resolves the service of type T registered under name.
//
// Example:
//
//	cache, err := conventions.ResolveKeyed[Cache](scope, "redis")
func ResolveKeyed[T any](provider ServiceProvider, name string) (T, error) {
	var zero T
	if provider == nil {
		return zero, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := provider.ResolveKeyed(serviceType, name)
	if err != nil {
		return zero, err
	}
	return assertService[T](service, serviceType)
}

// ResolveOptional resolves a service of type T. The boolean is false when
// no service is registered for T.
func ResolveOptional[T any](provider ServiceProvider) (T, bool, error) {
	var zero T
	if provider == nil {
		return zero, false, ErrProviderNil
	}

	serviceType := reflect.TypeFor[T]()
	service, err := provider.ResolveOptional(serviceType)
	if err != nil || service == nil {
		return zero, false, err
	}

	result, err := assertService[T](service, serviceType)
	if err != nil {
		return zero, false, err
	}
	return result, true, nil
}

// Invoke calls fn with its parameters resolved from the provider.
func Invoke(provider ServiceProvider, fn any) error {
	if provider == nil {
		return ErrProviderNil
	}
	return provider.Invoke(fn)
}

func assertService[T any](service any, serviceType reflect.Type) (T, error) {
	var zero T
	if service == nil {
		return zero, nil
	}

	result, ok := service.(T)
	if !ok {
		return zero, TypeMismatchError{
			Expected: serviceType,
			Actual:   reflect.TypeOf(service),
			Context:  "type assertion",
		}
	}
	return result, nil
}
