package conventions

import (
	"reflect"
)

// ServiceConvention registers services into the buckets exposed by the
// Context. Register is called exactly once per Build.
type ServiceConvention interface {
	Register(ctx Context) error
}

// ContainerConvention configures the container through the Context, usually
// with ConfigureContainer actions on a bucket.
type ContainerConvention interface {
	RegisterContainer(ctx Context) error
}

// ServiceConventionFunc is a service delegate. It also satisfies
// ServiceConvention. A plain func(Context) error is treated the same way.
type ServiceConventionFunc func(ctx Context) error

// Register calls f(ctx).
func (f ServiceConventionFunc) Register(ctx Context) error { return f(ctx) }

// ContainerConventionFunc is a container delegate. It also satisfies
// ContainerConvention.
type ContainerConventionFunc func(ctx Context) error

// RegisterContainer calls f(ctx).
func (f ContainerConventionFunc) RegisterContainer(ctx Context) error { return f(ctx) }

// Kind selects which registry entries a Composer invokes.
type Kind int

const (
	// KindServiceConvention matches values implementing ServiceConvention.
	KindServiceConvention Kind = iota + 1

	// KindContainerConvention matches values implementing ContainerConvention.
	KindContainerConvention

	// KindServiceDelegate matches ServiceConventionFunc and func(Context) error.
	KindServiceDelegate

	// KindContainerDelegate matches ContainerConventionFunc.
	KindContainerDelegate
)

// AllKinds lists every Kind in composition priority order.
var AllKinds = []Kind{KindServiceConvention, KindContainerConvention, KindServiceDelegate, KindContainerDelegate}

// ServiceKinds lists the kinds recognised by a ServicesBuilder.
var ServiceKinds = []Kind{KindServiceConvention, KindServiceDelegate}

func (k Kind) String() string {
	switch k {
	case KindServiceConvention:
		return "service convention"
	case KindContainerConvention:
		return "container convention"
	case KindServiceDelegate:
		return "service delegate"
	case KindContainerDelegate:
		return "container delegate"
	default:
		return "unknown"
	}
}

type capability int

const (
	registerCapability capability = iota
	registerContainerCapability
)

func (k Kind) capability() capability {
	if k == KindContainerConvention || k == KindContainerDelegate {
		return registerContainerCapability
	}
	return registerCapability
}

// bind returns the function to call when item matches k.
func (k Kind) bind(item any) (func(Context) error, bool) {
	switch k {
	case KindServiceConvention:
		if c, ok := item.(ServiceConvention); ok && !isDelegate(item) {
			return c.Register, true
		}
	case KindContainerConvention:
		if c, ok := item.(ContainerConvention); ok && !isDelegate(item) {
			return c.RegisterContainer, true
		}
	case KindServiceDelegate:
		switch fn := item.(type) {
		case ServiceConventionFunc:
			return fn, true
		case func(Context) error:
			return fn, true
		}
	case KindContainerDelegate:
		if fn, ok := item.(ContainerConventionFunc); ok {
			return fn, true
		}
	}
	return nil, false
}

// isDelegate reports whether item is a function value. Function types that
// implement a convention interface are delegates, not conventions.
func isDelegate(item any) bool {
	return reflect.TypeOf(item).Kind() == reflect.Func
}

// supported reports whether item matches at least one Kind.
func supported(item any) bool {
	switch item.(type) {
	case ServiceConvention, ContainerConvention, func(Context) error:
		return true
	}
	return false
}
