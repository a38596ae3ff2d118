package conventions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ========================================
// Sentinel Errors
// ========================================
// Sentinels are wrapped in the typed errors below whenever there is context
// to report. Match them with errors.Is.

var (
	// Argument errors.
	ErrServicesNil           = errors.New("service collection cannot be nil")
	ErrConfigurationNil      = errors.New("configuration cannot be nil")
	ErrEnvironmentNil        = errors.New("environment cannot be nil")
	ErrConventionNil         = errors.New("convention cannot be nil")
	ErrUnsupportedConvention = errors.New("unsupported convention type")
	ErrCatalogNil            = errors.New("catalog cannot be nil")

	// Build state errors.
	ErrAlreadyBuilt    = errors.New("builder has already been built")
	ErrBuildInProgress = errors.New("build is already in progress")
	ErrBuildFailed     = errors.New("a previous build failed")

	// Descriptor errors.
	ErrServiceTypeNil          = errors.New("service type cannot be nil")
	ErrConstructorNil          = errors.New("constructor cannot be nil")
	ErrNoImplementation        = errors.New("descriptor has no implementation")
	ErrMultipleImplementations = errors.New("descriptor has more than one implementation")
	ErrConstructorNotFunc      = errors.New("constructor must be a function")
	ErrConstructorNoResult     = errors.New("constructor must return a service")
	ErrNotAssignable           = errors.New("implementation is not assignable to service type")

	// Resolution errors.
	ErrProviderNil       = errors.New("service provider cannot be nil")
	ErrServiceNotFound   = errors.New("service not found")
	ErrScopeDisposed     = errors.New("scope has been disposed")
	ErrScopeNotInContext = errors.New("no scope in context")
)

var (
	_ error = ArgumentError{}
	_ error = LifetimeError{}
	_ error = LifetimeConflictError{}
	_ error = ConventionError{}
	_ error = ActionError{}
	_ error = RegistrationError{}
	_ error = ValidationError{}
	_ error = ModuleError{}
	_ error = TypeMismatchError{}
	_ error = PanicError{}
	_ error = BuildError{}
	_ error = ResolutionError{}
	_ error = DisposalError{}
)

// ========================================
// Typed Errors
// ========================================

// ArgumentError reports an invalid argument passed to a constructor or
// registration call.
type ArgumentError struct {
	Argument string
	Cause    error
}

func (e ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %v", e.Argument, e.Cause)
}

func (e ArgumentError) Unwrap() error {
	return e.Cause
}

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// LifetimeConflictError reports a singleton that would capture a scoped
// service, directly or through transient services.
type LifetimeConflictError struct {
	ServiceType        reflect.Type
	ServiceName        string
	DependencyType     reflect.Type
	DependencyLifetime Lifetime
	Path               []reflect.Type // transient services between the two
}

func (e LifetimeConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "lifetime conflict: %s (%s", formatType(e.ServiceType), Singleton)
	if e.ServiceName != "" {
		fmt.Fprintf(&b, ", name: %s", e.ServiceName)
	}
	fmt.Fprintf(&b, ") cannot depend on %s (%s)", formatType(e.DependencyType), e.DependencyLifetime)
	for _, t := range e.Path {
		fmt.Fprintf(&b, " via %s", formatType(t))
	}
	return b.String()
}

// ConventionError reports a convention or delegate that failed during
// composition. Composition stops at the first failure.
type ConventionError struct {
	Convention any
	Kind       Kind
	Index      int
	Cause      error
}

func (e ConventionError) Error() string {
	return fmt.Sprintf("%s %s at position %d failed: %v", e.Kind, describe(e.Convention), e.Index, e.Cause)
}

func (e ConventionError) Unwrap() error {
	return e.Cause
}

// ActionError reports a container action that failed while a bucket was
// applied. Actions applied before it are not rolled back.
type ActionError struct {
	Bucket BucketName
	Index  int
	Cause  error
}

func (e ActionError) Error() string {
	return fmt.Sprintf("%s container action %d failed: %v", e.Bucket, e.Index, e.Cause)
}

func (e ActionError) Unwrap() error {
	return e.Cause
}

// RegistrationError wraps errors raised while a descriptor is registered
// with the container.
type RegistrationError struct {
	ServiceType reflect.Type
	Name        string
	Operation   string // "register", "validate", "re-provide", ...
	Cause       error
}

func (e RegistrationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("failed to %s %s (name: %s): %v", e.Operation, formatType(e.ServiceType), e.Name, e.Cause)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatType(e.ServiceType), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a descriptor that failed validation.
type ValidationError struct {
	ServiceType reflect.Type
	Cause       error
}

func (e ValidationError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("%s: %v", formatType(e.ServiceType), e.Cause)
	}
	return e.Cause.Error()
}

func (e ValidationError) Unwrap() error {
	return e.Cause
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a value that does not have the expected type.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// PanicError captures a panic recovered from user code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// BuildError wraps errors that abort a build.
type BuildError struct {
	Phase   string // "compose", "core", "system", "application", ...
	Details string
	Cause   error
}

func (e BuildError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("build failed during %s phase: %v", e.Phase, e.Cause)
	}
	return fmt.Sprintf("build failed during %s phase: %s: %v", e.Phase, e.Details, e.Cause)
}

func (e BuildError) Unwrap() error {
	return e.Cause
}

// ResolutionError wraps errors that occur during service resolution.
type ResolutionError struct {
	ServiceType reflect.Type
	Name        string // empty for unnamed services
	Scope       string // tag of the scope that was asked
	Cause       error
}

func (e ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("resolve ")
	b.WriteString(formatType(e.ServiceType))
	if e.Name != "" {
		fmt.Fprintf(&b, " (name: %s)", e.Name)
	}
	if e.Scope != "" {
		fmt.Fprintf(&b, " from %s scope", e.Scope)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates errors raised while closing a scope.
type DisposalError struct {
	Context string
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s disposal failed with %d errors:", e.Context, len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  %d. %v", i+1, err)
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// describe names a convention or delegate for error messages.
func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return formatType(reflect.TypeOf(v))
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		if elem := t.Elem(); elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		if elem := t.Elem(); elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
