package conventions

import (
	"reflect"

	"github.com/junioryono/conventions/internal/reflection"
	"go.uber.org/dig"
)

// registration is a descriptor translated into a dig constructor.
type registration struct {
	descriptor Descriptor
	bucket     BucketName
	opts       []dig.ProvideOption

	// constructor returns the function provided to dig. Factories bind to
	// the scope that owns the constructor; other shapes ignore it.
	constructor func(owner *scope) any
}

func (r *registration) key() serviceKey    { return r.descriptor.key() }
func (r *registration) lifetime() Lifetime { return r.descriptor.Lifetime }
func (r *registration) tracked() bool      { return r.descriptor.Kind() != InstanceImplementation }

// translate maps a descriptor onto a dig registration:
//
//   - a constructor is provided as-is, converted to return the service type
//   - an implementation type gets a synthesized field-injecting constructor
//   - a factory is called with the owning scope
//   - an instance is returned unchanged
//
// The lifetime is applied by the scope the registration is provided to.
func translate(d Descriptor, bucket BucketName) (*registration, error) {
	if err := d.Validate(); err != nil {
		return nil, RegistrationError{ServiceType: d.ServiceType, Name: d.Name, Operation: "translate", Cause: err}
	}

	reg := &registration{descriptor: d, bucket: bucket}
	if d.Name != "" {
		reg.opts = append(reg.opts, dig.Name(d.Name))
	}

	fail := func(err error) (*registration, error) {
		return nil, RegistrationError{ServiceType: d.ServiceType, Name: d.Name, Operation: "translate", Cause: err}
	}

	switch d.Kind() {
	case ConstructorImplementation:
		ctor, err := reflection.Convert(d.Constructor, d.ServiceType)
		if err != nil {
			return fail(err)
		}
		reg.constructor = func(*scope) any { return ctor }

	case TypeImplementation:
		injector, err := reflection.FieldInjector(d.ImplementationType)
		if err != nil {
			return fail(err)
		}
		ctor, err := reflection.Convert(injector, d.ServiceType)
		if err != nil {
			return fail(err)
		}
		reg.constructor = func(*scope) any { return ctor }

	case FactoryImplementation:
		reg.constructor = func(owner *scope) any { return factoryConstructor(d, owner) }

	case InstanceImplementation:
		ctor := instanceConstructor(d)
		reg.constructor = func(*scope) any { return ctor }
	}

	return reg, nil
}

// translateAll translates descriptors for one scope. When several share a
// key the last one wins; the survivors keep the order of their last
// occurrence.
func translateAll(descriptors []Descriptor, bucket BucketName) ([]*registration, error) {
	last := make(map[serviceKey]int, len(descriptors))
	for i, d := range descriptors {
		last[d.key()] = i
	}

	regs := make([]*registration, 0, len(last))
	for i, d := range descriptors {
		if last[d.key()] != i {
			continue
		}
		reg, err := translate(d, bucket)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func factoryConstructor(d Descriptor, owner *scope) any {
	serviceType := d.ServiceType
	fnType := reflect.FuncOf(nil, []reflect.Type{serviceType, reflection.ErrorType()}, false)

	return reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		out := reflect.New(serviceType).Elem()
		fail := func(err error) []reflect.Value {
			return []reflect.Value{out, reflect.ValueOf(&err).Elem()}
		}

		v, err := d.Factory(owner)
		if err != nil {
			return fail(err)
		}

		if v != nil {
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(serviceType) {
				return fail(TypeMismatchError{Expected: serviceType, Actual: rv.Type(), Context: "factory result"})
			}
			out.Set(rv)
		}

		return []reflect.Value{out, reflect.Zero(reflection.ErrorType())}
	}).Interface()
}

func instanceConstructor(d Descriptor) any {
	value := reflect.New(d.ServiceType).Elem()
	value.Set(reflect.ValueOf(d.Instance))

	fnType := reflect.FuncOf(nil, []reflect.Type{d.ServiceType}, false)
	return reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		return []reflect.Value{value}
	}).Interface()
}
