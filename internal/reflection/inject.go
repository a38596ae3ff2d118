// Package reflection synthesizes the functions handed to dig: field-injecting
// constructors, parameter objects and result conversions.
package reflection

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/dig"
)

var (
	inType    = reflect.TypeFor[dig.In]()
	errorType = reflect.TypeFor[error]()
)

// ErrorType is the reflect.Type of the error interface.
func ErrorType() reflect.Type { return errorType }

// Field describes one dependency of a synthesized parameter object.
type Field struct {
	Name     string // Go field name
	Type     reflect.Type
	Key      string // dig name tag
	Optional bool
}

func (f Field) tag() reflect.StructTag {
	var tag string
	if f.Key != "" {
		tag = fmt.Sprintf(`name:"%s"`, f.Key)
	}
	if f.Optional {
		if tag != "" {
			tag += " "
		}
		tag += `optional:"true"`
	}
	return reflect.StructTag(tag)
}

type paramKey struct {
	t        reflect.Type
	name     string
	optional bool
}

var paramCache sync.Map // paramKey -> reflect.Type

// ParamObject returns a dig.In struct type with the given fields.
func ParamObject(fields ...Field) reflect.Type {
	sf := make([]reflect.StructField, 0, len(fields)+1)
	sf = append(sf, reflect.StructField{Name: "In", Type: inType, Anonymous: true})
	for _, f := range fields {
		sf = append(sf, reflect.StructField{Name: f.Name, Type: f.Type, Tag: f.tag()})
	}
	return reflect.StructOf(sf)
}

// SingleParam returns a cached dig.In struct with one field named Value.
func SingleParam(t reflect.Type, name string, optional bool) reflect.Type {
	key := paramKey{t: t, name: name, optional: optional}
	if cached, ok := paramCache.Load(key); ok {
		return cached.(reflect.Type)
	}

	pt := ParamObject(Field{Name: "Value", Type: t, Key: name, Optional: optional})
	actual, _ := paramCache.LoadOrStore(key, pt)
	return actual.(reflect.Type)
}

// FieldInjector returns a constructor for impl, a struct or pointer to
// struct. The constructor takes a dig.In object mirroring impl's exported
// fields and returns a populated impl. Fields tagged inject:"-" are left
// untouched; name and optional tags carry over.
func FieldInjector(impl reflect.Type) (any, error) {
	if impl == nil {
		return nil, fmt.Errorf("implementation type cannot be nil")
	}

	base := impl
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil, fmt.Errorf("implementation type %s must be a struct or pointer to struct", impl)
	}

	var (
		fields  []Field
		indexes []int
	)
	for i := range base.NumField() {
		f := base.Field(i)
		if !f.IsExported() || f.Tag.Get("inject") == "-" {
			continue
		}
		if f.Anonymous && f.Type == inType {
			continue
		}

		fields = append(fields, Field{
			Name:     f.Name,
			Type:     f.Type,
			Key:      f.Tag.Get("name"),
			Optional: f.Tag.Get("optional") == "true",
		})
		indexes = append(indexes, i)
	}

	build := func(args []reflect.Value) []reflect.Value {
		v := reflect.New(base)
		if len(args) == 1 {
			in := args[0]
			for j, idx := range indexes {
				v.Elem().Field(idx).Set(in.Field(j + 1))
			}
		}

		if impl.Kind() == reflect.Pointer {
			return []reflect.Value{v}
		}
		return []reflect.Value{v.Elem()}
	}

	var params []reflect.Type
	if len(fields) > 0 {
		params = []reflect.Type{ParamObject(fields...)}
	}

	fnType := reflect.FuncOf(params, []reflect.Type{impl}, false)
	return reflect.MakeFunc(fnType, build).Interface(), nil
}

// Dependencies lists the services fn takes, looking through parameter
// objects. Group fields are skipped.
func Dependencies(fn reflect.Type) []Field {
	if fn == nil || fn.Kind() != reflect.Func {
		return nil
	}

	var deps []Field
	for i := range fn.NumIn() {
		deps = appendDependency(deps, fn.In(i), "", false)
	}
	return deps
}

func appendDependency(deps []Field, t reflect.Type, name string, optional bool) []Field {
	if !IsParamObject(t) {
		return append(deps, Field{Type: t, Key: name, Optional: optional})
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || (f.Anonymous && f.Type == inType) || f.Tag.Get("group") != "" {
			continue
		}
		deps = appendDependency(deps, f.Type, f.Tag.Get("name"), f.Tag.Get("optional") == "true")
	}
	return deps
}

// IsParamObject reports whether t is a struct embedding dig.In.
func IsParamObject(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		if f := t.Field(i); f.Anonymous && f.Type == inType {
			return true
		}
	}
	return false
}

// Convert wraps a constructor of shape func(...) R or func(...) (R, error)
// so that it returns target instead of R. R must be assignable to target.
func Convert(constructor any, target reflect.Type) (any, error) {
	fnType := reflect.TypeOf(constructor)
	if fnType == nil || fnType.Kind() != reflect.Func || fnType.NumOut() == 0 {
		return nil, fmt.Errorf("constructor must be a function returning a value")
	}

	result := fnType.Out(0)
	if result == target {
		return constructor, nil
	}
	if !result.AssignableTo(target) {
		return nil, fmt.Errorf("%s is not assignable to %s", result, target)
	}

	in := make([]reflect.Type, fnType.NumIn())
	for i := range in {
		in[i] = fnType.In(i)
	}
	out := make([]reflect.Type, fnType.NumOut())
	for i := range out {
		out[i] = fnType.Out(i)
	}
	out[0] = target

	fn := reflect.ValueOf(constructor)
	wrapped := reflect.MakeFunc(reflect.FuncOf(in, out, fnType.IsVariadic()), func(args []reflect.Value) []reflect.Value {
		var results []reflect.Value
		if fnType.IsVariadic() {
			results = fn.CallSlice(args)
		} else {
			results = fn.Call(args)
		}

		converted := reflect.New(target).Elem()
		converted.Set(results[0])
		results[0] = converted
		return results
	})

	return wrapped.Interface(), nil
}

// Intercept wraps a constructor so that observe receives every value it
// produces successfully. The wrapped function has the same signature.
func Intercept(constructor any, observe func(any)) any {
	fnType := reflect.TypeOf(constructor)
	fn := reflect.ValueOf(constructor)

	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		var results []reflect.Value
		if fnType.IsVariadic() {
			results = fn.CallSlice(args)
		} else {
			results = fn.Call(args)
		}

		if n := len(results); n > 1 && results[n-1].Type() == errorType && !results[n-1].IsNil() {
			return results
		}
		if len(results) > 0 && results[0].IsValid() && results[0].CanInterface() {
			observe(results[0].Interface())
		}
		return results
	}).Interface()
}

// Invoker returns a function with the parameters of constructor and a
// single error result. When dig invokes it, constructor runs with the
// resolved arguments and sink receives its first result.
func Invoker(constructor any, sink func(reflect.Value)) any {
	fnType := reflect.TypeOf(constructor)
	fn := reflect.ValueOf(constructor)

	in := make([]reflect.Type, fnType.NumIn())
	for i := range in {
		in[i] = fnType.In(i)
	}

	invokerType := reflect.FuncOf(in, []reflect.Type{errorType}, fnType.IsVariadic())
	return reflect.MakeFunc(invokerType, func(args []reflect.Value) []reflect.Value {
		var results []reflect.Value
		if fnType.IsVariadic() {
			results = fn.CallSlice(args)
		} else {
			results = fn.Call(args)
		}

		errValue := reflect.Zero(errorType)
		if n := len(results); n > 1 && results[n-1].Type() == errorType && !results[n-1].IsNil() {
			errValue = results[n-1]
		} else if len(results) > 0 {
			sink(results[0])
		}
		return []reflect.Value{errValue}
	}).Interface()
}
