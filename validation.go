package conventions

import (
	"reflect"
	"slices"

	"github.com/junioryono/conventions/internal/reflection"
)

// dependencies lists the services reg's constructor takes. Factories resolve
// lazily and instances take nothing, so neither reports any.
func (r *registration) dependencies() []reflection.Field {
	switch r.descriptor.Kind() {
	case ConstructorImplementation, TypeImplementation:
		return reflection.Dependencies(reflect.TypeOf(r.constructor(nil)))
	default:
		return nil
	}
}

// validateLifetimes ensures the singletons registered in s do not depend on
// scoped services, either directly or through transient services. Every
// dependency is looked up from s, the scope the singleton is built in.
func validateLifetimes(s *scope) error {
	s.regsMu.RLock()
	singletons := make([]*registration, 0, len(s.regs))
	for _, reg := range s.regs {
		if reg.lifetime() == Singleton {
			singletons = append(singletons, reg)
		}
	}
	s.regsMu.RUnlock()

	slices.SortFunc(singletons, func(a, b *registration) int {
		return compareKeys(a.key(), b.key())
	})

	for _, reg := range singletons {
		if err := checkCaptive(s, reg, reg, nil, map[serviceKey]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func checkCaptive(s *scope, root, reg *registration, path []reflect.Type, seen map[serviceKey]bool) error {
	for _, dep := range reg.dependencies() {
		key := serviceKey{Type: dep.Type, Name: dep.Key}
		if seen[key] {
			continue
		}
		seen[key] = true

		target := s.lookup(key)
		if target == nil {
			continue
		}

		switch target.lifetime() {
		case Scoped:
			return LifetimeConflictError{
				ServiceType:        root.descriptor.ServiceType,
				ServiceName:        root.descriptor.Name,
				DependencyType:     dep.Type,
				DependencyLifetime: Scoped,
				Path:               path,
			}
		case Transient:
			next := append(path[:len(path):len(path)], dep.Type)
			if err := checkCaptive(s, root, target, next, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
