package conventions

import (
	"fmt"
	"iter"
	"reflect"
	"sync"
)

// Registry is the ordered list of conventions and delegates composed by a
// builder. Entries can be prepended or appended but never removed.
//
// The composition order is: prepended entries (the most recent Prepend call
// first), then entries contributed by scanned catalogs, then appended
// entries.
type Registry struct {
	mu        sync.RWMutex
	nextID    uint64
	prepended []entry
	scanned   []entry
	appended  []entry

	scannedIDs map[any]struct{}
}

type entry struct {
	id   uint64
	item any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Append adds items after every entry currently registered. The relative
// order of items is preserved.
func (r *Registry) Append(items ...any) error {
	entries, err := r.entries(items)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, entries...)
	return nil
}

// Prepend adds items before every entry currently registered. The relative
// order of items is preserved.
func (r *Registry) Prepend(items ...any) error {
	entries, err := r.entries(items)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prepended = append(entries, r.prepended...)
	return nil
}

// Scan adds the conventions listed by catalog between the prepended and the
// appended entries. Convention values an earlier scan already contributed
// are skipped; delegates are always added.
func (r *Registry) Scan(catalog Catalog) error {
	if catalog == nil {
		return ArgumentError{Argument: "catalog", Cause: ErrCatalogNil}
	}

	items, err := catalog.Conventions()
	if err != nil {
		return fmt.Errorf("scan catalog: %w", err)
	}

	entries, err := r.entries(items)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scannedIDs == nil {
		r.scannedIDs = make(map[any]struct{})
	}
	for _, e := range entries {
		id := identity(e.item)
		if _, dup := r.scannedIDs[id]; dup {
			continue
		}
		r.scannedIDs[id] = struct{}{}
		r.scanned = append(r.scanned, e)
	}
	return nil
}

// AllInOrder returns the registered items in composition order. The
// sequence is restartable and reflects the registry at iteration time.
func (r *Registry) AllInOrder() iter.Seq[any] {
	return func(yield func(any) bool) {
		for e := range r.ordered() {
			if !yield(e.item) {
				return
			}
		}
	}
}

// Len returns the number of registered items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.prepended) + len(r.scanned) + len(r.appended)
}

// ordered yields a snapshot of the entries in composition order.
func (r *Registry) ordered() iter.Seq[entry] {
	return func(yield func(entry) bool) {
		r.mu.RLock()
		snapshot := make([]entry, 0, len(r.prepended)+len(r.scanned)+len(r.appended))
		snapshot = append(snapshot, r.prepended...)
		snapshot = append(snapshot, r.scanned...)
		snapshot = append(snapshot, r.appended...)
		r.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// entries validates items and assigns their identities. Nothing is stored
// when an item is rejected.
func (r *Registry) entries(items []any) ([]entry, error) {
	for i, item := range items {
		if isNil(item) {
			return nil, ArgumentError{Argument: fmt.Sprintf("items[%d]", i), Cause: ErrConventionNil}
		}
		if !supported(item) {
			return nil, ArgumentError{
				Argument: fmt.Sprintf("items[%d]", i),
				Cause:    fmt.Errorf("%w: %s", ErrUnsupportedConvention, formatType(reflect.TypeOf(item))),
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entry, len(items))
	for i, item := range items {
		r.nextID++
		out[i] = entry{id: r.nextID, item: item}
	}
	return out, nil
}

// identity returns a comparable key for item. Functions and values that
// cannot be hashed, such as a struct holding a slice in an interface field,
// are always distinct.
func identity(item any) any {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Func || !v.Comparable() {
		return new(byte)
	}
	return item
}

func isNil(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
