package conventions

import "sync"

// Properties is a bag of values shared between the host and conventions.
// Keys must be comparable.
type Properties struct {
	mu     sync.RWMutex
	values map[any]any
}

// NewProperties creates an empty Properties.
func NewProperties() *Properties {
	return &Properties{values: make(map[any]any)}
}

// Get returns the value stored under key.
func (p *Properties) Get(key any) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key.
func (p *Properties) Set(key, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// Delete removes key.
func (p *Properties) Delete(key any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
}

// Len returns the number of stored values.
func (p *Properties) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

// Property returns the value under key when it has type T.
func Property[T any](p *Properties, key any) (T, bool) {
	v, ok := p.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
