package testutil

import (
	"sync"

	"github.com/junioryono/conventions"
)

// Recorder collects the names of invoked conventions in invocation order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends name.
func (r *Recorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls returns the recorded names.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how often name was recorded.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

// SpyConvention is a service convention that records its invocation and
// then runs Fn, if set.
type SpyConvention struct {
	Name     string
	Recorder *Recorder
	Fn       func(conventions.Context) error
}

func (c *SpyConvention) Register(ctx conventions.Context) error {
	c.Recorder.Record(c.Name)
	if c.Fn != nil {
		return c.Fn(ctx)
	}
	return nil
}

func (c *SpyConvention) String() string { return c.Name }

// SpyContainerConvention is a container convention that records its
// invocation.
type SpyContainerConvention struct {
	Name     string
	Recorder *Recorder
	Fn       func(conventions.Context) error
}

func (c *SpyContainerConvention) RegisterContainer(ctx conventions.Context) error {
	c.Recorder.Record(c.Name)
	if c.Fn != nil {
		return c.Fn(ctx)
	}
	return nil
}

func (c *SpyContainerConvention) String() string { return c.Name }

// DualConvention implements both convention interfaces. Each capability
// records name + ":service" or name + ":container".
type DualConvention struct {
	Name     string
	Recorder *Recorder
}

func (c *DualConvention) Register(conventions.Context) error {
	c.Recorder.Record(c.Name + ":service")
	return nil
}

func (c *DualConvention) RegisterContainer(conventions.Context) error {
	c.Recorder.Record(c.Name + ":container")
	return nil
}

// Delegate returns a service delegate that records name.
func Delegate(r *Recorder, name string) conventions.ServiceConventionFunc {
	return func(conventions.Context) error {
		r.Record(name)
		return nil
	}
}

// ContainerDelegate returns a container delegate that records name.
func ContainerDelegate(r *Recorder, name string) conventions.ContainerConventionFunc {
	return func(conventions.Context) error {
		r.Record(name)
		return nil
	}
}
