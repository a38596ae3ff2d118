package testutil

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Common test errors
var (
	ErrTest        = errors.New("test error")
	ErrIntentional = errors.New("intentional error")
	ErrDisposal    = errors.New("disposal error")
)

// Foo is a service interface used across builder tests.
type Foo interface {
	ID() string
}

// FooImpl implements Foo.
type FooImpl struct {
	id string
}

// NewFoo creates a FooImpl with a fresh ID.
func NewFoo() *FooImpl {
	return &FooImpl{id: uuid.NewString()}
}

func (f *FooImpl) ID() string { return f.id }

// Bar depends on Foo.
type Bar interface {
	Foo() Foo
	ID() string
}

// BarImpl implements Bar.
type BarImpl struct {
	id  string
	foo Foo
}

// NewBar creates a BarImpl with a fresh ID.
func NewBar(foo Foo) *BarImpl {
	return &BarImpl{id: uuid.NewString(), foo: foo}
}

func (b *BarImpl) Foo() Foo   { return b.foo }
func (b *BarImpl) ID() string { return b.id }

// TestService is a plain service without dependencies.
type TestService struct {
	ID   string
	Data string
}

// NewTestService creates a TestService with a fresh ID.
func NewTestService() *TestService {
	return &TestService{ID: uuid.NewString(), Data: "test"}
}

// DisposalLog records the order in which services are closed.
type DisposalLog struct {
	mu    sync.Mutex
	names []string
}

// Record appends name.
func (l *DisposalLog) Record(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns the recorded names in order.
func (l *DisposalLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

// DisposableService records its name in a DisposalLog when closed.
type DisposableService struct {
	Name string
	Log  *DisposalLog
	Err  error

	closed bool
}

// Close implements conventions.Disposable.
func (d *DisposableService) Close() error {
	d.closed = true
	if d.Log != nil {
		d.Log.Record(d.Name)
	}
	return d.Err
}

// Closed reports whether Close was called.
func (d *DisposableService) Closed() bool { return d.closed }
