package conventions

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/junioryono/conventions/internal/reflection"
	"go.uber.org/dig"
)

// ServiceProvider resolves services from a built scope.
type ServiceProvider interface {
	// Resolve returns the service registered for serviceType. Transient
	// services are constructed on every call.
	Resolve(serviceType reflect.Type) (any, error)

	// ResolveKeyed returns the service registered under name.
	ResolveKeyed(serviceType reflect.Type, name string) (any, error)

	// ResolveOptional returns nil without an error when serviceType is not
	// registered.
	ResolveOptional(serviceType reflect.Type) (any, error)

	// Invoke calls function with its parameters resolved from the scope.
	Invoke(function any) error
}

// Scope is a built container boundary. The builder produces a root scope
// and, depending on the builder, system and application scopes derived
// from it. Further scopes, one per request for example, are created with
// CreateScope.
//
// Example:
//
//	scope, err := artifact.Application.CreateScope(ctx)
//	if err != nil {
//	    return err
//	}
//	defer scope.Close()
//
//	svc, err := conventions.Resolve[*OrderService](scope)
type Scope interface {
	ServiceProvider

	// ID returns the unique ID of this scope.
	ID() string

	// Tag returns the bucket tag the scope was built for, or "" for scopes
	// created with CreateScope.
	Tag() string

	// Context returns the context associated with this scope.
	Context() context.Context

	// Parent returns the scope this one derives from, or nil for the root.
	Parent() Scope

	// CreateScope derives a child scope. Scoped services get a new
	// instance in the child; singletons are shared.
	CreateScope(ctx context.Context) (Scope, error)

	// IsDisposed reports whether Close has been called.
	IsDisposed() bool

	// Close closes child scopes, then disposes the instances this scope
	// created in reverse creation order.
	Close() error
}

// digNode is the dig handle behind a scope: *dig.Container for the root,
// *dig.Scope otherwise.
type digNode interface {
	ContainerBuilder
	Scope(name string, opts ...dig.ScopeOption) *dig.Scope
}

var (
	_ digNode = (*dig.Container)(nil)
	_ digNode = (*dig.Scope)(nil)
)

type scope struct {
	id     string
	tag    string
	ctx    context.Context
	node   digNode
	parent *scope
	logger *slog.Logger

	tree *treeLock

	regsMu sync.RWMutex
	regs   map[serviceKey]*registration

	disposed    atomic.Bool
	mu          sync.Mutex
	disposables []DisposableWithContext
	children    []*scope
}

var _ Scope = (*scope)(nil)

func newRootScope(c *dig.Container, logger *slog.Logger) (*scope, error) {
	s := &scope{
		id:     uuid.NewString(),
		tag:    RootTag,
		node:   c,
		logger: logger,
		tree:   &treeLock{},
		regs:   make(map[serviceKey]*registration),
	}
	s.ctx = contextWithScope(context.Background(), s)

	if err := s.provideBuiltins(); err != nil {
		return nil, err
	}
	return s, nil
}

// child derives a scope. The caller registers scoped services into it.
func (s *scope) child(ctx context.Context, tag string) (*scope, error) {
	if s.IsDisposed() {
		return nil, ErrScopeDisposed
	}
	if ctx == nil {
		ctx = s.ctx
	}

	id := uuid.NewString()
	name := tag
	if name == "" {
		name = id
	}

	s.tree.Lock()
	ds := s.node.Scope(name)
	s.tree.Unlock()

	c := &scope{
		id:     id,
		tag:    tag,
		node:   ds,
		parent: s,
		logger: s.logger,
		tree:   s.tree,
		regs:   make(map[serviceKey]*registration),
	}
	c.ctx = contextWithScope(ctx, c)

	if err := c.provideBuiltins(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.children = append(s.children, c)
	s.mu.Unlock()

	return c, nil
}

// provideBuiltins makes the scope itself injectable. A child scope's
// providers shadow its parent's.
func (s *scope) provideBuiltins() error {
	builtins := []any{
		func() ServiceProvider { return s },
		func() Scope { return s },
		func() context.Context { return s.ctx },
	}

	s.tree.Lock()
	defer s.tree.Unlock()

	for _, ctor := range builtins {
		if err := s.node.Provide(ctor); err != nil {
			return fmt.Errorf("register built-in %s in scope %s: %w", reflect.TypeOf(ctor).Out(0), s.id, err)
		}
	}
	return nil
}

// provideValue registers a value owned by the conventions runtime.
func (s *scope) provideValue(value any, t reflect.Type) error {
	v := reflect.New(t).Elem()
	v.Set(reflect.ValueOf(value))
	ctor := reflect.MakeFunc(reflect.FuncOf(nil, []reflect.Type{t}, false), func([]reflect.Value) []reflect.Value {
		return []reflect.Value{v}
	})

	s.tree.Lock()
	defer s.tree.Unlock()
	return s.node.Provide(ctor.Interface())
}

// register provides reg to the scope's dig node. Instances built by the
// constructor are tracked for disposal by this scope.
func (s *scope) register(reg *registration) error {
	ctor := reg.constructor(s)
	if reg.tracked() {
		ctor = reflection.Intercept(ctor, s.track)
	}

	s.tree.Lock()
	err := s.node.Provide(ctor, reg.opts...)
	s.tree.Unlock()
	if err != nil {
		return RegistrationError{
			ServiceType: reg.descriptor.ServiceType,
			Name:        reg.descriptor.Name,
			Operation:   "register",
			Cause:       err,
		}
	}

	s.regsMu.Lock()
	s.regs[reg.key()] = reg
	s.regsMu.Unlock()
	return nil
}

// inheritScoped re-registers the Scoped registrations visible from the
// parent so that this scope gets its own instances. Keys in skip are left
// to the caller.
func (s *scope) inheritScoped(skip map[serviceKey]struct{}) error {
	if s.parent == nil {
		return nil
	}

	for _, reg := range s.parent.visible() {
		if reg.lifetime() != Scoped {
			continue
		}
		if _, ok := skip[reg.key()]; ok {
			continue
		}
		if err := s.register(reg); err != nil {
			return err
		}
	}
	return nil
}

// visible returns the registrations resolvable from s, nearest scope first
// wins, in a stable order.
func (s *scope) visible() []*registration {
	seen := make(map[serviceKey]struct{})
	var out []*registration

	for cur := s; cur != nil; cur = cur.parent {
		cur.regsMu.RLock()
		level := make([]*registration, 0, len(cur.regs))
		for k, reg := range cur.regs {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			level = append(level, reg)
		}
		cur.regsMu.RUnlock()

		slices.SortFunc(level, func(a, b *registration) int {
			return compareKeys(a.key(), b.key())
		})
		out = append(out, level...)
	}
	return out
}

func compareKeys(a, b serviceKey) int {
	if c := compareStrings(a.Type.String(), b.Type.String()); c != 0 {
		return c
	}
	return compareStrings(a.Name, b.Name)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// lookup returns the nearest registration for key.
func (s *scope) lookup(key serviceKey) *registration {
	for cur := s; cur != nil; cur = cur.parent {
		cur.regsMu.RLock()
		reg, ok := cur.regs[key]
		cur.regsMu.RUnlock()
		if ok {
			return reg
		}
	}
	return nil
}

func (s *scope) track(instance any) {
	if instance == nil || instance == any(s) {
		return
	}

	d, ok := asDisposable(instance)
	if !ok {
		return
	}

	s.mu.Lock()
	s.disposables = append(s.disposables, d)
	s.mu.Unlock()
}

func (s *scope) ID() string { return s.id }

func (s *scope) Tag() string { return s.tag }

func (s *scope) Context() context.Context { return s.ctx }

func (s *scope) Parent() Scope {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

func (s *scope) IsDisposed() bool { return s.disposed.Load() }

func (s *scope) CreateScope(ctx context.Context) (Scope, error) {
	c, err := s.child(ctx, "")
	if err != nil {
		return nil, err
	}

	if err := c.inheritScoped(nil); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (s *scope) Resolve(serviceType reflect.Type) (any, error) {
	return s.resolve(serviceType, "", false)
}

func (s *scope) ResolveKeyed(serviceType reflect.Type, name string) (any, error) {
	return s.resolve(serviceType, name, false)
}

func (s *scope) ResolveOptional(serviceType reflect.Type) (any, error) {
	return s.resolve(serviceType, "", true)
}

// Invoke calls function with fresh instances of the transient services it
// takes.
func (s *scope) Invoke(function any) error {
	if s.IsDisposed() {
		return ErrScopeDisposed
	}

	s.tree.Lock()
	defer s.tree.Unlock()

	node, err := s.transientNode(function)
	if err != nil {
		return err
	}
	return node.Invoke(function)
}

func (s *scope) resolve(t reflect.Type, name string, optional bool) (any, error) {
	wrap := func(err error) error {
		return ResolutionError{ServiceType: t, Name: name, Scope: s.tag, Cause: err}
	}

	if s.IsDisposed() {
		return nil, wrap(ErrScopeDisposed)
	}
	if t == nil {
		return nil, wrap(ErrServiceTypeNil)
	}

	s.tree.Lock()
	defer s.tree.Unlock()

	if reg := s.lookup(serviceKey{Type: t, Name: name}); reg != nil && reg.lifetime() == Transient {
		v, err := s.construct(reg)
		if err != nil {
			return nil, wrap(err)
		}
		return v, nil
	}

	value, err := s.extract(t, name, true)
	if err != nil {
		return nil, wrap(err)
	}
	if !value.IsZero() {
		return value.Interface(), nil
	}

	// The optional lookup cannot tell a missing service from a zero value.
	value, err = s.extract(t, name, false)
	if err != nil {
		if optional {
			return nil, nil
		}
		return nil, wrap(fmt.Errorf("%w: %w", ErrServiceNotFound, err))
	}
	return value.Interface(), nil
}

// extract invokes dig with a one-field parameter object for t.
func (s *scope) extract(t reflect.Type, name string, optional bool) (reflect.Value, error) {
	pt := reflection.SingleParam(t, name, optional)

	var value reflect.Value
	fn := reflect.MakeFunc(reflect.FuncOf([]reflect.Type{pt}, nil, false), func(args []reflect.Value) []reflect.Value {
		value = args[0].Field(1)
		return nil
	})

	if err := s.node.Invoke(fn.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return value, nil
}

// construct builds a fresh instance of reg with dependencies resolved from s.
// Transient dependencies are fresh as well.
func (s *scope) construct(reg *registration) (any, error) {
	ctor := reg.constructor(s)
	if reg.tracked() {
		ctor = reflection.Intercept(ctor, s.track)
	}

	node, err := s.transientNode(ctor)
	if err != nil {
		return nil, err
	}

	var out reflect.Value
	if err := node.Invoke(reflection.Invoker(ctor, func(v reflect.Value) { out = v })); err != nil {
		return nil, err
	}
	if !out.IsValid() {
		return nil, nil
	}
	return out.Interface(), nil
}

// transientNode returns the node a call of fn runs in. dig caches every
// value it builds, so when fn takes a transient service the visible
// transients are provided again into a throwaway child. Instances built
// there are tracked by s.
func (s *scope) transientNode(fn any) (digNode, error) {
	if !s.takesTransient(reflect.TypeOf(fn)) {
		return s.node, nil
	}

	var transients []*registration
	for _, reg := range s.visible() {
		if reg.lifetime() == Transient {
			transients = append(transients, reg)
		}
	}

	node := s.node.Scope("transient-" + uuid.NewString())
	for _, reg := range transients {
		ctor := reg.constructor(s)
		if reg.tracked() {
			ctor = reflection.Intercept(ctor, s.track)
		}
		if err := node.Provide(ctor, reg.opts...); err != nil {
			return nil, RegistrationError{
				ServiceType: reg.descriptor.ServiceType,
				Name:        reg.descriptor.Name,
				Operation:   "re-provide",
				Cause:       err,
			}
		}
	}
	return node, nil
}

func (s *scope) takesTransient(fn reflect.Type) bool {
	for _, dep := range reflection.Dependencies(fn) {
		if reg := s.lookup(serviceKey{Type: dep.Type, Name: dep.Key}); reg != nil && reg.lifetime() == Transient {
			return true
		}
	}
	return false
}

func (s *scope) Close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	children := s.children
	s.children = nil
	toDispose := s.disposables
	s.disposables = nil
	s.mu.Unlock()

	var errs []error

	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	for i := len(toDispose) - 1; i >= 0; i-- {
		if err := toDispose[i].Close(s.ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	if len(errs) > 0 {
		s.logger.LogAttrs(s.ctx, slog.LevelWarn, "scope disposal failed",
			slog.String("scope", s.id),
			slog.String("tag", s.tag),
			slog.Int("errors", len(errs)),
		)
		return DisposalError{Context: s.describe(), Errors: errs}
	}
	return nil
}

func (s *scope) removeChild(c *scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = slices.DeleteFunc(s.children, func(x *scope) bool { return x == c })
}

func (s *scope) describe() string {
	if s.tag != "" {
		return "scope " + s.tag
	}
	return "scope " + s.id
}

// scopeContextKey is the key for storing the current scope in a context.
type scopeContextKey struct{}

func contextWithScope(ctx context.Context, s *scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, s)
}

// FromContext returns the scope attached to ctx by a scope's Context or by
// request middleware.
func FromContext(ctx context.Context) (Scope, error) {
	if ctx == nil {
		return nil, ErrScopeNotInContext
	}

	s, ok := ctx.Value(scopeContextKey{}).(*scope)
	if !ok || s == nil {
		return nil, ErrScopeNotInContext
	}
	if s.IsDisposed() {
		return nil, ErrScopeDisposed
	}
	return s, nil
}
