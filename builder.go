package conventions

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/junioryono/conventions/config"
	"github.com/junioryono/conventions/internal/broadcast"
	"go.uber.org/dig"
)

// State is the lifecycle state of a builder.
type State int32

const (
	// StateCreated is the state of a builder that has not been built.
	StateCreated State = iota

	// StateConfiguring means conventions are being composed.
	StateConfiguring

	// StateBuilding means buckets are being applied to the container.
	StateBuilding

	// StateBuilt is the state after a successful Build.
	StateBuilt

	// StateFailed is the state after a failed Build.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateConfiguring:
		return "Configuring"
	case StateBuilding:
		return "Building"
	case StateBuilt:
		return "Built"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// builder holds what both builders share. It implements Context.
type builder struct {
	registry    *Registry
	core        *Bucket
	system      *Bucket
	application *Bucket

	configuration    config.Configuration
	environment      *Environment
	logger           *slog.Logger
	properties       *Properties
	containerOptions []dig.Option
	validateScopes   bool

	onBuild          *broadcast.Broadcaster[ServiceProvider]
	onContainerBuild *broadcast.Broadcaster[*dig.Container]

	catalogMu sync.Mutex
	catalogs  []Catalog

	state atomic.Int32
}

var _ Context = (*builder)(nil)

func newBuilder(services Collection, cfg config.Configuration, env *Environment, opts []Option) (*builder, error) {
	if isNil(services) {
		return nil, ArgumentError{Argument: "services", Cause: ErrServicesNil}
	}
	if isNil(cfg) {
		return nil, ArgumentError{Argument: "configuration", Cause: ErrConfigurationNil}
	}
	if env == nil {
		return nil, ArgumentError{Argument: "environment", Cause: ErrEnvironmentNil}
	}

	o, err := newOptions(cfg, opts)
	if err != nil {
		return nil, err
	}

	b := &builder{
		registry:         o.registry,
		core:             newBucket(CoreBucket, services, o.logger),
		system:           newBucket(SystemBucket, nil, o.logger),
		application:      newBucket(ApplicationBucket, nil, o.logger),
		configuration:    cfg,
		environment:      env,
		logger:           o.logger,
		properties:       o.properties,
		containerOptions: o.containerOptions,
		validateScopes:   env.IsDevelopment(),
		onBuild:          broadcast.New[ServiceProvider]("on-build", o.logger),
		onContainerBuild: broadcast.New[*dig.Container]("on-container-build", o.logger),
	}

	if o.validateScopes != nil {
		b.validateScopes = *o.validateScopes
	}

	for _, catalog := range o.catalogs {
		if err := b.Scan(catalog); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Registry returns the registry composed by Build.
func (b *builder) Registry() *Registry { return b.registry }

func (b *builder) Core() *Bucket        { return b.core }
func (b *builder) System() *Bucket      { return b.system }
func (b *builder) Application() *Bucket { return b.application }

func (b *builder) Bucket(name BucketName) *Bucket {
	switch name {
	case CoreBucket:
		return b.core
	case SystemBucket:
		return b.system
	case ApplicationBucket:
		return b.application
	default:
		return nil
	}
}

// Services returns the collection the builder was created with. It backs
// the core bucket.
func (b *builder) Services() Collection { return b.core.Services() }

// ConfigureContainer adds an action to the core bucket.
func (b *builder) ConfigureContainer(action ContainerAction) {
	b.core.ConfigureContainer(action)
}

// AppendConvention adds conventions or delegates after every registered
// item.
func (b *builder) AppendConvention(items ...any) error {
	return b.registry.Append(items...)
}

// PrependConvention adds conventions or delegates before every registered
// item.
func (b *builder) PrependConvention(items ...any) error {
	return b.registry.Prepend(items...)
}

// AppendDelegate adds service delegates after every registered item.
func (b *builder) AppendDelegate(delegates ...ServiceConventionFunc) error {
	return b.registry.Append(toItems(delegates)...)
}

// PrependDelegate adds service delegates before every registered item.
func (b *builder) PrependDelegate(delegates ...ServiceConventionFunc) error {
	return b.registry.Prepend(toItems(delegates)...)
}

// Scan adds the conventions listed by catalog to the registry.
func (b *builder) Scan(catalog Catalog) error {
	if err := b.registry.Scan(catalog); err != nil {
		return err
	}

	b.catalogMu.Lock()
	b.catalogs = append(b.catalogs, catalog)
	b.catalogMu.Unlock()
	return nil
}

// Catalog lists the conventions of every scanned catalog.
func (b *builder) Catalog() Catalog {
	b.catalogMu.Lock()
	defer b.catalogMu.Unlock()
	return MergeCatalogs(append([]Catalog(nil), b.catalogs...)...)
}

func (b *builder) Configuration() config.Configuration { return b.configuration }
func (b *builder) Environment() *Environment           { return b.environment }
func (b *builder) Logger() *slog.Logger                { return b.logger }
func (b *builder) Properties() *Properties             { return b.properties }

func (b *builder) OnBuild() Observable[ServiceProvider] { return b.onBuild }

func (b *builder) OnContainerBuild() Observable[*dig.Container] { return b.onContainerBuild }

// State returns the lifecycle state.
func (b *builder) State() State { return State(b.state.Load()) }

// begin moves a created builder into the configuring state.
func (b *builder) begin() error {
	if b.state.CompareAndSwap(int32(StateCreated), int32(StateConfiguring)) {
		return nil
	}

	switch b.State() {
	case StateConfiguring, StateBuilding:
		return ErrBuildInProgress
	case StateBuilt:
		return ErrAlreadyBuilt
	default:
		return ErrBuildFailed
	}
}

func (b *builder) finish(err error) {
	if err != nil {
		b.state.Store(int32(StateFailed))
		return
	}
	b.state.Store(int32(StateBuilt))
}

func (b *builder) compose(kinds []Kind) error {
	if err := NewComposer(b.registry, b.logger).Register(b, kinds...); err != nil {
		return BuildError{Phase: "compose", Cause: err}
	}
	b.state.Store(int32(StateBuilding))
	return nil
}

// newRoot creates the root container and scope. The configuration and the
// environment are injectable from every scope.
func (b *builder) newRoot() (*dig.Container, *scope, error) {
	c := dig.New(b.containerOptions...)

	root, err := newRootScope(c, b.logger)
	if err != nil {
		return nil, nil, BuildError{Phase: "core", Details: "create root scope", Cause: err}
	}

	if err := root.provideValue(b.configuration, reflect.TypeFor[config.Configuration]()); err != nil {
		return nil, nil, BuildError{Phase: "core", Details: "register configuration", Cause: err}
	}
	if err := root.provideValue(b.environment, reflect.TypeFor[*Environment]()); err != nil {
		return nil, nil, BuildError{Phase: "core", Details: "register environment", Cause: err}
	}

	return c, root, nil
}

// populate applies the actions of buckets to s, then registers descriptors.
func (b *builder) populate(s *scope, descriptors []Descriptor, buckets ...*Bucket) error {
	for _, bucket := range buckets {
		s.tree.Lock()
		err := bucket.Apply(s.node)
		s.tree.Unlock()
		if err != nil {
			return err
		}
	}

	regs, err := translateAll(descriptors, buckets[len(buckets)-1].Name())
	if err != nil {
		return err
	}

	if dropped := len(descriptors) - len(regs); dropped > 0 {
		b.logger.Debug("replaced duplicate registrations",
			"scope", s.tag,
			"count", dropped,
		)
	}

	for _, reg := range regs {
		if err := s.register(reg); err != nil {
			return err
		}
	}

	if b.validateScopes {
		return validateLifetimes(s)
	}
	return nil
}

func toItems[T any](values []T) []any {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return items
}

// Builder composes conventions and builds a root scope for the core bucket
// with child scopes for the system and application buckets.
//
// Example:
//
//	builder, err := conventions.NewBuilder(conventions.NewCollection(), cfg, env,
//	    conventions.WithCatalog(app.Conventions),
//	)
//	if err != nil {
//	    return err
//	}
//
//	artifact, err := builder.Build()
//	if err != nil {
//	    return err
//	}
//	defer artifact.Close()
type Builder struct {
	*builder
}

// NewBuilder creates a Builder. services backs the core bucket.
func NewBuilder(services Collection, cfg config.Configuration, env *Environment, opts ...Option) (*Builder, error) {
	b, err := newBuilder(services, cfg, env, opts)
	if err != nil {
		return nil, err
	}
	return &Builder{builder: b}, nil
}

// AppendContainerDelegate adds container delegates after every registered
// item.
func (b *Builder) AppendContainerDelegate(delegates ...ContainerConventionFunc) error {
	return b.registry.Append(toItems(delegates)...)
}

// PrependContainerDelegate adds container delegates before every
// registered item.
func (b *Builder) PrependContainerDelegate(delegates ...ContainerConventionFunc) error {
	return b.registry.Prepend(toItems(delegates)...)
}

// Build composes every registered convention and delegate, then builds the
// scopes:
//
//   - the root scope gets the core bucket
//   - a child scope tagged SystemTag gets the system bucket
//   - a child scope tagged ApplicationTag gets the application bucket
//
// Core registrations are visible from both child scopes. System and
// application registrations are not visible from each other. Once the
// scopes are built, OnContainerBuild, OnBuild and the buckets' OnBuild
// observables are notified in that order.
//
// A builder can be built once. Later calls return ErrAlreadyBuilt, or
// ErrBuildFailed when the first Build failed.
func (b *Builder) Build() (*Artifact, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}

	artifact, err := b.build()
	b.finish(err)
	if err != nil {
		b.logger.Error("build failed", "error", err)
		return nil, err
	}
	return artifact, nil
}

func (b *Builder) build() (*Artifact, error) {
	start := time.Now()

	if err := b.compose(AllKinds); err != nil {
		return nil, err
	}

	c, root, err := b.newRoot()
	if err != nil {
		return nil, err
	}

	if err := b.populate(root, b.core.Services().ToSlice(), b.core); err != nil {
		_ = root.Close()
		return nil, BuildError{Phase: "core", Cause: err}
	}

	system, err := b.child(root, b.system)
	if err != nil {
		_ = root.Close()
		return nil, BuildError{Phase: "system", Cause: err}
	}

	application, err := b.child(root, b.application)
	if err != nil {
		_ = root.Close()
		return nil, BuildError{Phase: "application", Cause: err}
	}

	artifact := &Artifact{
		ID:          uuid.NewString(),
		Container:   c,
		Root:        root,
		System:      system,
		Application: application,
	}

	b.logger.Info("container built",
		"id", artifact.ID,
		"core", b.core.Services().Count(),
		"system", b.system.Services().Count(),
		"application", b.application.Services().Count(),
		"duration", time.Since(start),
	)

	b.onContainerBuild.Send(c)
	b.onBuild.Send(root)
	b.core.onBuild.Send(root)
	b.system.onBuild.Send(system)
	b.application.onBuild.Send(application)

	return artifact, nil
}

// child builds the scope for bucket below root.
func (b *Builder) child(root *scope, bucket *Bucket) (*scope, error) {
	s, err := root.child(root.ctx, bucket.Tag())
	if err != nil {
		return nil, err
	}

	descriptors := bucket.Services().ToSlice()
	own := make(map[serviceKey]struct{}, len(descriptors))
	for _, d := range descriptors {
		own[d.key()] = struct{}{}
	}

	if err := s.inheritScoped(own); err != nil {
		return nil, err
	}
	if err := b.populate(s, descriptors, bucket); err != nil {
		return nil, err
	}
	return s, nil
}
