// Package conventions composes dependency injection containers from
// conventions: small, self-registering units that add services and
// container actions to a builder before it builds.
//
// # Overview
//
// A builder owns three buckets of registrations:
//   - Core: built into the root scope and visible from every scope
//   - System: built into a system scope derived from the root
//   - Application: built into an application scope derived from the root
//
// Conventions are collected in a Registry, in order, from explicit
// Append/Prepend calls and from catalogs. When Build runs, a Composer
// invokes each one with the builder as its Context. The buckets are then
// translated into go.uber.org/dig registrations and the scopes are built.
//
// # Basic Usage
//
//	services := conventions.NewCollection()
//	builder, err := conventions.NewBuilder(services, cfg, env,
//	    conventions.WithLogger(logger),
//	    conventions.WithCatalog(conventions.NewCatalog(
//	        StorageConvention{},
//	        conventions.ModuleConvention(conventions.ApplicationBucket, OrdersModule),
//	    )),
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
//
//	orders, err := conventions.Resolve[*OrderService](artifact.Application)
//
// # Conventions
//
// Four kinds of item can be registered:
//
//   - ServiceConvention: a value with Register(Context) error
//   - ContainerConvention: a value with RegisterContainer(Context) error
//   - ServiceConventionFunc, or a plain func(Context) error
//   - ContainerConventionFunc
//
// Items run in registry order. A value implementing both interfaces has
// both methods called. Conventions may append or prepend further items
// while composition runs; those run in the same build.
//
// # Lifetimes
//
//   - Singleton: one instance per bucket scope
//   - Scoped: one instance per scope, including scopes made by CreateScope
//   - Transient: a new instance on every Resolve and Invoke, and for every
//     transient that takes it
//
// In the Development environment a build fails when a singleton depends on
// a scoped service, directly or through transients. WithScopeValidation
// turns the check on or off explicitly.
//
// # Builders
//
// Builder produces root, system and application scopes. ServicesBuilder
// runs only service conventions and merges the core and application
// buckets into a single root scope; its system bucket is ignored.
//
// A builder builds once. Build reports ErrAlreadyBuilt on a second call
// and ErrBuildFailed after a failed build.
//
// # Events
//
// Observers subscribed through OnContainerBuild, OnBuild and each bucket's
// OnBuild receive the built container and scopes once, in that order.
// Observers subscribed after the build receive nothing.
package conventions
