package conventions_test

import (
	"context"
	"log/slog"
	"reflect"
	"testing"

	"github.com/junioryono/conventions"
	"github.com/junioryono/conventions/config"
	"github.com/junioryono/conventions/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

// registerServices appends a convention that runs fn.
func registerServices(t *testing.T, b interface{ AppendConvention(...any) error }, fn func(ctx conventions.Context) error) {
	t.Helper()
	require.NoError(t, b.AppendConvention(conventions.ServiceConventionFunc(fn)))
}

func TestNewBuilder_Arguments(t *testing.T) {
	cfg := testutil.TestConfiguration(nil)
	env := testutil.TestEnvironment()

	tests := []struct {
		name     string
		services conventions.Collection
		cfg      config.Configuration
		env      *conventions.Environment
		wantErr  error
	}{
		{name: "nil services", cfg: cfg, env: env, wantErr: conventions.ErrServicesNil},
		{name: "nil configuration", services: conventions.NewCollection(), env: env, wantErr: conventions.ErrConfigurationNil},
		{name: "nil environment", services: conventions.NewCollection(), cfg: cfg, wantErr: conventions.ErrEnvironmentNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := conventions.NewBuilder(tt.services, tt.cfg, tt.env)
			assert.ErrorIs(t, err, tt.wantErr)
			testutil.AssertErrorType[conventions.ArgumentError](t, err)

			_, err = conventions.NewServicesBuilder(tt.services, tt.cfg, tt.env)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuilder_SharedCoreTransientApplication(t *testing.T) {
	t.Parallel()

	b := testutil.NewBuilder(t)
	registerServices(t, b, func(ctx conventions.Context) error {
		if err := ctx.Services().AddSingleton(testutil.NewFoo, conventions.As(new(testutil.Foo))); err != nil {
			return err
		}
		return ctx.Application().Services().AddTransient(testutil.NewBar, conventions.As(new(testutil.Bar)))
	})

	artifact := testutil.Build(t, b)

	foo1 := testutil.AssertServiceResolvable[testutil.Foo](t, artifact.Application)
	foo2 := testutil.AssertServiceResolvable[testutil.Foo](t, artifact.Application)
	assert.Same(t, foo1, foo2)

	bar1 := testutil.AssertServiceResolvable[testutil.Bar](t, artifact.Application)
	bar2 := testutil.AssertServiceResolvable[testutil.Bar](t, artifact.Application)
	assert.NotSame(t, bar1, bar2)
	assert.NotEqual(t, bar1.ID(), bar2.ID())
	assert.Same(t, foo1, bar1.Foo())
	assert.Same(t, foo1, bar2.Foo())

	fromSystem := testutil.AssertServiceResolvable[testutil.Foo](t, artifact.System)
	assert.Same(t, foo1, fromSystem)

	testutil.AssertServiceNotFound[testutil.Bar](t, artifact.System)
	testutil.AssertServiceNotFound[testutil.Bar](t, artifact.Root)
}

func TestBuilder_BucketIsolation(t *testing.T) {
	t.Run("singleton per bucket", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			if err := ctx.System().Services().AddSingleton(testutil.NewTestService); err != nil {
				return err
			}
			return ctx.Application().Services().AddSingleton(testutil.NewTestService)
		})

		artifact := testutil.Build(t, b)

		sys1 := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
		sys2 := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
		app1 := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application)
		app2 := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application)

		assert.Same(t, sys1, sys2)
		assert.Same(t, app1, app2)
		assert.NotSame(t, sys1, app1)
	})

	t.Run("system registrations are invisible to the application", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			return ctx.System().Services().AddSingleton(testutil.NewTestService)
		})

		artifact := testutil.Build(t, b)

		testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
		testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.Application)
		testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.Root)
	})

	t.Run("core registrations are visible everywhere", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			return ctx.Core().Services().AddSingleton(testutil.NewTestService)
		})

		artifact := testutil.Build(t, b)

		root := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Root)
		assert.Same(t, root, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System))
		assert.Same(t, root, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application))
	})

	t.Run("application registration shadows core", func(t *testing.T) {
		t.Parallel()

		core := &testutil.TestService{ID: "core"}
		app := &testutil.TestService{ID: "application"}

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			if err := ctx.Services().AddInstance(core); err != nil {
				return err
			}
			return ctx.Application().Services().AddInstance(app)
		})

		artifact := testutil.Build(t, b)

		assert.Same(t, app, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application))
		assert.Same(t, core, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System))
		assert.Same(t, core, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Root))
	})

	t.Run("scoped core services get one instance per scope", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			return ctx.Services().AddScoped(testutil.NewTestService)
		})

		artifact := testutil.Build(t, b)

		root := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Root)
		system := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
		app := testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application)

		assert.NotSame(t, root, system)
		assert.NotSame(t, root, app)
		assert.NotSame(t, system, app)
		assert.Same(t, app, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application))
	})
}

func TestBuilder_ContainerActions(t *testing.T) {
	t.Parallel()

	b := testutil.NewBuilder(t)
	require.NoError(t, b.AppendConvention(conventions.ContainerConventionFunc(func(ctx conventions.Context) error {
		ctx.System().ConfigureContainer(func(cb conventions.ContainerBuilder) error {
			return cb.Provide(testutil.NewTestService)
		})
		ctx.ConfigureContainer(func(cb conventions.ContainerBuilder) error {
			return cb.Provide(func() *testutil.FooImpl { return testutil.NewFoo() })
		})
		return nil
	})))

	artifact := testutil.Build(t, b)

	testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
	testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.Application)

	foo := testutil.AssertServiceResolvable[*testutil.FooImpl](t, artifact.Root)
	assert.Same(t, foo, testutil.AssertServiceResolvable[*testutil.FooImpl](t, artifact.Application))

	err := artifact.Container.Invoke(func(f *testutil.FooImpl) {
		assert.Same(t, foo, f)
	})
	assert.NoError(t, err)
}

func TestBuilder_BuiltIns(t *testing.T) {
	t.Parallel()

	cfg := testutil.TestConfiguration(map[string]any{"greeting": "hello"})
	env := testutil.TestEnvironment()

	b, err := conventions.NewBuilder(conventions.NewCollection(), cfg, env)
	require.NoError(t, err)

	artifact := testutil.Build(t, b)

	err = artifact.Application.Invoke(func(c config.Configuration, e *conventions.Environment, s conventions.Scope, ctx context.Context) {
		assert.Equal(t, "hello", c.Get("greeting"))
		assert.Same(t, env, e)
		assert.Equal(t, conventions.ApplicationTag, s.Tag())

		fromCtx, err := conventions.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, s, fromCtx)
	})
	require.NoError(t, err)

	assert.Equal(t, conventions.RootTag, artifact.Root.Tag())
	assert.Equal(t, conventions.SystemTag, artifact.System.Tag())
	assert.Same(t, artifact.Root, artifact.System.Parent())
	assert.Same(t, artifact.Root, artifact.Application.Parent())
	assert.Nil(t, artifact.Root.Parent())
}

func TestBuilder_Events(t *testing.T) {
	t.Run("notifies in order after the scopes are built", func(t *testing.T) {
		t.Parallel()

		var events []string
		record := func(name string) {
			events = append(events, name)
		}

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			conventions.OnNext(ctx.OnContainerBuild(), func(*dig.Container) error {
				record("container")
				return nil
			})
			conventions.OnNext(ctx.OnBuild(), func(sp conventions.ServiceProvider) error {
				record("provider")
				return nil
			})
			for _, bucket := range []*conventions.Bucket{ctx.Core(), ctx.System(), ctx.Application()} {
				conventions.OnNext(bucket.OnBuild(), func(s conventions.Scope) error {
					record(s.Tag())
					return nil
				})
			}
			return nil
		})

		artifact := testutil.Build(t, b)
		assert.Equal(t, []string{
			"container",
			"provider",
			conventions.RootTag,
			conventions.SystemTag,
			conventions.ApplicationTag,
		}, events)

		late := false
		conventions.OnNext(b.OnBuild(), func(conventions.ServiceProvider) error {
			late = true
			return nil
		})
		assert.False(t, late, "late subscribers are not notified")
		assert.NotNil(t, artifact)
	})

	t.Run("delivers the built scopes", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)

		var (
			container *dig.Container
			app       conventions.Scope
		)
		conventions.OnNext(b.OnContainerBuild(), func(c *dig.Container) error {
			container = c
			return nil
		})
		conventions.OnNext(b.Application().OnBuild(), func(s conventions.Scope) error {
			app = s
			return nil
		})

		artifact := testutil.Build(t, b)
		assert.Same(t, artifact.Container, container)
		assert.Same(t, artifact.Application, app)
	})

	t.Run("failing observers do not stop delivery", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)

		delivered := 0
		conventions.OnNext(b.OnBuild(), func(conventions.ServiceProvider) error {
			return testutil.ErrIntentional
		})
		conventions.OnNext(b.OnBuild(), func(conventions.ServiceProvider) error {
			panic("observer panic")
		})
		conventions.OnNext(b.OnBuild(), func(conventions.ServiceProvider) error {
			delivered++
			return nil
		})

		testutil.Build(t, b)
		assert.Equal(t, 1, delivered)
	})

	t.Run("disposed subscriptions are skipped", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)

		called := false
		sub := conventions.OnNext(b.OnBuild(), func(conventions.ServiceProvider) error {
			called = true
			return nil
		})
		sub.Dispose()

		testutil.Build(t, b)
		assert.False(t, called)
	})
}

func TestBuilder_State(t *testing.T) {
	t.Run("builds once", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		assert.Equal(t, conventions.StateCreated, b.State())

		var during conventions.State
		registerServices(t, b, func(conventions.Context) error {
			during = b.State()
			return nil
		})

		testutil.Build(t, b)
		assert.Equal(t, conventions.StateConfiguring, during)
		assert.Equal(t, conventions.StateBuilt, b.State())

		_, err := b.Build()
		assert.ErrorIs(t, err, conventions.ErrAlreadyBuilt)
	})

	t.Run("re-entrant build is rejected", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)

		var inner error
		registerServices(t, b, func(conventions.Context) error {
			_, inner = b.Build()
			return nil
		})

		testutil.Build(t, b)
		assert.ErrorIs(t, inner, conventions.ErrBuildInProgress)
	})

	t.Run("failed build is terminal", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(conventions.Context) error {
			return testutil.ErrIntentional
		})

		_, err := b.Build()
		require.Error(t, err)
		assert.ErrorIs(t, err, testutil.ErrIntentional)

		buildErr := testutil.AssertErrorType[conventions.BuildError](t, err)
		assert.Equal(t, "compose", buildErr.Phase)
		assert.Equal(t, conventions.StateFailed, b.State())

		_, err = b.Build()
		assert.ErrorIs(t, err, conventions.ErrBuildFailed)
	})

	t.Run("action failure names the bucket", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			ctx.System().ConfigureContainer(func(conventions.ContainerBuilder) error {
				return testutil.ErrIntentional
			})
			return nil
		})

		_, err := b.Build()
		require.Error(t, err)

		buildErr := testutil.AssertErrorType[conventions.BuildError](t, err)
		assert.Equal(t, "system", buildErr.Phase)

		actionErr := testutil.AssertErrorType[conventions.ActionError](t, err)
		assert.Equal(t, conventions.SystemBucket, actionErr.Bucket)
	})

	t.Run("action colliding with a registration fails", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		registerServices(t, b, func(ctx conventions.Context) error {
			ctx.ConfigureContainer(func(cb conventions.ContainerBuilder) error {
				return cb.Provide(func() conventions.Scope { return nil })
			})
			return nil
		})

		_, err := b.Build()
		require.Error(t, err)
		assert.Equal(t, conventions.StateFailed, b.State())
	})
}

func TestBuilder_DuplicateRegistrationsLastWins(t *testing.T) {
	t.Parallel()

	first := &testutil.TestService{ID: "first"}
	second := &testutil.TestService{ID: "second"}

	b := testutil.NewBuilder(t)
	registerServices(t, b, func(ctx conventions.Context) error {
		if err := ctx.Services().AddInstance(first); err != nil {
			return err
		}
		return ctx.Services().AddInstance(second)
	})

	artifact := testutil.Build(t, b)
	assert.Same(t, second, testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application))
}

func TestBuilder_Options(t *testing.T) {
	t.Run("catalog is scanned at creation", func(t *testing.T) {
		t.Parallel()

		r := &testutil.Recorder{}
		catalog := conventions.NewCatalog(spy(r, "from-catalog"))

		b := testutil.NewBuilder(t, conventions.WithCatalog(catalog))
		require.NoError(t, b.AppendConvention(spy(r, "appended")))
		require.NoError(t, b.PrependConvention(spy(r, "prepended")))

		items, err := b.Catalog().Conventions()
		require.NoError(t, err)
		assert.Len(t, items, 1)

		testutil.Build(t, b)
		assert.Equal(t, []string{"prepended", "from-catalog", "appended"}, r.Calls())
	})

	t.Run("properties are shared", func(t *testing.T) {
		t.Parallel()

		props := conventions.NewProperties()
		props.Set("feature", true)

		b := testutil.NewBuilder(t, conventions.WithProperties(props))
		registerServices(t, b, func(ctx conventions.Context) error {
			enabled, ok := conventions.Property[bool](ctx.Properties(), "feature")
			assert.True(t, ok)
			assert.True(t, enabled)
			ctx.Properties().Set("seen", "yes")
			return nil
		})

		testutil.Build(t, b)

		v, ok := props.Get("seen")
		assert.True(t, ok)
		assert.Equal(t, "yes", v)
	})

	t.Run("delegates", func(t *testing.T) {
		t.Parallel()

		r := &testutil.Recorder{}
		b := testutil.NewBuilder(t)
		require.NoError(t, b.AppendDelegate(testutil.Delegate(r, "service")))
		require.NoError(t, b.AppendContainerDelegate(testutil.ContainerDelegate(r, "container")))
		require.NoError(t, b.PrependDelegate(testutil.Delegate(r, "first")))
		require.NoError(t, b.PrependContainerDelegate(testutil.ContainerDelegate(r, "zeroth")))

		testutil.Build(t, b)
		assert.Equal(t, []string{"zeroth", "first", "service", "container"}, r.Calls())
	})

	t.Run("module convention targets a bucket", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		require.NoError(t, b.AppendConvention(conventions.ModuleConvention(conventions.SystemBucket,
			conventions.NewModule("system", conventions.AddSingleton(testutil.NewTestService)),
		)))

		artifact := testutil.Build(t, b)
		testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.System)
		testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.Application)
	})
}

type captive struct{ svc *testutil.TestService }

type relay struct{ svc *testutil.TestService }

func newCaptive(svc *testutil.TestService) *captive { return &captive{svc: svc} }

func newRelay(svc *testutil.TestService) *relay { return &relay{svc: svc} }

func newBuilderIn(t *testing.T, env string, opts ...conventions.Option) *conventions.Builder {
	t.Helper()

	b, err := conventions.NewBuilder(conventions.NewCollection(), testutil.TestConfiguration(nil),
		&conventions.Environment{Name: env}, opts...)
	require.NoError(t, err)
	return b
}

func TestBuilder_ScopeValidation(t *testing.T) {
	captiveSingleton := func(ctx conventions.Context) error {
		if err := ctx.Services().AddScoped(testutil.NewTestService); err != nil {
			return err
		}
		return ctx.Services().AddSingleton(newCaptive)
	}

	t.Run("development rejects singletons capturing scoped services", func(t *testing.T) {
		t.Parallel()

		b := newBuilderIn(t, conventions.Development)
		registerServices(t, b, captiveSingleton)

		_, err := b.Build()
		require.Error(t, err)

		conflict := testutil.AssertErrorType[conventions.LifetimeConflictError](t, err)
		assert.Equal(t, reflect.TypeFor[*captive](), conflict.ServiceType)
		assert.Equal(t, reflect.TypeFor[*testutil.TestService](), conflict.DependencyType)
		assert.Equal(t, conventions.Scoped, conflict.DependencyLifetime)
		assert.Empty(t, conflict.Path)

		buildErr := testutil.AssertErrorType[conventions.BuildError](t, err)
		assert.Equal(t, "core", buildErr.Phase)
		assert.Equal(t, conventions.StateFailed, b.State())
	})

	t.Run("conflicts through transient services", func(t *testing.T) {
		t.Parallel()

		b := newBuilderIn(t, conventions.Development)
		registerServices(t, b, func(ctx conventions.Context) error {
			if err := ctx.Services().AddScoped(testutil.NewTestService); err != nil {
				return err
			}
			if err := ctx.Services().AddTransient(newRelay); err != nil {
				return err
			}
			return ctx.Services().AddSingleton(func(r *relay) *captive { return &captive{svc: r.svc} })
		})

		_, err := b.Build()
		conflict := testutil.AssertErrorType[conventions.LifetimeConflictError](t, err)
		assert.Equal(t, []reflect.Type{reflect.TypeFor[*relay]()}, conflict.Path)
	})

	t.Run("bucket singletons capturing core scoped services", func(t *testing.T) {
		t.Parallel()

		b := newBuilderIn(t, conventions.Development)
		registerServices(t, b, func(ctx conventions.Context) error {
			if err := ctx.Core().Services().AddScoped(testutil.NewTestService); err != nil {
				return err
			}
			return ctx.Application().Services().AddSingleton(newCaptive)
		})

		_, err := b.Build()
		testutil.AssertErrorType[conventions.LifetimeConflictError](t, err)

		buildErr := testutil.AssertErrorType[conventions.BuildError](t, err)
		assert.Equal(t, "application", buildErr.Phase)
	})

	t.Run("allowed dependencies", func(t *testing.T) {
		t.Parallel()

		b := newBuilderIn(t, conventions.Development)
		registerServices(t, b, func(ctx conventions.Context) error {
			s := ctx.Services()
			if err := s.AddSingleton(testutil.NewFoo, conventions.As(new(testutil.Foo))); err != nil {
				return err
			}
			if err := s.AddScoped(testutil.NewTestService); err != nil {
				return err
			}
			if err := s.AddScoped(newCaptive, conventions.Name("scoped")); err != nil {
				return err
			}
			if err := s.AddTransient(newRelay); err != nil {
				return err
			}
			return conventions.AddFactoryOf(s, conventions.Singleton, func(conventions.ServiceProvider) (*captive, error) {
				return &captive{}, nil
			})
		})

		testutil.Build(t, b)
	})

	t.Run("production skips the check", func(t *testing.T) {
		t.Parallel()

		b := newBuilderIn(t, conventions.Production)
		registerServices(t, b, captiveSingleton)
		testutil.Build(t, b)
	})

	t.Run("option overrides the environment", func(t *testing.T) {
		t.Parallel()

		on := newBuilderIn(t, conventions.Production, conventions.WithScopeValidation(true))
		registerServices(t, on, captiveSingleton)
		_, err := on.Build()
		testutil.AssertErrorType[conventions.LifetimeConflictError](t, err)

		off := newBuilderIn(t, conventions.Development, conventions.WithScopeValidation(false))
		registerServices(t, off, captiveSingleton)
		testutil.Build(t, off)
	})

	t.Run("services builder", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewServicesBuilder(t)
		registerServices(t, b, captiveSingleton)

		_, err := b.Build()
		testutil.AssertErrorType[conventions.LifetimeConflictError](t, err)
	})
}

func TestBuilder_DefaultLogger(t *testing.T) {
	t.Run("read from the logging section", func(t *testing.T) {
		t.Parallel()

		cfg := testutil.TestConfiguration(map[string]any{
			"logging": map[string]any{"level": "error"},
		})
		b, err := conventions.NewBuilder(conventions.NewCollection(), cfg, testutil.TestEnvironment())
		require.NoError(t, err)

		assert.True(t, b.Logger().Enabled(context.Background(), slog.LevelError))
		assert.False(t, b.Logger().Enabled(context.Background(), slog.LevelInfo))
	})

	t.Run("discards without a logging section", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		assert.False(t, b.Logger().Enabled(context.Background(), slog.LevelError))
	})

	t.Run("invalid logging section", func(t *testing.T) {
		t.Parallel()

		cfg := testutil.TestConfiguration(map[string]any{
			"logging": map[string]any{"level": "loud"},
		})
		_, err := conventions.NewServicesBuilder(conventions.NewCollection(), cfg, testutil.TestEnvironment())

		argErr := testutil.AssertErrorType[conventions.ArgumentError](t, err)
		assert.Equal(t, "configuration", argErr.Argument)
	})

	t.Run("explicit logger wins", func(t *testing.T) {
		t.Parallel()

		cfg := testutil.TestConfiguration(map[string]any{
			"logging": map[string]any{"level": "error"},
		})
		logger := slog.New(slog.DiscardHandler)
		b, err := conventions.NewBuilder(conventions.NewCollection(), cfg, testutil.TestEnvironment(), conventions.WithLogger(logger))
		require.NoError(t, err)
		assert.Same(t, logger, b.Logger())
	})
}
