package conventions_test

import (
	"reflect"
	"testing"

	"github.com/junioryono/conventions"
	"github.com/junioryono/conventions/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModule(t *testing.T) {
	t.Run("creates module with services", func(t *testing.T) {
		t.Parallel()

		module := conventions.NewModule("test-module",
			conventions.AddSingleton(testutil.NewFoo),
			conventions.AddScoped(testutil.NewTestService),
		)

		collection := conventions.NewCollection()
		require.NoError(t, collection.AddModules(module))
		assert.Equal(t, 2, collection.Count())
	})

	t.Run("empty module", func(t *testing.T) {
		t.Parallel()

		collection := conventions.NewCollection()
		require.NoError(t, collection.AddModules(conventions.NewModule("empty-module")))
		assert.Zero(t, collection.Count())
	})

	t.Run("module with nil builders", func(t *testing.T) {
		t.Parallel()

		module := conventions.NewModule("module-with-nils",
			conventions.AddSingleton(testutil.NewFoo),
			nil,
			conventions.AddScoped(testutil.NewTestService),
		)

		collection := conventions.NewCollection()
		require.NoError(t, collection.AddModules(module, nil))
		assert.Equal(t, 2, collection.Count())
	})
}

func TestModule_Composition(t *testing.T) {
	t.Run("nested modules", func(t *testing.T) {
		t.Parallel()

		storage := conventions.NewModule("storage",
			conventions.AddSingleton(testutil.NewFoo, conventions.As(new(testutil.Foo))),
		)
		app := conventions.NewModule("app",
			storage,
			conventions.AddTransient(testutil.NewBar, conventions.As(new(testutil.Bar))),
			conventions.AddInstance(&testutil.TestService{ID: "fixed"}, conventions.Name("fixed")),
		)

		collection := conventions.NewCollection()
		require.NoError(t, collection.AddModules(app))

		assert.True(t, collection.Contains(reflect.TypeFor[testutil.Foo]()))
		assert.True(t, collection.Contains(reflect.TypeFor[testutil.Bar]()))
		assert.True(t, collection.ContainsKeyed(reflect.TypeFor[*testutil.TestService](), "fixed"))
	})

	t.Run("errors name the failing module", func(t *testing.T) {
		t.Parallel()

		inner := conventions.NewModule("inner", conventions.AddSingleton(nil))
		outer := conventions.NewModule("outer", conventions.AddScoped(testutil.NewTestService), inner)

		collection := conventions.NewCollection()
		err := collection.AddModules(outer)
		require.Error(t, err)
		assert.ErrorIs(t, err, conventions.ErrConstructorNil)

		moduleErr := testutil.AssertErrorType[conventions.ModuleError](t, err)
		assert.Equal(t, "outer", moduleErr.Module)

		var innerErr conventions.ModuleError
		require.ErrorAs(t, moduleErr.Cause, &innerErr)
		assert.Equal(t, "inner", innerErr.Module)

		// Registrations before the failure are kept.
		assert.Equal(t, 1, collection.Count())
	})
}

func TestModuleConvention(t *testing.T) {
	t.Run("adds modules to the named bucket", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		require.NoError(t, b.AppendConvention(conventions.ModuleConvention(conventions.ApplicationBucket,
			conventions.NewModule("app", conventions.AddScoped(testutil.NewTestService)),
		)))

		artifact := testutil.Build(t, b)
		testutil.AssertServiceResolvable[*testutil.TestService](t, artifact.Application)
		testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.Root)
		testutil.AssertServiceNotFound[*testutil.TestService](t, artifact.System)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		t.Parallel()

		b := testutil.NewBuilder(t)
		require.NoError(t, b.AppendConvention(conventions.ModuleConvention("missing",
			conventions.NewModule("app", conventions.AddScoped(testutil.NewTestService)),
		)))

		_, err := b.Build()
		require.Error(t, err)

		argErr := testutil.AssertErrorType[conventions.ArgumentError](t, err)
		assert.Equal(t, "bucket", argErr.Argument)
	})
}

func TestAddOption_String(t *testing.T) {
	assert.Equal(t, `Name("ro")`, conventions.Name("ro").(interface{ String() string }).String())
	assert.Equal(t, "As(testutil.Foo)", conventions.As(new(testutil.Foo)).(interface{ String() string }).String())
}
