package conventions_test

import (
	"reflect"
	"testing"

	"github.com/junioryono/conventions"
	"github.com/junioryono/conventions/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_Add(t *testing.T) {
	fooType := reflect.TypeFor[testutil.Foo]()
	serviceType := reflect.TypeFor[*testutil.TestService]()

	t.Run("constructors", func(t *testing.T) {
		t.Parallel()

		c := conventions.NewCollection()
		require.NoError(t, c.AddSingleton(testutil.NewFoo, conventions.As(new(testutil.Foo))))
		require.NoError(t, c.AddScoped(testutil.NewTestService))
		require.NoError(t, c.AddTransient(testutil.NewBar, conventions.Name("bar")))

		descriptors := c.ToSlice()
		require.Len(t, descriptors, 3)

		assert.Equal(t, fooType, descriptors[0].ServiceType)
		assert.Equal(t, conventions.Singleton, descriptors[0].Lifetime)
		assert.Equal(t, conventions.ConstructorImplementation, descriptors[0].Kind())

		assert.Equal(t, serviceType, descriptors[1].ServiceType)
		assert.Equal(t, conventions.Scoped, descriptors[1].Lifetime)

		assert.Equal(t, reflect.TypeFor[*testutil.BarImpl](), descriptors[2].ServiceType)
		assert.Equal(t, "bar", descriptors[2].Name)
		assert.Equal(t, conventions.Transient, descriptors[2].Lifetime)
	})

	t.Run("instances are singletons", func(t *testing.T) {
		t.Parallel()

		c := conventions.NewCollection()
		require.NoError(t, c.AddInstance(&testutil.TestService{ID: "x"}))
		require.NoError(t, conventions.AddInstanceOf[testutil.Foo](c, testutil.NewFoo()))

		descriptors := c.ToSlice()
		require.Len(t, descriptors, 2)
		for _, d := range descriptors {
			assert.Equal(t, conventions.Singleton, d.Lifetime)
			assert.Equal(t, conventions.InstanceImplementation, d.Kind())
		}
		assert.Equal(t, fooType, descriptors[1].ServiceType)
	})

	t.Run("factories and types", func(t *testing.T) {
		t.Parallel()

		c := conventions.NewCollection()
		require.NoError(t, conventions.AddFactoryOf(c, conventions.Scoped, func(conventions.ServiceProvider) (testutil.Foo, error) {
			return testutil.NewFoo(), nil
		}))
		require.NoError(t, conventions.AddTypeOf[*testutil.TestService, *testutil.TestService](c, conventions.Transient))

		descriptors := c.ToSlice()
		require.Len(t, descriptors, 2)
		assert.Equal(t, conventions.FactoryImplementation, descriptors[0].Kind())
		assert.Equal(t, fooType, descriptors[0].ServiceType)
		assert.Equal(t, conventions.TypeImplementation, descriptors[1].Kind())
	})

	t.Run("invalid registrations", func(t *testing.T) {
		tests := []struct {
			name string
			add  func(conventions.Collection) error
			want error
		}{
			{
				name: "nil constructor",
				add:  func(c conventions.Collection) error { return c.AddSingleton(nil) },
				want: conventions.ErrConstructorNil,
			},
			{
				name: "not a function",
				add:  func(c conventions.Collection) error { return c.AddScoped("service") },
				want: conventions.ErrConstructorNotFunc,
			},
			{
				name: "error only",
				add:  func(c conventions.Collection) error { return c.AddTransient(func() error { return nil }) },
				want: conventions.ErrConstructorNoResult,
			},
			{
				name: "nil instance",
				add:  func(c conventions.Collection) error { return c.AddInstance(nil) },
				want: conventions.ErrNoImplementation,
			},
			{
				name: "not assignable",
				add: func(c conventions.Collection) error {
					return c.AddSingleton(testutil.NewTestService, conventions.As(new(testutil.Foo)))
				},
				want: conventions.ErrNotAssignable,
			},
			{
				name: "nil factory",
				add: func(c conventions.Collection) error {
					return conventions.AddFactoryOf[testutil.Foo](c, conventions.Scoped, nil)
				},
				want: conventions.ErrConstructorNil,
			},
			{
				name: "missing service type",
				add: func(c conventions.Collection) error {
					return c.AddFactory(nil, conventions.Singleton, func(conventions.ServiceProvider) (any, error) { return nil, nil })
				},
				want: conventions.ErrServiceTypeNil,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				c := conventions.NewCollection()
				err := tt.add(c)
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.want)
				testutil.AssertErrorType[conventions.RegistrationError](t, err)
				assert.Zero(t, c.Count())
			})
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		t.Parallel()

		c := conventions.NewCollection()
		assert.Error(t, c.AddSingleton(testutil.NewFoo, conventions.As(nil)))
		assert.Error(t, c.AddSingleton(testutil.NewFoo, conventions.As(testutil.FooImpl{})))
		assert.Error(t, c.AddSingleton(testutil.NewFoo, conventions.As(new(testutil.FooImpl))))
		assert.Error(t, c.AddSingleton(testutil.NewFoo, conventions.Name("a`b")))
		assert.Zero(t, c.Count())
	})
}

func TestCollection_Queries(t *testing.T) {
	t.Parallel()

	serviceType := reflect.TypeFor[*testutil.TestService]()

	c := conventions.NewCollection()
	require.NoError(t, c.AddSingleton(testutil.NewTestService))
	require.NoError(t, c.AddSingleton(testutil.NewTestService, conventions.Name("primary")))
	require.NoError(t, c.AddSingleton(testutil.NewTestService, conventions.Name("replica")))
	require.NoError(t, c.AddSingleton(testutil.NewFoo))

	assert.Equal(t, 4, c.Count())
	assert.True(t, c.Contains(serviceType))
	assert.True(t, c.ContainsKeyed(serviceType, "primary"))
	assert.False(t, c.ContainsKeyed(serviceType, "missing"))
	assert.False(t, c.Contains(reflect.TypeFor[testutil.Foo]()))

	assert.Equal(t, 1, c.RemoveKeyed(serviceType, "replica"))
	assert.False(t, c.ContainsKeyed(serviceType, "replica"))
	assert.True(t, c.ContainsKeyed(serviceType, "primary"))

	assert.Equal(t, 2, c.Remove(serviceType))
	assert.False(t, c.Contains(serviceType))
	assert.Equal(t, 1, c.Count())
	assert.Zero(t, c.Remove(serviceType))
}

func TestCollection_ToSliceReturnsCopy(t *testing.T) {
	t.Parallel()

	c := conventions.NewCollection()
	require.NoError(t, c.AddSingleton(testutil.NewTestService))

	snapshot := c.ToSlice()
	snapshot[0].Name = "changed"

	assert.Empty(t, c.ToSlice()[0].Name)
}
