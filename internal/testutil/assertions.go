package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/junioryono/conventions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertServiceResolvable asserts that T resolves from provider and returns it.
func AssertServiceResolvable[T any](t *testing.T, provider conventions.ServiceProvider) T {
	t.Helper()

	service, err := conventions.Resolve[T](provider)
	require.NoError(t, err, "failed to resolve service")
	return service
}

// AssertServiceNotFound asserts that resolving T fails with ErrServiceNotFound.
func AssertServiceNotFound[T any](t *testing.T, provider conventions.ServiceProvider) {
	t.Helper()

	_, err := conventions.Resolve[T](provider)
	require.Error(t, err)
	assert.ErrorIs(t, err, conventions.ErrServiceNotFound)
}

// AssertSameInstance asserts that expected and actual are the same pointer.
func AssertSameInstance(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	assert.Same(t, expected, actual, msgAndArgs...)
}

// AssertDifferentInstances asserts that first and second are different pointers.
func AssertDifferentInstances(t *testing.T, first, second any, msgAndArgs ...any) {
	t.Helper()
	assert.NotSame(t, first, second, msgAndArgs...)
}

// AssertErrorType asserts that err is or wraps an error of type T and returns it.
func AssertErrorType[T error](t *testing.T, err error, msgAndArgs ...any) T {
	t.Helper()

	var target T
	require.True(t, errors.As(err, &target), msgAndArgs...)
	return target
}

// AssertCompletes asserts that fn returns within timeout. fn runs on its own
// goroutine, so it must report failures with assert, not require.
func AssertCompletes(t *testing.T, timeout time.Duration, fn func()) bool {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return assert.Fail(t, "call did not return", "timed out after %s", timeout)
	}
}
