package testutil

import (
	"testing"

	"github.com/junioryono/conventions"
	"github.com/junioryono/conventions/config"
	"github.com/stretchr/testify/require"
)

// TestEnvironment returns a Development environment for tests.
func TestEnvironment() *conventions.Environment {
	return &conventions.Environment{
		Name:            conventions.Development,
		ApplicationName: "conventions-test",
		ContentRootPath: ".",
	}
}

// TestConfiguration returns a configuration holding values.
func TestConfiguration(values map[string]any) config.Configuration {
	return config.FromMap(values)
}

// NewBuilder creates a Builder over an empty collection.
func NewBuilder(t *testing.T, opts ...conventions.Option) *conventions.Builder {
	t.Helper()

	b, err := conventions.NewBuilder(conventions.NewCollection(), TestConfiguration(nil), TestEnvironment(), opts...)
	require.NoError(t, err)
	return b
}

// NewServicesBuilder creates a ServicesBuilder over an empty collection.
func NewServicesBuilder(t *testing.T, opts ...conventions.Option) *conventions.ServicesBuilder {
	t.Helper()

	b, err := conventions.NewServicesBuilder(conventions.NewCollection(), TestConfiguration(nil), TestEnvironment(), opts...)
	require.NoError(t, err)
	return b
}

// Build builds b and closes the artifact when the test ends.
func Build(t *testing.T, b interface {
	Build() (*conventions.Artifact, error)
}) *conventions.Artifact {
	t.Helper()

	artifact, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = artifact.Close() })
	return artifact
}
