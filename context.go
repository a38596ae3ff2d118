package conventions

import (
	"log/slog"

	"github.com/junioryono/conventions/config"
	"go.uber.org/dig"
)

// Context is handed to every convention and delegate during composition.
// The same Context is passed to each of them within one Build.
//
// Services and ConfigureContainer target the core bucket, whose
// registrations are visible from every scope. Use System or Application to
// register into the other buckets.
type Context interface {
	// Configuration returns the settings the builder was created with.
	Configuration() config.Configuration

	// Environment returns the hosting environment.
	Environment() *Environment

	// Logger returns the composition logger.
	Logger() *slog.Logger

	// Catalog returns the conventions scanned at builder creation.
	Catalog() Catalog

	// Properties returns the property bag shared with the host.
	Properties() *Properties

	Core() *Bucket
	System() *Bucket
	Application() *Bucket

	// Bucket returns the bucket with the given name, or nil.
	Bucket(name BucketName) *Bucket

	// Services returns the core bucket's collection.
	Services() Collection

	// ConfigureContainer adds an action to the core bucket.
	ConfigureContainer(action ContainerAction)

	// AppendConvention and PrependConvention add conventions or delegates
	// to the registry. Items added during composition run in the same
	// Build, after the items already known.
	AppendConvention(items ...any) error
	PrependConvention(items ...any) error

	// OnBuild publishes the root provider once the build completes.
	OnBuild() Observable[ServiceProvider]

	// OnContainerBuild publishes the root dig container.
	OnContainerBuild() Observable[*dig.Container]
}
