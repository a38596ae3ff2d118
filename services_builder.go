package conventions

import (
	"time"

	"github.com/google/uuid"
	"github.com/junioryono/conventions/config"
)

// ServicesBuilder composes service conventions and delegates into a single
// flat scope. Container conventions and container delegates are not
// invoked, and the system bucket is not applied.
type ServicesBuilder struct {
	*builder
}

// NewServicesBuilder creates a ServicesBuilder. services backs the core
// bucket.
func NewServicesBuilder(services Collection, cfg config.Configuration, env *Environment, opts ...Option) (*ServicesBuilder, error) {
	b, err := newBuilder(services, cfg, env, opts)
	if err != nil {
		return nil, err
	}
	return &ServicesBuilder{builder: b}, nil
}

// Build composes the service conventions and builds one root scope holding
// the core and application buckets. When both buckets register the same
// service, the application registration wins. The artifact's Application
// is its Root and System is nil.
func (b *ServicesBuilder) Build() (*Artifact, error) {
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

func (b *ServicesBuilder) build() (*Artifact, error) {
	start := time.Now()

	if err := b.compose(ServiceKinds); err != nil {
		return nil, err
	}

	if !b.system.Empty() {
		b.logger.Warn("system bucket is not applied by the services builder",
			"services", b.system.Services().Count(),
			"actions", b.system.ActionCount(),
		)
	}

	c, root, err := b.newRoot()
	if err != nil {
		return nil, err
	}

	descriptors := append(b.core.Services().ToSlice(), b.application.Services().ToSlice()...)
	if err := b.populate(root, descriptors, b.core, b.application); err != nil {
		_ = root.Close()
		return nil, BuildError{Phase: "application", Cause: err}
	}

	artifact := &Artifact{
		ID:          uuid.NewString(),
		Container:   c,
		Root:        root,
		Application: root,
	}

	b.logger.Info("services built",
		"id", artifact.ID,
		"services", len(descriptors),
		"duration", time.Since(start),
	)

	b.onContainerBuild.Send(c)
	b.onBuild.Send(root)
	b.core.onBuild.Send(root)
	b.application.onBuild.Send(root)

	return artifact, nil
}
