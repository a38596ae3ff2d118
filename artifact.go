package conventions

import (
	"errors"

	"go.uber.org/dig"
)

// Artifact is the result of a successful Build.
type Artifact struct {
	// ID identifies the build.
	ID string

	// Container is the root dig container.
	Container *dig.Container

	// Root holds the core bucket's registrations.
	Root Scope

	// System is derived from Root and holds the system bucket's
	// registrations. It is nil for artifacts of a ServicesBuilder.
	System Scope

	// Application is derived from Root and holds the application bucket's
	// registrations. A ServicesBuilder sets it to Root.
	Application Scope
}

// Scope returns the scope built for the named bucket, or nil.
func (a *Artifact) Scope(name BucketName) Scope {
	switch name {
	case CoreBucket:
		return a.Root
	case SystemBucket:
		return a.System
	case ApplicationBucket:
		return a.Application
	default:
		return nil
	}
}

// Close closes the derived scopes and then the root. Errors from every
// scope are joined.
func (a *Artifact) Close() error {
	var errs []error
	for _, s := range []Scope{a.Application, a.System} {
		if s == nil || s == a.Root {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Root != nil {
		if err := a.Root.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
