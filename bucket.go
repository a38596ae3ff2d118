package conventions

import (
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/junioryono/conventions/internal/broadcast"
	"go.uber.org/dig"
)

// BucketName identifies one of the three registration buckets.
type BucketName string

const (
	// CoreBucket registrations live in the root scope and are visible from
	// every scope.
	CoreBucket BucketName = "core"

	// SystemBucket registrations live in the system scope only.
	SystemBucket BucketName = "system"

	// ApplicationBucket registrations live in the application scope.
	ApplicationBucket BucketName = "application"
)

// Scope tags.
const (
	RootTag        = "__Root__"
	SystemTag      = "__System__"
	ApplicationTag = "__Application__"
)

// Tag returns the tag of the scope built for the bucket.
func (n BucketName) Tag() string {
	switch n {
	case CoreBucket:
		return RootTag
	case SystemBucket:
		return SystemTag
	case ApplicationBucket:
		return ApplicationTag
	default:
		return ""
	}
}

// ContainerBuilder is the mutable container handle passed to container
// actions. Both *dig.Container and *dig.Scope implement it.
type ContainerBuilder interface {
	Provide(constructor any, opts ...dig.ProvideOption) error
	Decorate(decorator any, opts ...dig.DecorateOption) error
	Invoke(function any, opts ...dig.InvokeOption) error
}

var (
	_ ContainerBuilder = (*dig.Container)(nil)
	_ ContainerBuilder = (*dig.Scope)(nil)
)

// ContainerAction registers directly against the container scope a bucket
// is applied to. Actions are stored and run when the bucket is applied.
type ContainerAction func(ContainerBuilder) error

// Bucket accumulates descriptors and container actions for one scope.
// A Bucket does not know about the other buckets.
type Bucket struct {
	name     BucketName
	services Collection
	onBuild  *broadcast.Broadcaster[Scope]

	mu      sync.Mutex
	actions []ContainerAction
}

func newBucket(name BucketName, services Collection, logger *slog.Logger) *Bucket {
	if services == nil {
		services = NewCollection()
	}
	return &Bucket{
		name:     name,
		services: services,
		onBuild:  broadcast.New[Scope](string(name)+".on-build", logger),
	}
}

// Name returns the bucket name.
func (b *Bucket) Name() BucketName { return b.name }

// Tag returns the tag of the scope built for the bucket.
func (b *Bucket) Tag() string { return b.name.Tag() }

// Services returns the bucket's descriptor collection.
func (b *Bucket) Services() Collection { return b.services }

// ConfigureContainer stores an action to run when the bucket is applied.
// Nil actions are ignored. It returns b for chaining.
func (b *Bucket) ConfigureContainer(action ContainerAction) *Bucket {
	if action == nil {
		return b
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, action)
	return b
}

// AddDescriptor adds d to the bucket's collection.
func (b *Bucket) AddDescriptor(d Descriptor) error {
	return b.services.Add(d)
}

// ActionCount returns the number of stored container actions.
func (b *Bucket) ActionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.actions)
}

// Empty reports whether the bucket holds neither actions nor descriptors.
func (b *Bucket) Empty() bool {
	return b.ActionCount() == 0 && b.services.Count() == 0
}

// Apply runs the stored actions against cb in insertion order. It stops at
// the first failing action and returns an ActionError; actions that already
// ran are not undone. Applying to another handle runs every action again.
func (b *Bucket) Apply(cb ContainerBuilder) error {
	b.mu.Lock()
	actions := append([]ContainerAction(nil), b.actions...)
	b.mu.Unlock()

	for i, action := range actions {
		if err := runAction(action, cb); err != nil {
			return ActionError{Bucket: b.name, Index: i, Cause: err}
		}
	}
	return nil
}

// OnBuild publishes the scope built for the bucket.
func (b *Bucket) OnBuild() Observable[Scope] { return b.onBuild }

func runAction(action ContainerAction, cb ContainerBuilder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return action(cb)
}
