package conventions

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// Composer invokes the entries of a Registry against a Context.
type Composer struct {
	registry *Registry
	logger   *slog.Logger
}

// NewComposer creates a Composer for registry. A nil logger discards output.
func NewComposer(registry *Registry, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Composer{registry: registry, logger: logger}
}

// Register invokes every registry entry that matches one of kinds, in
// registry order, passing ctx to each. An entry implementing several
// capabilities (Register and RegisterContainer) has each one called once,
// in the order of kinds. Entries matching no requested kind are skipped.
//
// Entries added to the registry while Register runs are invoked as well,
// after the entries already known, so each entry runs exactly once.
//
// The first error or panic stops composition and is returned as a
// ConventionError.
func (c *Composer) Register(ctx Context, kinds ...Kind) error {
	seen := make(map[uint64]struct{})
	position := 0

	for {
		pending := 0
		for e := range c.registry.ordered() {
			if _, ok := seen[e.id]; ok {
				continue
			}
			seen[e.id] = struct{}{}
			pending++

			if err := c.invoke(ctx, e.item, position, kinds); err != nil {
				return err
			}
			position++
		}

		if pending == 0 {
			return nil
		}
	}
}

func (c *Composer) invoke(ctx Context, item any, position int, kinds []Kind) error {
	called := make(map[capability]struct{}, 2)
	for _, kind := range kinds {
		fn, ok := kind.bind(item)
		if !ok {
			continue
		}
		if _, dup := called[kind.capability()]; dup {
			continue
		}
		called[kind.capability()] = struct{}{}

		c.logger.LogAttrs(context.Background(), slog.LevelDebug, "invoking convention",
			slog.String("kind", kind.String()),
			slog.String("convention", describe(item)),
			slog.Int("position", position),
		)

		if err := call(fn, ctx); err != nil {
			return ConventionError{Convention: item, Kind: kind, Index: position, Cause: err}
		}
	}

	if len(called) == 0 {
		c.logger.LogAttrs(context.Background(), slog.LevelDebug, "skipping convention",
			slog.String("convention", describe(item)),
			slog.String("reason", "no matching kind"),
		)
	}
	return nil
}

func call(fn func(Context) error, ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
