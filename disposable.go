package conventions

import "context"

// Disposable is implemented by services that hold resources. Instances
// created by a scope's constructors are closed, in reverse creation order,
// when that scope closes. Pre-built instances are never closed.
//
// Example:
//
//	type Connection struct {
//	    conn *sql.DB
//	}
//
//	func (c *Connection) Close() error {
//	    return c.conn.Close()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext is a Disposable that receives the context of the
// scope being closed.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

type disposableFunc func(ctx context.Context) error

func (f disposableFunc) Close(ctx context.Context) error { return f(ctx) }

func asDisposable(v any) (DisposableWithContext, bool) {
	switch d := v.(type) {
	case DisposableWithContext:
		return d, true
	case Disposable:
		return disposableFunc(func(context.Context) error { return d.Close() }), true
	default:
		return nil, false
	}
}
