package conventions

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// treeLock serializes dig access for a scope tree. The goroutine holding
// it may lock it again, so providers injected into constructors can
// resolve while the outer call is still running.
type treeLock struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (l *treeLock) Lock() {
	id := goid()
	if l.owner.Load() == id {
		l.depth++
		return
	}

	l.mu.Lock()
	l.owner.Store(id)
	l.depth = 1
}

func (l *treeLock) Unlock() {
	l.depth--
	if l.depth > 0 {
		return
	}

	l.owner.Store(0)
	l.mu.Unlock()
}

// goid returns the current goroutine ID.
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(field, 10, 64)
	return id
}
