package catalog

import (
	"context"
	"sync"

	"github.com/viant/viewly/verror"
)

// SchemaLock serializes catalog mutations; Lock returns a release guard so
// every exit path releases exactly once.
type SchemaLock struct {
	mux sync.Mutex
}

// Lock acquires the lock and returns its release guard.
func (l *SchemaLock) Lock() (release func()) {
	l.mux.Lock()
	once := sync.Once{}
	return func() {
		once.Do(l.mux.Unlock)
	}
}

// Barrier is the coarse global read barrier awaited before the schema lock
// during creation, ordering registrations after any in flight global
// consistency snapshot.
type Barrier interface {
	//Await blocks until the barrier opens and returns a release guard; a
	//failed wait returns an error and leaves nothing held.
	Await(ctx context.Context) (release func(), err error)
}

// ReadBarrier is the in process Barrier; a snapshot operation holds its
// write side via Freeze.
type ReadBarrier struct {
	mux sync.RWMutex
}

// NewReadBarrier creates an open barrier.
func NewReadBarrier() *ReadBarrier {
	return &ReadBarrier{}
}

// Await implements Barrier honoring context cancellation.
func (b *ReadBarrier) Await(ctx context.Context) (func(), error) {
	acquired := make(chan struct{})
	abandoned := make(chan struct{})
	go func() {
		b.mux.RLock()
		select {
		case <-abandoned:
			b.mux.RUnlock()
		default:
			close(acquired)
		}
	}()
	select {
	case <-acquired:
		once := sync.Once{}
		return func() {
			once.Do(b.mux.RUnlock)
		}, nil
	case <-ctx.Done():
		close(abandoned)
		//the acquiring goroutine may have won the race; take its lock back
		select {
		case <-acquired:
			b.mux.RUnlock()
		default:
		}
		return nil, verror.Wrap(ctx.Err(), verror.KindLockWaitFailed, "", "")
	}
}

// Freeze closes the barrier for the duration of a global snapshot.
func (b *ReadBarrier) Freeze() (release func()) {
	b.mux.Lock()
	once := sync.Once{}
	return func() {
		once.Do(b.mux.Unlock)
	}
}
