package chat

import (
	"context"
	"sync"

	"direct-messaging/internal/store"
)

// follower keeps at most one live subscription. Each restart bumps the generation;
// snapshots from an older generation are dropped, and the previous delivery loop has
// exited before a new subscription is opened.
type follower struct {
	subscriber store.Subscriber

	// restartMu serialises restarts; mu guards state shared with the delivery loop
	restartMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	stop   func()
	active bool
}

// restart tears down the current subscription, runs reset, and subscribes to q when q is
// non-nil. reset and handle run with f.mu held and must not call back into the follower.
func (f *follower) restart(ctx context.Context, q *store.Query, reset func(), handle func(store.Snapshot)) error {
	f.restartMu.Lock()
	defer f.restartMu.Unlock()

	f.mu.Lock()
	f.gen++
	gen := f.gen
	stop := f.stop
	f.stop = nil
	f.active = false
	reset()
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
	if q == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := f.subscriber.Subscribe(subCtx, *q)
	if err != nil {
		cancel()
		f.mu.Lock()
		if f.gen == gen {
			handle(store.Snapshot{Err: err})
		}
		f.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	f.mu.Lock()
	f.stop = func() {
		cancel()
		_ = sub.Close()
		<-done
	}
	f.active = true
	// apply the initial snapshot before returning when the store has one ready
	select {
	case snap, ok := <-sub.Updates():
		if ok {
			handle(snap)
			if snap.Err != nil {
				f.active = false
			}
		}
	default:
	}
	f.mu.Unlock()

	go func() {
		defer close(done)
		for snap := range sub.Updates() {
			f.mu.Lock()
			if f.gen == gen {
				handle(snap)
				if snap.Err != nil {
					f.active = false
				}
			}
			f.mu.Unlock()
		}
	}()
	return nil
}

// runningLocked reports whether a healthy subscription is held. Callers hold f.mu.
func (f *follower) runningLocked() bool {
	return f.active
}
