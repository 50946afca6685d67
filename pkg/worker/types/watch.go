package types

import (
	"context"
	"sync"
)

// Watcher is the one-writer/many-reader reconfiguration fan-out
// (spec.md §6). Modeled on the observer map in the teacher's
// pkg/mcast/core/peer.go (a single owning goroutine notifying a set of
// registered channels) rather than a generic pub-sub library, since
// this is core synchronizer logic, not an ambient concern.
type Watcher struct {
	mutex       sync.Mutex
	cond        *sync.Cond
	subscribers map[int]chan ReconfigureNotification
	next        int
}

// NewWatcher creates an empty Watcher.
func NewWatcher() *Watcher {
	w := &Watcher{subscribers: make(map[int]chan ReconfigureNotification)}
	w.cond = sync.NewCond(&w.mutex)
	return w
}

// Subscription is a watcher registration. Close stops delivery to it.
type Subscription struct {
	id int
	ch chan ReconfigureNotification
	w  *Watcher
}

// C is the channel the subscriber should receive notifications on.
func (s *Subscription) C() <-chan ReconfigureNotification {
	return s.ch
}

// Close drops this subscription. The last Close to run after Publish
// has already been called with a Shutdown notification allows the
// synchronizer's close-confirmation wait to proceed.
func (s *Subscription) Close() {
	s.w.unsubscribe(s.id)
}

// Subscribe registers a new watcher. The returned Subscription must
// eventually be closed or the Watcher never reports itself empty.
func (w *Watcher) Subscribe() *Subscription {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	id := w.next
	w.next++
	ch := make(chan ReconfigureNotification, 1)
	w.subscribers[id] = ch
	return &Subscription{id: id, ch: ch, w: w}
}

func (w *Watcher) unsubscribe(id int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if ch, ok := w.subscribers[id]; ok {
		delete(w.subscribers, id)
		close(ch)
	}
	w.cond.Broadcast()
}

// Publish fans the notification out to every current subscriber.
// Per spec.md §4.4's failure table, a Watcher with zero subscribers is
// an unrecoverable invariant violation (every consumer gone) and this
// panics, matching the Rust source's `tx_reconfigure.send(..).expect(..)`.
func (w *Watcher) Publish(notification ReconfigureNotification) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if len(w.subscribers) == 0 {
		panic("reconfiguration watcher has no subscribers")
	}
	for _, ch := range w.subscribers {
		select {
		case ch <- notification:
		default:
			// A subscriber that hasn't drained its last notification yet
			// gets the newest one; reconfiguration notifications
			// supersede, they don't queue.
			select {
			case <-ch:
			default:
			}
			ch <- notification
		}
	}
}

// Empty reports whether every subscriber has closed its handle, the
// condition Reconfigure(Shutdown) waits on before the synchronizer
// loop terminates.
func (w *Watcher) Empty() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.subscribers) == 0
}

// AwaitEmpty blocks until every subscriber has closed its handle, or
// ctx is done. This is the "await confirmation that all watchers have
// dropped their handles" step of spec.md §4.4's Shutdown handling.
func (w *Watcher) AwaitEmpty(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.mutex.Lock()
		for len(w.subscribers) != 0 {
			w.cond.Wait()
		}
		w.mutex.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
