package call

import (
	"context"
	"sync"
)

// registry is the active-session store. A session is present exactly while
// its status is ringing or active; terminal transitions remove it. Inserts
// and deletes from different call goroutines must not disturb entries
// belonging to other sessions, hence the single mutex around the map.
type registry struct {
	mu    sync.Mutex
	calls map[string]*liveCall
	wg    sync.WaitGroup
}

func newRegistry() *registry {
	return &registry{calls: make(map[string]*liveCall)}
}

func (r *registry) register(sessionID string, c *liveCall) (unregister func()) {
	if r == nil {
		return func() {}
	}

	r.mu.Lock()
	if r.calls == nil {
		r.calls = make(map[string]*liveCall)
	}
	old := r.calls[sessionID]
	r.calls[sessionID] = c
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		r.unregister(sessionID, old)
	}

	return func() { r.unregister(sessionID, c) }
}

func (r *registry) unregister(sessionID string, c *liveCall) {
	if r == nil || c == nil {
		return
	}
	c.removeOnce.Do(func() {
		r.mu.Lock()
		if r.calls != nil && r.calls[sessionID] == c {
			delete(r.calls, sessionID)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

func (r *registry) get(sessionID string) (*liveCall, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sessionID]
	return c, ok
}

func (r *registry) count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *registry) cancelAll() (canceled int) {
	if r == nil {
		return 0
	}

	var cancels []func()
	r.mu.Lock()
	for _, c := range r.calls {
		if c == nil || c.cancel == nil {
			continue
		}
		cancels = append(cancels, c.cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// wait blocks until every registered call has unregistered, or ctx expires.
func (r *registry) wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
