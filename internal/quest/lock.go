package quest

import (
	"context"
	"sync"
	"time"
)

// keyedMutex serializes conditional updates per quest key. Each key
// gets a one-slot channel; holding the slot is holding the lock.
// Acquisition waits at most the configured bound so an interactive
// caller gets a Busy outcome instead of queueing indefinitely.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[string]chan struct{})}
}

func (m *keyedMutex) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// acquire takes the key's slot, failing with ErrBusy after wait.
func (m *keyedMutex) acquire(ctx context.Context, key string, wait time.Duration) error {
	ch := m.slot(key)

	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-t.C:
		return ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *keyedMutex) release(key string) {
	<-m.slot(key)
}
