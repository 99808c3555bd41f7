package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// deviceGuard admits one in-flight operation per device address. Two
// operations racing on the same switch would interleave at the CLI.
// An address is dropped from the map once nobody holds or waits for it.
type deviceGuard struct {
	mu    sync.Mutex
	slots map[string]*deviceSlot
}

type deviceSlot struct {
	sem   *semaphore.Weighted
	users int // holders plus waiters
}

func newDeviceGuard() *deviceGuard {
	return &deviceGuard{slots: make(map[string]*deviceSlot)}
}

func (g *deviceGuard) join(key string) *deviceSlot {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot, exists := g.slots[key]
	if !exists {
		slot = &deviceSlot{sem: semaphore.NewWeighted(1)}
		g.slots[key] = slot
	}
	slot.users++
	return slot
}

func (g *deviceGuard) leave(key string, slot *deviceSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot.users--
	if slot.users == 0 {
		delete(g.slots, key)
	}
}

// acquire blocks until key is free or ctx ends
func (g *deviceGuard) acquire(ctx context.Context, key string) (func(), error) {
	slot := g.join(key)
	if err := slot.sem.Acquire(ctx, 1); err != nil {
		g.leave(key, slot)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			g.leave(key, slot)
		})
	}, nil
}
