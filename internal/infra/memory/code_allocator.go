package memory

import (
	"context"
	"sync"
)

// CodeAllocator tracks reserved join codes in-process. Reserve is atomic
// under the mutex, so two racing reservations of one code cannot both win.
type CodeAllocator struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

func NewCodeAllocator() *CodeAllocator {
	return &CodeAllocator{taken: make(map[string]struct{})}
}

func (a *CodeAllocator) IsCodeInUse(_ context.Context, code string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.taken[code]
	return ok, nil
}

func (a *CodeAllocator) Reserve(_ context.Context, code string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.taken[code]; ok {
		return false, nil
	}
	a.taken[code] = struct{}{}
	return true, nil
}

func (a *CodeAllocator) Release(_ context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.taken, code)
	return nil
}
