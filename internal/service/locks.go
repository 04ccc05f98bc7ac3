package service

import "sync"

// keyedMutex serializes multi-step registry mutations per parent id so the
// "exactly one primary" and "unique sort_order" invariants hold under
// concurrent requests for the same parent. Entries are reference-counted and
// removed once no request holds or waits on them.
//
// Serialization is per process; multi-process deployments would need a
// database-level lock instead.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*parentLock
}

type parentLock struct {
	refs int
	mu   sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*parentLock)}
}

// lock acquires the mutex for the given parent id and returns the matching
// unlock function.
func (k *keyedMutex) lock(parentID int64) func() {
	k.mu.Lock()
	l, ok := k.locks[parentID]
	if !ok {
		l = &parentLock{}
		k.locks[parentID] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, parentID)
		}
		k.mu.Unlock()
	}
}
