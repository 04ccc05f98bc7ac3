package service

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameParent(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock(1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock(7)
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("expected lock table to be empty, found %d entries", len(km.locks))
	}
}

func TestKeyedMutex_IndependentParents(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock(1)
	// A held lock on one parent must not block another parent.
	done := make(chan struct{})
	go func() {
		unlockB := km.lock(2)
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
