package util

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km KeyedMutex[string]
	var inside, maxInside int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("movie")
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max goroutines inside = %d, want 1", maxInside)
	}
	if km.Len() != 0 {
		t.Errorf("Len() = %d after all unlocks, want 0", km.Len())
	}
}

func TestKeyedMutexDifferentKeys(t *testing.T) {
	var km KeyedMutex[int64]
	unlockA := km.Lock(1)
	// Must not block while key 1 is held
	unlockB := km.Lock(2)
	if km.Len() != 2 {
		t.Errorf("Len() = %d, want 2", km.Len())
	}
	unlockB()
	unlockA()
}
