package coordinator

import "sync"

// keyedMutex serializes work per key while letting different keys proceed in
// parallel. Lock entries are reference counted so the map never grows with
// abandoned session ids.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	le, ok := k.locks[key]
	if !ok {
		le = &lockEntry{}
		k.locks[key] = le
	}
	le.refs++
	k.mu.Unlock()

	le.mu.Lock()

	return func() {
		le.mu.Unlock()

		k.mu.Lock()
		le.refs--
		if le.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
