package services

import "sync"

// stationLocks serializes mutations of one station inside this process so
// concurrent requests don't burn their CAS retries on each other. It is not
// the correctness boundary; the store's compare-and-swap is.
type stationLocks struct {
	mu    sync.Mutex
	locks map[string]*stationLock
}

type stationLock struct {
	mu   sync.Mutex
	refs int
}

func newStationLocks() *stationLocks {
	return &stationLocks{locks: make(map[string]*stationLock)}
}

// Lock blocks until stationID is free and returns its unlock func.
func (l *stationLocks) Lock(stationID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[stationID]
	if !ok {
		lock = &stationLock{}
		l.locks[stationID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, stationID)
		}
		l.mu.Unlock()
	}
}

func (l *stationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
