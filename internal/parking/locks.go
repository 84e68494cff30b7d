package parking

import "sync"

// Locks serializes work per license plate and per sector. Callers always take
// the plate lock before any sector lock.
type Locks struct {
	plates  keyedMutex
	sectors keyedMutex
}

// NewLocks returns an empty lock set. The processor and the auditor must share one.
func NewLocks() *Locks {
	return &Locks{}
}

// Plate locks a license plate and returns the unlock function.
func (l *Locks) Plate(plate string) func() {
	return l.plates.lock(plate)
}

// Sector locks a sector and returns the unlock function.
func (l *Locks) Sector(sector string) func() {
	return l.sectors.lock(sector)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}
