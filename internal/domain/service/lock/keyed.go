package lock

import "sync"

// Keyed is a set of non-blocking locks keyed by application id. Locks for
// different ids are independent.
type Keyed struct {
	mu   sync.Mutex
	held map[string]string
}

// NewKeyed creates an empty lock set.
func NewKeyed() *Keyed {
	return &Keyed{held: make(map[string]string)}
}

// TryLock acquires the lock for id on behalf of owner. It never waits: when
// the lock is taken it returns false and the current owner.
func (k *Keyed) TryLock(id, owner string) (release func(), ok bool, holder string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if current, taken := k.held[id]; taken {
		return nil, false, current
	}
	k.held[id] = owner

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			defer k.mu.Unlock()
			delete(k.held, id)
		})
	}, true, owner
}

// Holder returns the owner of the lock for id, if any.
func (k *Keyed) Holder(id string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	owner, ok := k.held[id]
	return owner, ok
}
