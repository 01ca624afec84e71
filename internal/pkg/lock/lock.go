// Package lock provides per-account locking for concurrent balance operations.
// A session holds its participants' locks around escrow debits and
// settlement writes so two sessions cannot double-spend one account.
package lock

import (
	"sync"
)

// accountMutex wraps a mutex so instances can be pooled.
type accountMutex struct {
	mu sync.Mutex
}

// AccountLock provides per-account locking to prevent race conditions
// during balance operations and game sessions.
type AccountLock struct {
	locks sync.Map // map[int64]*accountMutex
	pool  sync.Pool
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{
		pool: sync.Pool{
			New: func() any {
				return &accountMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given account ID.
func (al *AccountLock) getLock(userID int64) *accountMutex {
	if v, ok := al.locks.Load(userID); ok {
		return v.(*accountMutex)
	}

	newLock := al.pool.Get().(*accountMutex)

	actual, loaded := al.locks.LoadOrStore(userID, newLock)
	if loaded {
		// Another goroutine created the lock first, return ours to pool
		al.pool.Put(newLock)
	}
	return actual.(*accountMutex)
}

// Lock acquires the lock for an account.
func (al *AccountLock) Lock(userID int64) {
	al.getLock(userID).mu.Lock()
}

// Unlock releases the lock for an account.
func (al *AccountLock) Unlock(userID int64) {
	if v, ok := al.locks.Load(userID); ok {
		v.(*accountMutex).mu.Unlock()
	}
}

// WithLock executes a function while holding the account's lock.
func (al *AccountLock) WithLock(userID int64, fn func() error) error {
	al.Lock(userID)
	defer al.Unlock(userID)
	return fn()
}
