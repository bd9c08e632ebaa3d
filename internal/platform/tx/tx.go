package tx

import (
	"context"
	"sync"
)

// Manager scopes a read-modify-write sequence to a key (a person id).
// fn runs while the scope is held; the scope is released on every return path.
type Manager interface {
	Within(ctx context.Context, key string, fn func(context.Context) error) error
}

// KeyedMutex serialises callers sharing a key inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*keyedLock{}}
}

func (k *KeyedMutex) Within(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := k.acquire(key)
	defer k.release(key, lock)
	return fn(ctx)
}

func (k *KeyedMutex) acquire(key string) *keyedLock {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (k *KeyedMutex) release(key string, lock *keyedLock) {
	lock.mu.Unlock()

	k.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// held reports how many keys currently have waiters or holders.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
