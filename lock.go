// OS-level file locking for path-based containers.
//
// A container must only be addressed by one multiplexer at a time. Create
// takes an exclusive lock and Open a shared one, so a writer never races a
// reader or another writer across processes. Streams handed to NewWriter or
// NewReader are the caller's to coordinate.
//
// fileLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime. setFile(nil) before closing the file makes later
// Lock/Unlock calls no-ops.
package segfile

import (
	"errors"
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// fileLock coordinates OS-level file locks with safe handle teardown.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// Lock acquires a shared or exclusive lock, blocking until it is granted.
func (l *fileLock) Lock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// TryLock acquires a lock or fails with ErrLocked without waiting.
func (l *fileLock) TryLock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.tryLock(mode)
}

// Unlock releases the lock. Returns nil if the handle has been cleared.
func (l *fileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// setFile swaps the underlying file handle. Passing nil drains any
// in-flight lock call and disables further locking.
func (l *fileLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}

// acquire takes the lock in the way the options ask for.
func acquire(f *os.File, mode LockMode, wait bool) (*fileLock, error) {
	l := &fileLock{f: f}
	var err error
	if wait {
		err = l.Lock(mode)
	} else {
		err = l.TryLock(mode)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// release unlocks and closes a file opened by Create or Open.
func release(l *fileLock, f *os.File) error {
	uerr := l.Unlock()
	l.setFile(nil)
	return errors.Join(uerr, f.Close())
}
