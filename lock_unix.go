//go:build unix

package segfile

import (
	"errors"
	"syscall"
)

func flockOp(mode LockMode) int {
	if mode == LockExclusive {
		return syscall.LOCK_EX
	}
	return syscall.LOCK_SH
}

func (l *fileLock) lock(mode LockMode) error {
	return syscall.Flock(int(l.f.Fd()), flockOp(mode))
}

func (l *fileLock) tryLock(mode LockMode) error {
	err := syscall.Flock(int(l.f.Fd()), flockOp(mode)|syscall.LOCK_NB)
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return ErrLocked
	}
	return err
}

func (l *fileLock) unlock() error {
	return syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
}
