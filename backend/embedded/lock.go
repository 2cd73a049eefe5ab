package embedded

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another process holds the backend directory.
var ErrLocked = errors.New("backend directory is locked by another process")

// dirLock guards a persistent backend directory against concurrent opens.
type dirLock struct {
	fl *flock.Flock
}

// acquireDirLock takes a non-blocking exclusive lock on dir.
func acquireDirLock(dir string) (*dirLock, error) {
	fl := flock.New(filepath.Join(dir, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire directory lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &dirLock{fl: fl}, nil
}

// release drops the lock.
func (l *dirLock) release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release directory lock: %w", err)
	}
	return nil
}
