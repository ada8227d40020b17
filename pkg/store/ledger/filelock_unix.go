//go:build unix

package ledger

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// lockFile takes an advisory flock on the sidecar path+".lock", shared or
// exclusive. Other processes (and other handles in this one) opening the same
// ledger serialize on it. A missing parent directory means the ledger does not
// exist yet, so readers proceed unlocked.
func lockFile(path string, exclusive bool) (func(), error) {
	lf, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		if !exclusive && errors.Is(err, fs.ErrNotExist) {
			return func() {}, nil
		}
		return nil, unavailable("open ledger lock", err)
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}
	for {
		err = syscall.Flock(int(lf.Fd()), how)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil {
		_ = lf.Close()
		return nil, unavailable("lock ledger", err)
	}

	return func() {
		_ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN)
		_ = lf.Close()
	}, nil
}
