//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports whether err means the watcher cannot recover.
// On Unix these are the inotify resource exhaustion errors: ENOSPC when the
// fs.inotify.max_user_watches limit is hit, EMFILE and ENFILE when file
// descriptors run out.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
