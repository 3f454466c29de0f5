package depset

import "fmt"

// CacheLoadError reports an unreadable or corrupt snapshot file. It is
// always recoverable: the store resets to the empty snapshot and the next
// successful build rewrites the file. Callers log it and move on.
type CacheLoadError struct {
	Path string
	Err  error
}

func (e *CacheLoadError) Error() string {
	return fmt.Sprintf("failed to load dependency snapshot %q: %v", e.Path, e.Err)
}

func (e *CacheLoadError) Unwrap() error { return e.Err }
