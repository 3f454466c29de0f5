package gateway

import "fmt"

// AssetNotFoundError reports a managed asset that is absent from the
// bundle output even though the build that should have produced it has
// completed. Unwrap exposes the underlying fs error.
type AssetNotFoundError struct {
	Name string
	Err  error
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("bundle asset %q not found", e.Name)
}

func (e *AssetNotFoundError) Unwrap() error { return e.Err }
