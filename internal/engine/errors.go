package engine

import (
	"errors"
	"fmt"

	"modfed/internal/diag"
	"modfed/internal/project"
)

// ErrBuildInProgress is returned by Build when the single build slot is
// already occupied. Callers that can wait should use WaitReady instead;
// hitting this error means two triggers bypassed the coalescing layer.
var ErrBuildInProgress = errors.New("a build is already in progress")

// BuildError wraps a failed bundling run. The dependency snapshot is
// never advanced past one of these; the previous artifact, if any, stays
// live.
type BuildError struct {
	Mode        project.Mode
	Diagnostics *diag.Bag
	Err         error
}

func (e *BuildError) Error() string {
	if e.Diagnostics != nil && e.Diagnostics.Len() > 0 {
		return fmt.Sprintf("bundling failed (%s): %s", e.Mode, diag.Summary(e.Diagnostics))
	}
	return fmt.Sprintf("bundling failed (%s): %v", e.Mode, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
