package roxerrors

import "errors"

// Re-exported so callers never need a second import alias for the
// standard library alongside this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
)
