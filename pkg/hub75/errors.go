package hub75

import "errors"

// All failures are detected synchronously during NewCore or Begin. Once
// Begin succeeds the engine assumes its invariants hold for the lifetime of
// the instance and performs no re-validation in the refresh path.
var (
	// ErrArgument reports a missing or invalid constructor argument, such
	// as a nil HAL or no timer on a platform without a default.
	ErrArgument = errors.New("hub75: missing or invalid argument")

	// ErrAllocation reports that a buffer or table allocation failed. Any
	// resources allocated before the failing step have been released.
	ErrAllocation = errors.New("hub75: allocation failed")

	// ErrPinConflict reports that the RGB data pins and the clock pin do
	// not all resolve to the same port.
	ErrPinConflict = errors.New("hub75: data and clock pins span multiple ports")
)
