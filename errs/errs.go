// Package errs defines the error taxonomy shared by every transport
// variant. Callers should compare against these sentinels with errors.Is;
// wrapped context is added with fmt.Errorf's %w the way the rest of the
// module does it.
package errs

import "errors"

var (
	// ErrNotInitialized is returned when an operation is called before
	// Init or after Destroy/Close.
	ErrNotInitialized = errors.New("lwshm: not initialized")

	// ErrNameInUse is returned when region creation races another creator
	// of the same channel name.
	ErrNameInUse = errors.New("lwshm: name in use")

	// ErrNotFound is returned when a reader connects to a channel with no
	// live writer region.
	ErrNotFound = errors.New("lwshm: not found")

	// ErrCorrupt is returned when an opened region's magic or version does
	// not match what the reader expects.
	ErrCorrupt = errors.New("lwshm: corrupt header")

	// ErrSizeExceeded is returned when a publish is attempted with a
	// payload larger than the channel's per-slot capacity.
	ErrSizeExceeded = errors.New("lwshm: payload exceeds capacity")

	// ErrResourceExhausted is returned when the OS rejects the region
	// size, the huge-page pool, or the descriptor table.
	ErrResourceExhausted = errors.New("lwshm: resource exhausted")

	// ErrPermissionDenied is returned when the OS refuses to open or
	// create the named object.
	ErrPermissionDenied = errors.New("lwshm: permission denied")

	// ErrRegistryFull is returned by RING-BROADCAST consumer registration
	// once all 16 registry slots are claimed.
	ErrRegistryFull = errors.New("lwshm: registry full")

	// ErrTooLarge is returned when a requested region size cannot be
	// represented or exceeds a sane platform limit.
	ErrTooLarge = errors.New("lwshm: region too large")
)
