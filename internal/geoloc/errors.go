package geoloc

import "errors"

var (
	// ErrUnavailable means the platform has no location capability at all.
	ErrUnavailable = errors.New("location capability unavailable")
	// ErrPermissionDenied means the user or OS refused location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrPositionTimeout means a single read did not produce a fix in time.
	ErrPositionTimeout = errors.New("position read timed out")
)
