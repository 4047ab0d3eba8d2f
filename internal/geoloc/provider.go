package geoloc

import (
	"context"
	"time"
)

// PermissionState tracks whether location fixes may be read.
type PermissionState string

const (
	PermissionUnrequested PermissionState = "unrequested"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
	PermissionUnavailable PermissionState = "unavailable"
)

// Options tune a single position read.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxFixAge    time.Duration
}

// WatchOptions tune a continuous watch. Interval is advisory; providers may
// coalesce or throttle deliveries.
type WatchOptions struct {
	Options
	Interval time.Duration
}

// WatchHandle identifies one open watch on a Provider.
type WatchHandle int64

// Provider is the platform-supplied geolocation capability. Implementations
// must keep delivering via onFix/onErr until Unwatch is called; Unwatch must
// be safe to call more than once.
type Provider interface {
	CheckPermission(ctx context.Context) (PermissionState, error)
	RequestPermission(ctx context.Context) (PermissionState, error)
	Current(ctx context.Context, opts Options) (Fix, error)
	Watch(opts WatchOptions, onFix func(Fix), onErr func(error)) (WatchHandle, error)
	Unwatch(handle WatchHandle)
}

// PermissionObserver is implemented by providers that can report out-of-band
// permission changes (for example a revocation while a watch is running).
type PermissionObserver interface {
	ObservePermission(fn func(PermissionState))
}
