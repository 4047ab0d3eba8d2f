package tracking

import (
	"errors"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
)

var (
	// ErrNotAuthorized means Start was called without a permission grant.
	ErrNotAuthorized = errors.New("tracking not authorized")
	// ErrSessionActive means Start was called while a run is already active.
	ErrSessionActive = errors.New("tracking session already active")
	// ErrSessionClosed means the host tore the session down.
	ErrSessionClosed = errors.New("tracking session closed")
	// ErrAuthExpired means the backend rejected the report credential.
	ErrAuthExpired = errors.New("report credential expired")
	// ErrTransientSend covers network failures and other non-2xx responses.
	// The next natural fix is the implicit retry.
	ErrTransientSend = errors.New("report send failed")
)

// Kind maps an error to its short machine-readable kind for status payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, ErrTransientSend):
		return "transient_send"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, geoloc.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, geoloc.ErrUnavailable):
		return "capability_unavailable"
	case errors.Is(err, geoloc.ErrPositionTimeout):
		return "position_timeout"
	default:
		return "error"
	}
}
