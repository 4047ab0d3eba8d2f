package geoloc

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Gate owns the permission state machine for one host context. It is the only
// place the state may change; everything else reads it through State.
//
// unavailable is absorbing: once the platform reports no capability, no later
// call moves the state anywhere else.
type Gate struct {
	mu       sync.Mutex
	provider Provider
	state    PermissionState
}

func NewGate(provider Provider) *Gate {
	g := &Gate{provider: provider, state: PermissionUnrequested}
	if obs, ok := provider.(PermissionObserver); ok {
		obs.ObservePermission(g.onPermissionChange)
	}
	return g
}

// State returns the current permission state without touching the platform.
func (g *Gate) State() PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Check queries the platform when the state is still unrequested. Granted and
// denied are cached; unavailable is final.
func (g *Gate) Check(ctx context.Context) PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != PermissionUnrequested {
		return g.state
	}

	state, err := g.provider.CheckPermission(ctx)
	if err != nil {
		return g.probeLocked(ctx)
	}
	if state != PermissionUnrequested {
		g.state = state
	}
	return g.state
}

// Request prompts the user when the state is still unrequested. Repeated calls
// while granted or denied return the cached state without re-prompting.
func (g *Gate) Request(ctx context.Context) PermissionState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != PermissionUnrequested {
		return g.state
	}

	state, err := g.provider.RequestPermission(ctx)
	if err != nil {
		return g.probeLocked(ctx)
	}
	if state != PermissionUnrequested {
		g.state = state
	}
	return g.state
}

// probeLocked falls back to a direct single-shot read when the permission
// query mechanism itself fails. A successful read counts as a grant; a refusal
// as a denial; anything else marks the capability unavailable.
func (g *Gate) probeLocked(ctx context.Context) PermissionState {
	_, err := g.provider.Current(ctx, Options{Timeout: 5 * time.Second})
	switch {
	case err == nil:
		g.state = PermissionGranted
	case errors.Is(err, ErrPermissionDenied):
		g.state = PermissionDenied
	default:
		g.state = PermissionUnavailable
	}
	return g.state
}

func (g *Gate) onPermissionChange(state PermissionState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == PermissionUnavailable {
		return
	}
	if state == PermissionGranted || state == PermissionDenied || state == PermissionUnavailable {
		g.state = state
	}
}
