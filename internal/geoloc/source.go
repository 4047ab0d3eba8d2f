package geoloc

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Source produces fixes from a Provider, hiding whether the underlying
// mechanism is single-shot or continuous. Read options come from the active
// accuracy profile unless overridden per call.
type Source struct {
	provider Provider
	profile  Profile
}

func NewSource(provider Provider, profile Profile) *Source {
	return &Source{provider: provider, profile: profile}
}

// Profile returns the accuracy profile this source reads with.
func (s *Source) Profile() Profile {
	return s.profile
}

// Once reads a single fix with a bounded timeout.
func (s *Source) Once(ctx context.Context) (Fix, error) {
	opts := s.profile.readOptions()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	fix, err := s.provider.Current(ctx, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Fix{}, ErrPositionTimeout
		}
		return Fix{}, err
	}
	return fix, nil
}

// Watch delivers fixes until Stop is called or a terminal error occurs.
// interval is advisory; zero means the profile's interval.
//
// A permission denial ends the watch and is reported once through onErr.
// Transient read failures are reported through onErr and watching continues.
func (s *Source) Watch(interval time.Duration, onFix func(Fix), onErr func(error)) (*Watch, error) {
	opts := WatchOptions{Options: s.profile.readOptions(), Interval: interval}
	if opts.Interval <= 0 {
		opts.Interval = s.profile.interval()
	}

	w := &Watch{provider: s.provider}

	handle, err := s.provider.Watch(opts,
		func(fix Fix) {
			w.mu.Lock()
			stopped := w.stopped
			w.mu.Unlock()
			if stopped {
				return
			}
			onFix(fix)
		},
		func(err error) {
			w.mu.Lock()
			stopped := w.stopped
			w.mu.Unlock()
			if stopped {
				return
			}
			if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnavailable) {
				w.Stop()
			}
			onErr(err)
		},
	)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.handle = handle
	if w.stopped {
		// Stop raced the provider call; release immediately.
		s.provider.Unwatch(handle)
	}
	w.mu.Unlock()
	return w, nil
}

// Watch is one open delivery of fixes. Stop is idempotent and safe after the
// producing context is gone; once it returns, no further callbacks fire.
type Watch struct {
	mu       sync.Mutex
	provider Provider
	handle   WatchHandle
	stopped  bool
}

func (w *Watch) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	handle := w.handle
	w.mu.Unlock()

	w.provider.Unwatch(handle)
}
