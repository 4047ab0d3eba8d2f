package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
)

// manualProvider lets tests push fixes and errors by hand. Like a real
// platform provider it notifies permission observers when a grant lands, so
// an attached gate sees the transition.
type manualProvider struct {
	mu        sync.Mutex
	state     geoloc.PermissionState
	observer  func(geoloc.PermissionState)
	onFix     func(geoloc.Fix)
	onErr     func(error)
	unwatched int
}

func (p *manualProvider) ObservePermission(fn func(geoloc.PermissionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = fn
}

func (p *manualProvider) CheckPermission(context.Context) (geoloc.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, nil
}

func (p *manualProvider) RequestPermission(context.Context) (geoloc.PermissionState, error) {
	p.mu.Lock()
	p.state = geoloc.PermissionGranted
	observer := p.observer
	p.mu.Unlock()

	if observer != nil {
		observer(geoloc.PermissionGranted)
	}
	return geoloc.PermissionGranted, nil
}

func (p *manualProvider) Current(context.Context, geoloc.Options) (geoloc.Fix, error) {
	return geoloc.Fix{}, geoloc.ErrPositionTimeout
}

func (p *manualProvider) Watch(_ geoloc.WatchOptions, onFix func(geoloc.Fix), onErr func(error)) (geoloc.WatchHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != geoloc.PermissionGranted {
		return 0, geoloc.ErrPermissionDenied
	}
	p.onFix = onFix
	p.onErr = onErr
	return 1, nil
}

func (p *manualProvider) Unwatch(geoloc.WatchHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unwatched++
}

func (p *manualProvider) push(fix geoloc.Fix) { p.onFix(fix) }
func (p *manualProvider) fail(err error)      { p.onErr(err) }

// gatedReporter blocks each Send until released and records what went out.
type gatedReporter struct {
	mu      sync.Mutex
	sends   []Report
	release chan struct{}
	err     error
}

func newGatedReporter(blocking bool) *gatedReporter {
	r := &gatedReporter{}
	if blocking {
		r.release = make(chan struct{})
	}
	return r
}

func (r *gatedReporter) Send(_ context.Context, report Report) error {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	r.sends = append(r.sends, report)
	err := r.err
	r.mu.Unlock()
	return err
}

func (r *gatedReporter) sent() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.sends))
	copy(out, r.sends)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func newTestSession(reporter Reporter) (*Session, *manualProvider) {
	p := &manualProvider{state: geoloc.PermissionUnrequested}
	gate := geoloc.NewGate(p)
	source := geoloc.NewSource(p, geoloc.DefaultProfiles()[0])
	return NewSession(gate, source, reporter, SessionConfig{}), p
}

func TestStartRequiresGrant(t *testing.T) {
	session, _ := newTestSession(newGatedReporter(false))
	if err := session.Start(time.Second, "task-1"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestProviderGrantUnblocksStart(t *testing.T) {
	// The gate observes the provider's grant; Start consults the gate, never
	// the provider directly.
	session, p := newTestSession(newGatedReporter(false))

	if err := session.Start(time.Second, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized before grant, got %v", err)
	}

	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start after grant: %v", err)
	}
	session.Stop()
}

func TestStartTwiceFails(t *testing.T) {
	session, p := newTestSession(newGatedReporter(false))
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, "task-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Start(time.Second, "task-1"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected active error, got %v", err)
	}
	session.Stop()
}

func TestGrantThenFirstFixReports(t *testing.T) {
	// End to end: grant, watch, first fix, exactly one POST with its payload.
	reporter := newGatedReporter(false)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, "task-7"); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Latitude: 41.0, Longitude: 29.0, Timestamp: 1000})
	waitFor(t, func() bool { return len(reporter.sent()) == 1 })

	sent := reporter.sent()[0]
	if sent.Latitude != 41.0 || sent.Longitude != 29.0 || sent.Timestamp != 1000 {
		t.Fatalf("unexpected payload: %+v", sent)
	}
	if sent.TaskID != "task-7" {
		t.Fatalf("missing task correlation: %+v", sent)
	}

	waitFor(t, func() bool { return session.Snapshot().SendCount == 1 })
	snap := session.Snapshot()
	if !snap.Active || snap.LastFix == nil || snap.LastFix.Timestamp != 1000 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestAtMostOneInFlightSupersedes(t *testing.T) {
	// Three fixes land while the first send is stuck on the wire. The middle
	// one must be superseded: two sends total, the second carrying the newest.
	reporter := newGatedReporter(true)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Latitude: 41.0, Longitude: 29.0, Timestamp: 1})
	p.push(geoloc.Fix{Latitude: 41.1, Longitude: 29.1, Timestamp: 2})
	p.push(geoloc.Fix{Latitude: 41.2, Longitude: 29.2, Timestamp: 3})

	reporter.release <- struct{}{} // finish send of T1
	reporter.release <- struct{}{} // finish send of the pending slot
	waitFor(t, func() bool { return len(reporter.sent()) == 2 })

	sent := reporter.sent()
	if sent[0].Timestamp != 1 {
		t.Fatalf("first send carried %d, want 1", sent[0].Timestamp)
	}
	if sent[1].Timestamp != 3 {
		t.Fatalf("second send carried %d, want 3 (superseded slot)", sent[1].Timestamp)
	}

	waitFor(t, func() bool { return session.Snapshot().SendCount == 2 })
	session.Stop()
}

func TestStopDropsPendingAndIgnoresInFlight(t *testing.T) {
	reporter := newGatedReporter(true)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Timestamp: 1})
	p.push(geoloc.Fix{Timestamp: 2}) // parked in the pending slot
	session.Stop()

	reporter.release <- struct{}{} // let the in-flight send finish
	time.Sleep(20 * time.Millisecond)

	if got := len(reporter.sent()); got != 1 {
		t.Fatalf("expected pending report dropped, got %d sends", got)
	}
	snap := session.Snapshot()
	if snap.Active {
		t.Fatalf("expected idle session")
	}
	// The in-flight completion arrived after the transition and is ignored.
	if snap.SendCount != 0 {
		t.Fatalf("stopped session counted a send: %+v", snap)
	}
	if p.unwatched == 0 {
		t.Fatalf("expected watch released")
	}
}

func TestCloseMakesCallbacksNoOps(t *testing.T) {
	reporter := newGatedReporter(false)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Close()

	p.push(geoloc.Fix{Latitude: 41.0, Timestamp: 5})
	p.fail(geoloc.ErrPositionTimeout)
	time.Sleep(20 * time.Millisecond)

	snap := session.Snapshot()
	if snap.LastFix != nil || snap.LastError != "" || len(reporter.sent()) != 0 {
		t.Fatalf("state mutated after teardown: %+v", snap)
	}
	if err := session.Start(time.Second, ""); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestTransientSendKeepsSessionActive(t *testing.T) {
	reporter := newGatedReporter(false)
	reporter.err = ErrTransientSend
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Timestamp: 1})
	waitFor(t, func() bool { return session.Snapshot().LastError == "transient_send" })

	snap := session.Snapshot()
	if !snap.Active || snap.SendCount != 0 {
		t.Fatalf("transient failure should not stop the session: %+v", snap)
	}

	// The next natural fix is the implicit retry; success clears the error.
	reporter.mu.Lock()
	reporter.err = nil
	reporter.mu.Unlock()
	p.push(geoloc.Fix{Timestamp: 2})
	waitFor(t, func() bool { return session.Snapshot().SendCount == 1 })
	if session.Snapshot().LastError != "" {
		t.Fatalf("expected error cleared after successful send")
	}
	session.Stop()
}

func TestAuthExpiredSurfacesButSessionStaysActive(t *testing.T) {
	reporter := newGatedReporter(false)
	reporter.err = ErrAuthExpired
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Timestamp: 1})
	waitFor(t, func() bool { return session.Snapshot().LastError == "auth_expired" })
	if !session.Snapshot().Active {
		t.Fatalf("auth expiry must not terminate the session")
	}
	session.Stop()
}

func TestTerminalWatchErrorStopsSession(t *testing.T) {
	reporter := newGatedReporter(false)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.fail(geoloc.ErrPermissionDenied)
	waitFor(t, func() bool { return !session.Snapshot().Active })
	if session.Snapshot().LastError != "permission_denied" {
		t.Fatalf("expected surfaced denial, got %q", session.Snapshot().LastError)
	}
}

func TestStaleFixDropped(t *testing.T) {
	reporter := newGatedReporter(false)
	session, p := newTestSession(reporter)
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	p.push(geoloc.Fix{Timestamp: 10})
	waitFor(t, func() bool { return len(reporter.sent()) == 1 })
	p.push(geoloc.Fix{Timestamp: 5})
	time.Sleep(20 * time.Millisecond)

	if len(reporter.sent()) != 1 {
		t.Fatalf("stale fix should not be reported")
	}
	session.Stop()
}

func TestBroadcastHookSeesEveryAcceptedFix(t *testing.T) {
	var mu sync.Mutex
	var seen []int64

	p := &manualProvider{state: geoloc.PermissionUnrequested}
	gate := geoloc.NewGate(p)
	source := geoloc.NewSource(p, geoloc.DefaultProfiles()[0])
	session := NewSession(gate, source, newGatedReporter(true), SessionConfig{
		Broadcast: func(_ string, fix geoloc.Fix) {
			mu.Lock()
			seen = append(seen, fix.Timestamp)
			mu.Unlock()
		},
	})
	p.RequestPermission(context.Background())

	if err := session.Start(time.Second, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Both fixes reach the live stream even though the second superseded the
	// first in the report slot.
	p.push(geoloc.Fix{Timestamp: 1})
	p.push(geoloc.Fix{Timestamp: 2})

	mu.Lock()
	got := len(seen)
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", got)
	}
	session.Close()
}

func TestKind(t *testing.T) {
	if Kind(nil) != "" {
		t.Fatalf("expected empty kind for nil")
	}
	if Kind(ErrAuthExpired) != "auth_expired" {
		t.Fatalf("unexpected kind")
	}
	if Kind(geoloc.ErrUnavailable) != "capability_unavailable" {
		t.Fatalf("unexpected kind")
	}
	if Kind(errors.New("other")) != "error" {
		t.Fatalf("unexpected kind")
	}
}
