package tracking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mertsyildirim/tasiapp-last-sub003/internal/geoloc"
	"github.com/mertsyildirim/tasiapp-last-sub003/internal/shared/geo"
)

// SessionConfig carries the host-supplied knobs for a Session.
type SessionConfig struct {
	// Platform tag attached to every report ("driver-app" by default).
	Platform string
	// SendTimeout bounds a single report transmission.
	SendTimeout time.Duration
	// Broadcast, when set, receives every accepted fix (live stream hook).
	Broadcast func(sessionID string, fix geoloc.Fix)
}

// Session owns one host context's continuous-tracking lifecycle: it opens a
// watch on the position source, keeps the last known fix for UI consumers and
// reports fixes to the backend with an at-most-one-in-flight discipline.
//
// While a report is being transmitted, newer fixes supersede each other in a
// single pending slot. Superseded fixes are dropped on purpose: only the
// latest position matters for live tracking, and the single slot keeps sends
// ordered under slow networks.
type Session struct {
	mu       sync.Mutex
	gate     *geoloc.Gate
	source   *geoloc.Source
	reporter Reporter
	cfg      SessionConfig

	id        string
	alive     bool
	active    bool
	watch     *geoloc.Watch
	taskID    string
	startedAt time.Time
	sendCount int
	lastErr   error
	lastFix   *geoloc.Fix
	pending   *geoloc.Fix
	inflight  bool
	distanceM float64
}

// Snapshot is the session state exposed to the host UI.
type Snapshot struct {
	SessionID string      `json:"session_id,omitempty"`
	Active    bool        `json:"active"`
	TaskID    string      `json:"task_id,omitempty"`
	SendCount int         `json:"send_count"`
	LastFix   *geoloc.Fix `json:"last_fix,omitempty"`
	LastError string      `json:"last_error,omitempty"`
	DistanceM float64     `json:"distance_m"`
	StartedAt time.Time   `json:"started_at,omitempty"`
}

func NewSession(gate *geoloc.Gate, source *geoloc.Source, reporter Reporter, cfg SessionConfig) *Session {
	if cfg.Platform == "" {
		cfg.Platform = "driver-app"
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &Session{gate: gate, source: source, reporter: reporter, cfg: cfg, alive: true}
}

// Start begins a new continuous-tracking run. It requires a permission grant
// and fails with ErrSessionActive while a run is already going.
func (s *Session) Start(reportInterval time.Duration, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive {
		return ErrSessionClosed
	}
	if s.active {
		return ErrSessionActive
	}
	if s.gate.State() != geoloc.PermissionGranted {
		return ErrNotAuthorized
	}

	watch, err := s.source.Watch(reportInterval, s.handleFix, s.handleWatchErr)
	if err != nil {
		if errors.Is(err, geoloc.ErrPermissionDenied) {
			return ErrNotAuthorized
		}
		return err
	}

	s.id = uuid.NewString()
	s.watch = watch
	s.taskID = taskID
	s.startedAt = time.Now()
	s.active = true
	s.sendCount = 0
	s.lastErr = nil
	s.lastFix = nil
	s.pending = nil
	s.inflight = false
	s.distanceM = 0
	return nil
}

// Stop ends the current run. A report already in flight may still complete on
// the wire but no longer touches session state, and a pending report is
// dropped. Safe to call when idle.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close is the host-teardown hook. After it returns, no callback from the
// position source or a late send completion mutates any state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if !s.active {
		return
	}
	s.active = false
	s.pending = nil
	if s.watch != nil {
		s.watch.Stop()
		s.watch = nil
	}
}

// Snapshot returns the current state for display.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID: s.id,
		Active:    s.active,
		TaskID:    s.taskID,
		SendCount: s.sendCount,
		LastError: Kind(s.lastErr),
		DistanceM: s.distanceM,
		StartedAt: s.startedAt,
	}
	if s.lastFix != nil {
		fix := *s.lastFix
		snap.LastFix = &fix
	}
	return snap
}

func (s *Session) handleFix(fix geoloc.Fix) {
	s.mu.Lock()
	if !s.alive || !s.active {
		s.mu.Unlock()
		return
	}
	// Fix timestamps are non-decreasing within a watch; drop anything older
	// than what we already hold so reports never go backwards.
	if s.lastFix != nil && fix.Timestamp < s.lastFix.Timestamp {
		s.mu.Unlock()
		return
	}

	if s.lastFix != nil {
		s.distanceM += geo.HaversineKm(s.lastFix.Latitude, s.lastFix.Longitude, fix.Latitude, fix.Longitude) * 1000
	}
	cp := fix
	s.lastFix = &cp

	if s.inflight {
		s.pending = &cp
	} else {
		s.inflight = true
		go s.send(cp, s.id)
	}

	id := s.id
	broadcast := s.cfg.Broadcast
	s.mu.Unlock()

	if broadcast != nil {
		broadcast(id, fix)
	}
}

func (s *Session) handleWatchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive || !s.active {
		return
	}

	s.lastErr = err
	if errors.Is(err, geoloc.ErrPermissionDenied) || errors.Is(err, geoloc.ErrUnavailable) {
		log.Printf("tracking watch ended: %v", err)
		s.stopLocked()
		return
	}
	log.Printf("tracking read failed, watch continues: %v", err)
}

// send transmits one report and then drains the pending slot. Only one send
// goroutine exists at a time; the chain hand-off keeps reports in fix order.
func (s *Session) send(fix geoloc.Fix, runID string) {
	s.mu.Lock()
	if !s.alive || s.id != runID {
		s.mu.Unlock()
		return
	}
	taskID, platform := s.taskID, s.cfg.Platform
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	err := s.reporter.Send(ctx, buildReport(fix, taskID, platform))
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	// A send that outlived its run (teardown, stop/start cycle) no longer
	// owns the slot and must not touch state.
	if !s.alive || s.id != runID {
		return
	}
	// A session that stopped while this report was on the wire ignores the
	// outcome entirely; it already transitioned.
	if s.active {
		if err != nil {
			s.lastErr = err
			log.Printf("report send failed: %v", err)
		} else {
			s.sendCount++
			s.lastErr = nil
		}
	}

	next := s.pending
	s.pending = nil
	if next != nil && s.active {
		go s.send(*next, runID)
		return
	}
	s.inflight = false
}
