// README: Trip session monitor; polls telemetry, drives the session lifecycle and forwards samples.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"drivesafe/internal/config"
	"drivesafe/internal/modules/session"
	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultIdleThreshold  = 5
	defaultEndTimeout     = 5 * time.Second
	defaultForwardTimeout = 5 * time.Second
	// storeTimeout bounds a single session store operation.
	storeTimeout = 2 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrPollInFlight   = errors.New("previous poll still in flight")
	ErrStopped        = errors.New("monitor stopped, poll result discarded")
)

type Source interface {
	Fetch(ctx context.Context) (telemetry.Sample, error)
}

type Forwarder interface {
	SendLive(ctx context.Context, sessionID types.ID, s telemetry.Sample) error
	EndSession(ctx context.Context, sessionID types.ID) error
}

// EndHook runs once per real transition to completed, after the end-session call.
type EndHook func(ctx context.Context, s session.Session) error

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithIDGenerator(f func() types.ID) Option {
	return func(m *Monitor) { m.newID = f }
}

func WithEndHooks(hooks ...EndHook) Option {
	return func(m *Monitor) { m.hooks = append(m.hooks, hooks...) }
}

// Status is the snapshot served to status readers.
type Status struct {
	Running          bool             `json:"running"`
	Online           bool             `json:"online"`
	Session          *session.Session `json:"session,omitempty"`
	Polls            int64            `json:"polls"`
	LastPollAt       *time.Time       `json:"lastPollAt,omitempty"`
	LastError        string           `json:"lastError,omitempty"`
	LastErrorKind    telemetry.Kind   `json:"lastErrorKind,omitempty"`
	LastForwardError string           `json:"lastForwardError,omitempty"`
	StaleCycles      int              `json:"staleCycles"`
}

type Monitor struct {
	source Source
	sink   Forwarder
	store  session.Store
	cfg    config.MonitorConfig
	now    func() time.Time
	newID  func() types.ID
	hooks  []EndHook

	polling atomic.Bool
	// gen changes on Start and Stop; a poll that started under another
	// generation does not apply its result.
	gen atomic.Uint64

	// bg tracks end-session calls started by Stop.
	bg sync.WaitGroup

	mu       sync.Mutex
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	current *session.Session
	lastFP  telemetry.Fingerprint
	hasFP   bool
	lastPos types.Point
	stale   int

	// lastEnded is never resumed, even if a stale active record still holds it.
	lastEnded types.ID

	offline    bool
	polls      int64
	lastPollAt time.Time
	lastErr    error
	forwardErr error
}

func New(source Source, sink Forwarder, store session.Store, cfg config.MonitorConfig, opts ...Option) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if cfg.EndTimeout <= 0 {
		cfg.EndTimeout = defaultEndTimeout
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = defaultForwardTimeout
	}
	// A forward may not outlive its tick, or later ticks are skipped.
	if cfg.ForwardTimeout > cfg.PollInterval {
		cfg.ForwardTimeout = cfg.PollInterval
	}
	m := &Monitor{
		source: source,
		sink:   sink,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() types.ID { return types.ID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resumes a persisted active session, if any, and begins polling every
// PollInterval until ctx is done or Stop is called. The first poll runs immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.stopped = false
	m.gen.Add(1)
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	done := m.loopDone
	m.mu.Unlock()

	m.resume()
	go m.loop(loopCtx, done)
	return nil
}

// Stop cancels polling and ends the active session, if any. Local state is
// cleaned up before Stop returns; the end-session call runs in the background.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.gen.Add(1)
	m.stopped = true
	m.running = false
	cancel, done := m.cancel, m.loopDone
	m.cancel, m.loopDone = nil, nil
	ended := m.endLocked(session.ReasonNormal)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if ended != nil {
		m.bg.Add(1)
		go func() {
			defer m.bg.Done()
			m.finish(context.Background(), *ended)
		}()
	}
}

// Wait blocks until end-session calls started by Stop have returned. Each is
// bounded by EndTimeout.
func (m *Monitor) Wait() {
	m.bg.Wait()
}

// EndSession ends the active session on request. It reports false when no
// session was active; remote failures are logged, never returned.
func (m *Monitor) EndSession(ctx context.Context) (session.Session, bool) {
	m.mu.Lock()
	ended := m.endLocked(session.ReasonNormal)
	m.mu.Unlock()
	if ended == nil {
		return session.Session{}, false
	}
	m.finish(ctx, *ended)
	return *ended, true
}

// Current returns a copy of the active session.
func (m *Monitor) Current() (*session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Active() {
		return nil, false
	}
	return m.current.Clone(), true
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		Running:     m.running,
		Online:      !m.offline,
		Polls:       m.polls,
		StaleCycles: m.stale,
	}
	if m.current.Active() {
		st.Session = m.current.Clone()
	}
	if !m.lastPollAt.IsZero() {
		t := m.lastPollAt
		st.LastPollAt = &t
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
		st.LastErrorKind = telemetry.Classify(m.lastErr)
	}
	if m.forwardErr != nil {
		st.LastForwardError = m.forwardErr.Error()
	}
	return st
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	go m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	err := m.Poll(ctx)
	if errors.Is(err, ErrPollInFlight) {
		log.Printf("monitor: previous poll still in flight, skipping tick")
	}
}

// outcome holds the network work decided under the lock and run after it.
type outcome struct {
	forwardID types.ID
	sample    telemetry.Sample
	forward   bool
	ended     *session.Session
}

// Poll runs one cycle: fetch, classify, advance the session, forward.
// Concurrent calls are not overlapped; the loser gets ErrPollInFlight.
// A fetch failure is returned after the offline transition is applied.
func (m *Monitor) Poll(ctx context.Context) error {
	if !m.polling.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer m.polling.Store(false)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	gen := m.gen.Load()
	m.mu.Unlock()

	sample, fetchErr := m.source.Fetch(ctx)

	m.mu.Lock()
	if m.stopped || m.gen.Load() != gen {
		m.mu.Unlock()
		return ErrStopped
	}
	m.polls++
	m.lastPollAt = m.now()
	var out outcome
	if fetchErr != nil {
		out = m.onFetchErrorLocked(fetchErr)
	} else {
		out = m.onSampleLocked(sample)
	}
	m.mu.Unlock()

	if out.forward {
		fctx, cancel := context.WithTimeout(ctx, m.cfg.ForwardTimeout)
		err := m.sink.SendLive(fctx, out.forwardID, out.sample)
		cancel()
		if err != nil {
			log.Printf("monitor: forward sample for session %s: %v", out.forwardID, err)
		}
		m.mu.Lock()
		m.forwardErr = err
		m.mu.Unlock()
	}
	if out.ended != nil {
		m.finish(ctx, *out.ended)
	}
	return fetchErr
}

func (m *Monitor) onFetchErrorLocked(err error) outcome {
	m.lastErr = err
	m.hasFP = false
	if !m.offline {
		m.offline = true
		log.Printf("monitor: telemetry source offline (%s): %v", telemetry.Classify(err), err)
	}
	return outcome{ended: m.endLocked(session.ReasonOffline)}
}

func (m *Monitor) onSampleLocked(s telemetry.Sample) outcome {
	if m.offline {
		m.offline = false
		log.Printf("monitor: telemetry source back online")
	}
	m.lastErr = nil

	fp := s.Fingerprint()
	unchanged := m.hasFP && fp == m.lastFP
	m.lastFP, m.hasFP = fp, true
	moving := s.Moving()

	if !m.current.Active() {
		if !moving {
			m.stale = 0
			return outcome{}
		}
		m.beginLocked(s)
		return m.acceptLocked(s)
	}

	if unchanged && s.Speed == 0 {
		m.stale++
	} else {
		m.stale = 0
	}
	if !moving {
		if m.stale >= m.cfg.IdleThreshold {
			return outcome{ended: m.endLocked(session.ReasonNormal)}
		}
		return outcome{}
	}
	return m.acceptLocked(s)
}

// beginLocked makes a session current, resuming an active record left in the
// store (e.g. by a previous process) before minting a new id.
func (m *Monitor) beginLocked(s telemetry.Sample) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	now := m.now()
	if rec, err := m.store.Get(ctx); err == nil && rec.Active() && rec.ID != m.lastEnded {
		m.current = rec
		log.Printf("monitor: resumed session %s from store", rec.ID)
	} else {
		m.current = &session.Session{
			ID:           m.newID(),
			Status:       session.StatusActive,
			CreatedAt:    now,
			LastActivity: now,
		}
		log.Printf("monitor: started session %s", m.current.ID)
	}
	if m.current.VehicleID == "" {
		m.current.VehicleID = s.VehicleID
	}
	m.stale = 0
	m.lastPos = types.Point{}
}

// acceptLocked records a forwarded sample on the current session and persists it.
func (m *Monitor) acceptLocked(s telemetry.Sample) outcome {
	cur := m.current
	cur.LastActivity = m.now()
	cur.Samples++
	cur.DistanceKm += telemetry.LegKm(m.lastPos, s.Position)
	if !s.Position.IsZero() {
		m.lastPos = s.Position
	}
	if cur.VehicleID == "" {
		cur.VehicleID = s.VehicleID
	}
	_ = m.persistLocked(cur)
	return outcome{forward: true, forwardID: cur.ID, sample: s}
}

// endLocked completes the current session and clears the in-memory flag
// before any network call, so a second caller sees no active session.
// It returns nil when there was nothing to end.
func (m *Monitor) endLocked(reason session.Reason) *session.Session {
	if !m.current.Active() {
		return nil
	}
	done, err := m.current.Complete(m.now(), reason)
	m.current = nil
	m.lastEnded = done.ID
	m.stale = 0
	m.hasFP = false
	m.lastPos = types.Point{}
	if err != nil {
		return nil
	}
	if reason == session.ReasonOffline {
		log.Printf("monitor: session %s ended, source offline", done.ID)
	} else {
		log.Printf("monitor: session %s ended", done.ID)
	}
	if err := m.persistLocked(&done); err != nil {
		// The store may still hold the active record; drop it rather than
		// leave a finished trip looking active.
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := m.store.Clear(ctx); err != nil {
			log.Printf("monitor: clear session %s after failed write: %v", done.ID, err)
		}
		cancel()
		return &done
	}
	m.scheduleClearLocked(done.ID)
	return &done
}

func (m *Monitor) persistLocked(s *session.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := m.store.Set(ctx, s)
	if err != nil {
		log.Printf("monitor: persist session %s: %v", s.ID, err)
	}
	return err
}

// scheduleClearLocked removes the completed record after the grace delay
// unless a newer session has replaced it.
func (m *Monitor) scheduleClearLocked(id types.ID) {
	if m.cfg.GraceDelay <= 0 {
		m.clearLocked(id)
		return
	}
	time.AfterFunc(m.cfg.GraceDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clearLocked(id)
	})
}

func (m *Monitor) clearLocked(id types.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rec, err := m.store.Get(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			log.Printf("monitor: read session before clear: %v", err)
		}
		return
	}
	if rec.ID != id || rec.Status != session.StatusCompleted {
		return
	}
	if err := m.store.Clear(ctx); err != nil {
		log.Printf("monitor: clear session %s: %v", id, err)
	}
}

// finish notifies the backend and runs end hooks. Failures are logged only.
func (m *Monitor) finish(ctx context.Context, s session.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.EndTimeout)
	defer cancel()
	if err := m.sink.EndSession(ctx, s.ID); err != nil {
		log.Printf("monitor: end session %s: %v", s.ID, err)
	}
	for _, h := range m.hooks {
		if err := h(ctx, s); err != nil {
			log.Printf("monitor: end hook for session %s: %v", s.ID, err)
		}
	}
}

func (m *Monitor) resume() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rec, err := m.store.Get(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("monitor: read persisted session: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case rec.Active() && !m.current.Active():
		m.current = rec
		log.Printf("monitor: resumed session %s", rec.ID)
	case rec.Status == session.StatusCompleted:
		m.scheduleClearLocked(rec.ID)
	}
}
