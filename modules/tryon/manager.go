package tryon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published to session subscribers
const (
	EventSessionState   = "session_state"
	EventSessionDeleted = "session_deleted"
)

// Notifier - receives every saved transition
type Notifier interface {
	Publish(sessionID, eventType string, payload any)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, string, any) {}

// Metrics - operation counters since start
type Metrics struct {
	SessionsCreated   int64     `json:"sessionsCreated"`
	SessionsExpired   int64     `json:"sessionsExpired"`
	TryOnsStarted     int64     `json:"tryOnsStarted"`
	TryOnsSucceeded   int64     `json:"tryOnsSucceeded"`
	TryOnsFailed      int64     `json:"tryOnsFailed"`
	UpscalesStarted   int64     `json:"upscalesStarted"`
	UpscalesSucceeded int64     `json:"upscalesSucceeded"`
	UpscalesFailed    int64     `json:"upscalesFailed"`
	StaleCompletions  int64     `json:"staleCompletions"`
	ExamplesLoaded    int64     `json:"examplesLoaded"`
	StartTime         time.Time `json:"startTime"`
}

type counters struct {
	sessionsCreated   atomic.Int64
	sessionsExpired   atomic.Int64
	tryOnsStarted     atomic.Int64
	tryOnsSucceeded   atomic.Int64
	tryOnsFailed      atomic.Int64
	upscalesStarted   atomic.Int64
	upscalesSucceeded atomic.Int64
	upscalesFailed    atomic.Int64
	staleCompletions  atomic.Int64
	examplesLoaded    atomic.Int64
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Manager - runs the session state machine over a Store. Each transition holds the
// session lock; external calls run between Begin and Complete without it.
type Manager struct {
	store    Store
	gen      Generator
	examples *Examples
	notifier Notifier
	log      *zap.Logger

	now   func() time.Time
	newID func() string

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	metrics   counters
	startTime time.Time
}

func NewManager(store Store, gen Generator, examples *Examples, notifier Notifier, log *zap.Logger) *Manager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Manager{
		store:     store,
		gen:       gen,
		examples:  examples,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		locks:     make(map[string]*sessionLock),
		startTime: time.Now(),
	}
}

// Examples - the bundled example table
func (m *Manager) Examples() *Examples {
	return m.examples
}

func (m *Manager) lock(id string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}

// update - load, mutate, save when changed, publish. fn's error is returned with the state.
func (m *Manager) update(ctx context.Context, id string, fn func(s *State) (bool, error)) (*State, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, fnErr := fn(s)
	if changed {
		if err := m.store.Save(ctx, s); err != nil {
			return nil, fmt.Errorf("save session %s: %w", id, err)
		}
		m.notifier.Publish(id, EventSessionState, NewSnapshot(s))
	}
	return s, fnErr
}

// Create - new idle session
func (m *Manager) Create(ctx context.Context) (*State, error) {
	s := newState(m.newID(), m.now())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save new session: %w", err)
	}
	m.metrics.sessionsCreated.Add(1)
	m.log.Info("✅ [TryOn] Session created", zap.String("session", s.ID))
	return s, nil
}

// Get - current state
func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	return m.store.Load(ctx, id)
}

// Delete - drop the session; in-flight completions for it are discarded
func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.notifier.Publish(id, EventSessionDeleted, map[string]string{"id": id})
	m.log.Info("🗑️ [TryOn] Session deleted", zap.String("session", id))
	return nil
}

// SetInput - supersede the artifact in slot
func (m *Manager) SetInput(ctx context.Context, id string, slot Slot, a *Artifact) (*State, error) {
	return m.update(ctx, id, func(s *State) (bool, error) {
		s.setInput(slot, a, m.now())
		m.log.Info("📷 [TryOn] Input set",
			zap.String("session", id), zap.String("slot", string(slot)),
			zap.String("name", a.Name), zap.String("mimeType", a.MIMEType),
			zap.Int("width", a.Width), zap.Int("height", a.Height))
		return true, nil
	})
}

// Input - artifact in slot
func (m *Manager) Input(ctx context.Context, id string, slot Slot) (*Artifact, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	a := s.Input(slot)
	if a == nil {
		return nil, NewValidationError(CodeNoInput, fmt.Sprintf("No %s image has been uploaded.", slot), nil)
	}
	return a, nil
}

// Result - current result
func (m *Manager) Result(ctx context.Context, id string) (*Result, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Result == nil {
		return nil, ErrNoResult
	}
	return s.Result, nil
}

// BeginTryOn - enter Generating and hand back the job to run
func (m *Manager) BeginTryOn(ctx context.Context, id string) (*Job, *State, error) {
	var job *Job
	s, err := m.update(ctx, id, func(s *State) (bool, error) {
		j, e := s.beginTryOn(m.now())
		if e != nil {
			// busy leaves the state untouched; missing inputs is recorded
			return !errors.Is(e, ErrBusy), e
		}
		job = j
		return true, nil
	})
	if job != nil {
		m.metrics.tryOnsStarted.Add(1)
		m.log.Info("🚀 [TryOn] Try-on started", zap.String("session", id), zap.Uint64("token", job.Token))
	}
	return job, s, err
}

// BeginUpscale - enter Upscaling; nil job when there is nothing to do
func (m *Manager) BeginUpscale(ctx context.Context, id string) (*Job, *State, error) {
	var job *Job
	s, err := m.update(ctx, id, func(s *State) (bool, error) {
		job = s.beginUpscale(m.now())
		return job != nil, nil
	})
	if job != nil {
		m.metrics.upscalesStarted.Add(1)
		m.log.Info("🚀 [TryOn] Upscale started", zap.String("session", id), zap.Uint64("token", job.Token))
	}
	return job, s, err
}

// Run - perform job's external call and complete it. The returned error is the
// classified call failure, if any; the state reflects whether it was applied.
func (m *Manager) Run(ctx context.Context, job *Job) (*State, error) {
	var (
		img *Image
		err error
	)
	switch job.Op {
	case OpUpscale:
		img, err = m.gen.Upscale(ctx, job.Source)
	default:
		img, err = m.gen.GenerateTryOn(ctx, job.Person, job.Outfit)
	}

	failure := AsError(err, job.Op)
	s, applied, saveErr := m.Complete(ctx, job, img, failure)
	if saveErr != nil {
		return nil, saveErr
	}
	if !applied {
		return s, nil
	}
	if failure != nil {
		return s, failure
	}
	return s, nil
}

// Complete - apply a finished job unless its token is stale
func (m *Manager) Complete(ctx context.Context, job *Job, img *Image, failure *Error) (*State, bool, error) {
	if failure == nil && img == nil {
		failure = noImageError(job.Op, "generator returned nothing")
	}

	applied := false
	s, err := m.update(ctx, job.SessionID, func(s *State) (bool, error) {
		now := m.now()
		if job.Op == OpUpscale {
			applied = s.completeUpscale(job.Token, img, failure, now)
		} else {
			applied = s.completeTryOn(job.Token, img, failure, now)
		}
		return applied, nil
	})
	if errors.Is(err, ErrSessionNotFound) {
		m.metrics.staleCompletions.Add(1)
		m.log.Warn("🗑️ [TryOn] Completion for a removed session discarded",
			zap.String("session", job.SessionID), zap.String("operation", string(job.Op)))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !applied {
		m.metrics.staleCompletions.Add(1)
		m.log.Warn("🗑️ [TryOn] Stale completion discarded",
			zap.String("session", job.SessionID),
			zap.String("operation", string(job.Op)),
			zap.Uint64("token", job.Token))
		return s, false, nil
	}

	m.countCompletion(job.Op, failure)
	if failure != nil {
		m.log.Warn("❌ [TryOn] Operation failed",
			zap.String("session", job.SessionID),
			zap.String("operation", string(job.Op)),
			zap.String("kind", string(failure.Kind)),
			zap.String("code", failure.Code),
			zap.NamedError("cause", failure.Err))
	} else {
		m.log.Info("✅ [TryOn] Operation succeeded",
			zap.String("session", job.SessionID),
			zap.String("operation", string(job.Op)),
			zap.Int("bytes", len(img.Data)))
	}
	return s, true, nil
}

func (m *Manager) countCompletion(op Operation, failure *Error) {
	switch {
	case op == OpUpscale && failure != nil:
		m.metrics.upscalesFailed.Add(1)
	case op == OpUpscale:
		m.metrics.upscalesSucceeded.Add(1)
	case failure != nil:
		m.metrics.tryOnsFailed.Add(1)
	default:
		m.metrics.tryOnsSucceeded.Add(1)
	}
}

// TryOn - BeginTryOn and Run in one call
func (m *Manager) TryOn(ctx context.Context, id string) (*State, error) {
	job, s, err := m.BeginTryOn(ctx, id)
	if err != nil {
		return s, err
	}
	return m.Run(ctx, job)
}

// Upscale - BeginUpscale and Run in one call; a no-op returns the unchanged state
func (m *Manager) Upscale(ctx context.Context, id string) (*State, error) {
	job, s, err := m.BeginUpscale(ctx, id)
	if err != nil || job == nil {
		return s, err
	}
	return m.Run(ctx, job)
}

// Reset - empty idle state from any state
func (m *Manager) Reset(ctx context.Context, id string) (*State, error) {
	return m.update(ctx, id, func(s *State) (bool, error) {
		s.reset(m.now())
		m.log.Info("🔄 [TryOn] Session reset", zap.String("session", id))
		return true, nil
	})
}

// LoadExample - reset, then fill both inputs from example exampleID or neither
func (m *Manager) LoadExample(ctx context.Context, id string, exampleID int) (*State, error) {
	return m.update(ctx, id, func(s *State) (bool, error) {
		now := m.now()
		s.reset(now)

		person, outfit, err := m.examples.Decode(exampleID)
		if err != nil {
			e := AsError(err, "")
			s.fail(e, now)
			m.log.Warn("⚠️ [TryOn] Example load failed",
				zap.String("session", id), zap.Int("example", exampleID), zap.Error(err))
			return true, e
		}

		s.setInput(SlotPerson, person, now)
		s.setInput(SlotOutfit, outfit, now)
		m.metrics.examplesLoaded.Add(1)
		m.log.Info("📦 [TryOn] Example loaded", zap.String("session", id), zap.Int("example", exampleID))
		return true, nil
	})
}

// Metrics - counter snapshot
func (m *Manager) Metrics() Metrics {
	return Metrics{
		SessionsCreated:   m.metrics.sessionsCreated.Load(),
		SessionsExpired:   m.metrics.sessionsExpired.Load(),
		TryOnsStarted:     m.metrics.tryOnsStarted.Load(),
		TryOnsSucceeded:   m.metrics.tryOnsSucceeded.Load(),
		TryOnsFailed:      m.metrics.tryOnsFailed.Load(),
		UpscalesStarted:   m.metrics.upscalesStarted.Load(),
		UpscalesSucceeded: m.metrics.upscalesSucceeded.Load(),
		UpscalesFailed:    m.metrics.upscalesFailed.Load(),
		StaleCompletions:  m.metrics.staleCompletions.Load(),
		ExamplesLoaded:    m.metrics.examplesLoaded.Load(),
		StartTime:         m.startTime,
	}
}

// Cleanup - sweep expired sessions when the store needs it
func (m *Manager) Cleanup(ctx context.Context) int {
	sweeper, ok := m.store.(Sweeper)
	if !ok {
		return 0
	}
	cleaned := sweeper.Sweep(ctx)
	if cleaned > 0 {
		m.metrics.sessionsExpired.Add(int64(cleaned))
		m.log.Info("🧹 [TryOn] Cleaned up expired sessions", zap.Int("count", cleaned))
	}
	return cleaned
}

// StartCleanupRoutine - periodic Cleanup until ctx is done
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(ctx)
			}
		}
	}()
	m.log.Info("🔄 [TryOn] Started session cleanup routine", zap.Duration("interval", interval))
}
