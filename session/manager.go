// Package session issues visitor session ids and records their lifecycle.
//
// A session lives for a fixed window measured from its creation. The
// pointer to the current session (id, start, sampling decision) is kept
// client side through a Store; the durable record is written through a
// Recorder without blocking the caller.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nmafoods/api/models"
	"nmafoods/api/utils"
)

const (
	DefaultWindow       = 30 * time.Minute
	DefaultWriteTimeout = 10 * time.Second
)

// State is what a visitor carries between requests.
type State struct {
	ID      string
	Start   time.Time
	Sampled bool
}

// Store reads and writes the visitor's State. Implementations are
// per-visitor: a cookie jar for browsers, MemoryStore for tests and
// server-side callers.
type Store interface {
	Load() (State, bool)
	Save(State)
}

// Recorder persists session records.
type Recorder interface {
	CreateSession(ctx context.Context, s *models.Session) error
	EndSession(ctx context.Context, end models.SessionEnd) error
}

// Sampler decides whether a new session takes part in performance sampling.
type Sampler interface {
	Sample() bool
}

// Visit is the request context a new session record is created from.
type Visit struct {
	UserID    string
	EntryPage string
	Referrer  string
	UserAgent string
	UTM       models.UTM
}

type Manager struct {
	recorder     Recorder
	sampler      Sampler
	window       time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time

	wg sync.WaitGroup
}

type Option func(*Manager)

func WithWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithSampler(s Sampler) Option {
	return func(m *Manager) { m.sampler = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(recorder Recorder, opts ...Option) *Manager {
	m := &Manager{
		recorder:     recorder,
		window:       DefaultWindow,
		writeTimeout: DefaultWriteTimeout,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreateSessionID returns the visitor's session id, minting a new one
// when the stored session is missing, older than the window or starts in the
// future.
func (m *Manager) GetOrCreateSessionID(st Store, v Visit) string {
	state, _ := m.GetOrCreate(st, v)
	return state.ID
}

// GetOrCreate is GetOrCreateSessionID returning the full State and whether
// it was created by this call. Creating a session saves it to st and starts
// the create-session write in the background.
func (m *Manager) GetOrCreate(st Store, v Visit) (State, bool) {
	now := m.now()
	if cur, ok := st.Load(); ok && cur.ID != "" && !cur.Start.After(now) && now.Sub(cur.Start) < m.window {
		return cur, false
	}

	state := State{
		ID:    utils.GenerateSessionID(now),
		Start: now,
	}
	if m.sampler != nil {
		state.Sampled = m.sampler.Sample()
	}
	st.Save(state)

	device := utils.ParseUserAgent(v.UserAgent)
	record := &models.Session{
		SessionID:  state.ID,
		UserID:     v.UserID,
		EntryPage:  v.EntryPage,
		Referrer:   v.Referrer,
		DeviceType: device.DeviceType,
		Browser:    device.Browser,
		OS:         device.OS,
		UserAgent:  v.UserAgent,
		UTM:        v.UTM,
		StartTime:  now,
	}
	m.async("create", state.ID, func(ctx context.Context) error {
		return m.recorder.CreateSession(ctx, record)
	})

	return state, true
}

// EndSession records the unload update for the visitor's current session.
// It reports false when the visitor has no session.
func (m *Manager) EndSession(st Store, exitPage string) (models.SessionEnd, bool) {
	cur, ok := st.Load()
	if !ok || cur.ID == "" {
		return models.SessionEnd{}, false
	}

	now := m.now()
	end := models.SessionEnd{
		SessionID:       cur.ID,
		EndTime:         now,
		DurationSeconds: int64(max(now.Sub(cur.Start), 0) / time.Second),
		ExitPage:        exitPage,
	}
	m.async("end", cur.ID, func(ctx context.Context) error {
		return m.recorder.EndSession(ctx, end)
	})
	return end, true
}

func (m *Manager) async(op, id string, write func(context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			m.log.Error().Err(err).Str("op", op).Str("session_id", id).Msg("session write failed")
		}
	}()
}

// Close waits for in-flight session writes or for ctx to expire.
func (m *Manager) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MemoryStore holds one visitor's State in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	set   bool
}

func (s *MemoryStore) Load() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.set
}

func (s *MemoryStore) Save(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.set = true
}
