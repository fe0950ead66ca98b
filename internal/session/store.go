package session

import (
	"context"
	"sync"
	"time"
)

// State is the conversation position of one user.
type State string

const (
	StateIdle                State = "idle"
	StateAwaitingTopic       State = "awaiting_topic"
	StateAwaitingVoiceSample State = "awaiting_voice_sample"
	StateAwaitingVoiceTopic  State = "awaiting_voice_topic"
	StateAwaitingPhoto       State = "awaiting_photo"
	StateAwaitingPhotoTopic  State = "awaiting_photo_topic"
)

// Data keys for artifacts collected across turns of one workflow.
const (
	DataVoiceSamplePath = "voiceSamplePath"
	DataPhotoPath       = "photoPath"
)

// Session is the per-user conversational state. Copies are handed out; the
// store owns the canonical value.
type Session struct {
	UserID         string
	State          State
	Data           map[string]string
	Rev            int64
	LastActivityAt time.Time
}

type entry struct {
	// turnMu serializes workflow steps for one user. Held for the whole
	// handling of an inbound event, including blocking client calls.
	turnMu sync.Mutex
	mu     sync.Mutex
	s      Session
}

// Store maps user identity to a conversation session. Sessions are ephemeral;
// loss on restart is acceptable.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	idleTimeout time.Duration
	onEvict     func(Session)
}

func NewStore(idleTimeout time.Duration) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	return &Store{
		entries:     make(map[string]*entry),
		idleTimeout: idleTimeout,
	}
}

// SetEvictHook registers a callback invoked with a copy of every session the
// janitor resets. The hook runs outside store locks.
func (st *Store) SetEvictHook(hook func(Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.onEvict = hook
}

func (st *Store) entryFor(userID string) *entry {
	st.mu.RLock()
	e, ok := st.entries[userID]
	st.mu.RUnlock()
	if ok {
		return e
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok = st.entries[userID]; ok {
		return e
	}
	e = &entry{s: Session{
		UserID:         userID,
		State:          StateIdle,
		LastActivityAt: time.Now().UTC(),
	}}
	st.entries[userID] = e
	return e
}

// Dispatch runs fn while holding the user's turn lock, so a second event for
// the same user cannot start until the previous step finished updating the
// session. Different users proceed independently.
func (st *Store) Dispatch(userID string, fn func()) {
	e := st.entryFor(userID)
	e.turnMu.Lock()
	defer e.turnMu.Unlock()
	fn()
}

// Get returns a copy of the user's session, creating an idle one if absent.
func (st *Store) Get(userID string) Session {
	e := st.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSession(e.s)
}

// Update mutates the session under its lock and refreshes activity.
func (st *Store) Update(userID string, fn func(*Session)) Session {
	e := st.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.s)
	e.s.LastActivityAt = time.Now().UTC()
	return cloneSession(e.s)
}

// ApplyIf mutates the session only when its revision still matches rev,
// reporting whether the mutation was applied. Stale results from abandoned or
// evicted steps are discarded this way.
func (st *Store) ApplyIf(userID string, rev int64, fn func(*Session)) bool {
	e := st.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Rev != rev {
		return false
	}
	fn(&e.s)
	e.s.LastActivityAt = time.Now().UTC()
	return true
}

// Clear resets the session to idle, drops collected data and bumps the
// revision so in-flight results are discarded.
func (st *Store) Clear(userID string) Session {
	e := st.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	resetLocked(&e.s)
	return cloneSession(e.s)
}

// ActiveCount reports how many sessions are currently inside a workflow.
func (st *Store) ActiveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	count := 0
	for _, e := range st.entries {
		e.mu.Lock()
		if e.s.State != StateIdle {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// StartJanitor evicts sessions stuck mid-workflow past the idle timeout.
func (st *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.evictStale()
			}
		}
	}()
}

func (st *Store) evictStale() {
	now := time.Now().UTC()

	st.mu.RLock()
	entries := make([]*entry, 0, len(st.entries))
	for _, e := range st.entries {
		entries = append(entries, e)
	}
	hook := st.onEvict
	st.mu.RUnlock()

	var evicted []Session
	for _, e := range entries {
		e.mu.Lock()
		if e.s.State != StateIdle && now.Sub(e.s.LastActivityAt) >= st.idleTimeout {
			evicted = append(evicted, cloneSession(e.s))
			resetLocked(&e.s)
		}
		e.mu.Unlock()
	}

	if hook != nil {
		for _, s := range evicted {
			hook(s)
		}
	}
}

func resetLocked(s *Session) {
	s.State = StateIdle
	s.Data = nil
	s.Rev++
	s.LastActivityAt = time.Now().UTC()
}

func cloneSession(s Session) Session {
	c := s
	if s.Data != nil {
		c.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			c.Data[k] = v
		}
	}
	return c
}
