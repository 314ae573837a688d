package upload

import (
	"sync"
	"time"

	"github.com/molpadia/molpaupload/internal/domain/entity"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Tracker maps upload identifiers to their durably committed byte counts.
// It is the only owner of session state; callers receive copies.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*entity.Session
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
	}
}

// Get the committed bytes of the upload, 0 for an unknown identifier.
func (t *Tracker) Get(id string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.sessions[id]; ok {
		return s.Committed
	}
	return 0
}

// Set the committed bytes of the upload. A smaller value replaces a larger
// one, so a size verified on disk always wins over a stale count.
func (t *Tracker) Set(id string, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session(id)
	s.Committed = n
	s.UpdatedAt = t.now()
}

// Remove the session of the upload.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Begin marks the upload as being written to the given sink.
func (t *Tracker) Begin(id, sinkPath, contentType string, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session(id)
	s.Status = entity.SessionStatusInProgress
	s.SinkPath = sinkPath
	s.ContentType = contentType
	if total >= 0 {
		s.TotalSize = total
	}
	s.UpdatedAt = t.now()
}

// Interrupt records the verified on-disk size of an upload whose source ended prematurely.
func (t *Tracker) Interrupt(id string, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session(id)
	s.Committed = n
	s.Status = entity.SessionStatusInterrupted
	s.UpdatedAt = t.now()
}

// Idle marks the upload as waiting for its next chunk.
func (t *Tracker) Idle(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok {
		s.Status = entity.SessionStatusIdle
		s.UpdatedAt = t.now()
	}
}

// Session returns a copy of the session state.
func (t *Tracker) Session(id string) (entity.Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return entity.Session{}, false
	}
	return *s, true
}

// Sessions returns copies of all sessions ordered by identifier.
func (t *Tracker) Sessions() []entity.Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := maps.Keys(t.sessions)
	slices.Sort(ids)
	out := make([]entity.Session, 0, len(ids))
	for _, id := range ids {
		out = append(out, *t.sessions[id])
	}
	return out
}

// Expire removes the sessions not updated within ttl, skipping the ones for
// which keep returns true, and returns what was removed.
func (t *Tracker) Expire(ttl time.Duration, keep func(id string) bool) []entity.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-ttl)
	var expired []entity.Session
	for id, s := range t.sessions {
		if s.UpdatedAt.After(cutoff) || (keep != nil && keep(id)) {
			continue
		}
		expired = append(expired, *s)
		delete(t.sessions, id)
	}
	return expired
}

func (t *Tracker) session(id string) *entity.Session {
	s, ok := t.sessions[id]
	if !ok {
		s = entity.NewSession(id)
		t.sessions[id] = s
	}
	return s
}
