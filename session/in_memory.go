package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
)

// Options configures an InMemoryStore.
type Options struct {
	// MaxTurns bounds the stored turn history per session; the oldest turns
	// are dropped first. Zero keeps every turn.
	MaxTurns int
	Logger   logging.Logger
}

type entry struct {
	mu    sync.Mutex
	ctx   core.ConversationContext
	ended bool // set under mu once the entry has left the map
}

// InMemoryStore is a volatile core.ContextStore keeping one conversation
// context per session in a process local map. The map lock only guards
// membership; turns are serialized by a per-session mutex so sessions never
// contend with each other. Returned contexts are snapshots; the report
// itself is shared by reference.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	opts     Options
	logger   logging.Logger
	now      func() time.Time
}

// NewInMemoryStore constructs an empty in-memory context store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions: make(map[string]*entry),
		opts:     opts,
		logger:   logging.ForComponent(opts.Logger, "session"),
		now:      time.Now,
	}
}

// Put stores report for sessionID, creating the context on first use. A
// later Put replaces the report and starts a fresh turn history.
func (s *InMemoryStore) Put(sessionID string, report *core.Report) error {
	if sessionID == "" {
		return fmt.Errorf("session: session id is required")
	}
	if report == nil {
		return fmt.Errorf("session: report is required")
	}

	now := s.now()

	for {
		s.mu.Lock()
		e, ok := s.sessions[sessionID]
		if !ok {
			e = &entry{ctx: core.ConversationContext{SessionID: sessionID, Created: now}}
			s.sessions[sessionID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if e.ended {
			// Deleted between lookup and lock; retry with a fresh entry.
			e.mu.Unlock()
			s.mu.Lock()
			if s.sessions[sessionID] == e {
				delete(s.sessions, sessionID)
			}
			s.mu.Unlock()
			continue
		}
		e.ctx.Report = report
		e.ctx.Turns = nil
		e.ctx.Updated = now
		e.mu.Unlock()

		s.logger.Debug("session.report.stored", "session_id", sessionID, "created", !ok, "subject", report.SubjectName)
		return nil
	}
}

// Get returns a snapshot of the session's context.
func (s *InMemoryStore) Get(sessionID string) (*core.ConversationContext, bool) {
	e, ok := s.lookup(sessionID)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return nil, false
	}
	snap := e.ctx
	snap.Turns = append([]core.Turn(nil), e.ctx.Turns...)
	return &snap, true
}

// AppendTurn records an answered question. Appends on the same session are
// serialized and applied in lock acquisition order. An append racing with
// Delete either lands before the session ends or fails with
// core.ErrSessionNotFound.
func (s *InMemoryStore) AppendTurn(sessionID, question, answer string) error {
	e, ok := s.lookup(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	now := s.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	e.ctx.Turns = append(e.ctx.Turns, core.Turn{Question: question, Answer: answer, AskedAt: now})
	if limit := s.opts.MaxTurns; limit > 0 && len(e.ctx.Turns) > limit {
		e.ctx.Turns = append([]core.Turn(nil), e.ctx.Turns[len(e.ctx.Turns)-limit:]...)
	}
	e.ctx.Updated = now
	return nil
}

// Delete ends the session.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	e.mu.Lock()
	e.ended = true
	e.mu.Unlock()

	s.logger.Debug("session.ended", "session_id", sessionID)
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) lookup(sessionID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	return e, ok
}
