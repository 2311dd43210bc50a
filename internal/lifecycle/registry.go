package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/Ayush-autviz/skin-sub000/internal/metrics"
	"github.com/Ayush-autviz/skin-sub000/internal/provider"
	"github.com/google/uuid"
)

// Registry owns the active sessions and the single "currently selected"
// handle observers read from. At most one session exists per photo id;
// opening a session for an id that already has one closes the predecessor
// first, so a late response for the superseded session can never apply.
// The selected handle is cleared as part of any delete, before the delete
// call returns.
type Registry struct {
	cfg    Config
	prov   provider.Provider
	store  Store
	clock  Clock
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	selected uuid.UUID
}

// NewRegistry creates a session registry with shared dependencies.
func NewRegistry(cfg Config, prov provider.Provider, store Store, clock Clock, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		prov:     prov,
		store:    store,
		clock:    clock,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open starts a session for the given photo and selects it. Any existing
// session for the same id is closed (cancelled, not deleted) first.
func (r *Registry) Open(params Params) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := params.Record.ID
	if prev, ok := r.sessions[id]; ok {
		prev.Close()
		delete(r.sessions, id)
		metrics.ActiveSessions.Dec()
	}

	s, err := newSession(r.cfg, r.prov, r.store, r.clock, r.logger, params, r.detach)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = s
	r.selected = id
	metrics.ActiveSessions.Inc()
	return s, nil
}

// Get returns the session for a photo id, if one is active.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Selected returns the currently selected session, if any.
func (r *Registry) Selected() (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == uuid.Nil {
		return nil, false
	}
	s, ok := r.sessions[r.selected]
	return s, ok
}

// detach removes a session and clears the selected handle if it pointed at
// it. Sessions call this from their delete path before the store delete
// runs, so no observer is left holding a reference to a removed record.
func (r *Registry) detach(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	if r.selected == id {
		r.selected = uuid.Nil
	}
	metrics.ActiveSessions.Dec()
}

// Close cancels the session for a photo id without deleting the record
// (the screen-unmount trigger).
func (r *Registry) Close(id uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		if r.selected == id {
			r.selected = uuid.Nil
		}
		metrics.ActiveSessions.Dec()
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// CloseAll cancels every active session. Used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[uuid.UUID]*Session)
	r.selected = uuid.Nil
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
