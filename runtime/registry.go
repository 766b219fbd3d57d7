package runtime

import (
	"sort"
	"sync"

	"linkup/contract"
	"linkup/domain"
)

// Registry is the presence map: at most one live session per user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]contract.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.UserID]contract.Session)}
}

// Register binds a user to a session. A newer connection for the same
// user replaces the previous one (last writer wins).
func (r *Registry) Register(userID domain.UserID, session contract.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = session
}

// Unregister removes the user whatever session is currently bound.
func (r *Registry) Unregister(userID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Release removes the user only if the bound session is still connectionID.
// A late disconnect from a replaced connection leaves the newer session online.
func (r *Registry) Release(userID domain.UserID, connectionID domain.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[userID]
	if !ok || current.ConnectionID != connectionID {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID domain.UserID) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Snapshot returns the online user IDs, sorted for stable broadcasts.
// It is never nil.
func (r *Registry) Snapshot() []domain.UserID {
	r.mu.RLock()
	ids := make([]domain.UserID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
