package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry tracks which live connections belong to which user. A
// user's group exists only as the current mapping contents; it is
// never persisted.
type Registry interface {
	// Admit adds the connection to the user's group. Admitting the
	// same connection twice is a no-op.
	Admit(userID string, conn Conn)

	// Remove drops the connection from whichever group holds it.
	// Safe to call for connections that were never admitted.
	Remove(conn Conn)

	// MembersOf returns a snapshot of the user's live connections.
	MembersOf(userID string) []Conn
}

type registryImpl struct {
	logger zerolog.Logger

	mu     sync.RWMutex
	groups map[string]map[Conn]struct{}
	owners map[Conn]string
}

func NewRegistry(logger zerolog.Logger) Registry {
	return &registryImpl{
		logger: logger,
		groups: make(map[string]map[Conn]struct{}),
		owners: make(map[Conn]string),
	}
}

func (r *registryImpl) Admit(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[userID]
	if !ok {
		group = make(map[Conn]struct{})
		r.groups[userID] = group
	}
	if _, ok = group[conn]; ok {
		return
	}

	group[conn] = struct{}{}
	r.owners[conn] = userID
	r.logger.Debug().
		Str("user_id", userID).
		Int("connections", len(group)).
		Msg("admitted connection")
}

func (r *registryImpl) Remove(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[conn]
	if !ok {
		return
	}
	delete(r.owners, conn)

	group := r.groups[userID]
	delete(group, conn)
	if len(group) == 0 {
		delete(r.groups, userID)
	}
	r.logger.Debug().
		Str("user_id", userID).
		Int("connections", len(group)).
		Msg("removed connection")
}

func (r *registryImpl) MembersOf(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[userID]
	members := make([]Conn, 0, len(group))
	for conn := range group {
		members = append(members, conn)
	}
	return members
}
