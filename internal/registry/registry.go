// Package registry tracks the live mailbox sessions so that they can all be
// logged out when the process stops.
package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/receiver"
)

// Registry maps a mailbox address to its currently open session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*receiver.Session
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*receiver.Session),
		logger:   logger,
	}
}

// Register records s as the live session for address, replacing any
// previous entry.
func (r *Registry) Register(address string, s *receiver.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[address]; ok && prev != s {
		r.logger.Warn("replacing live session", zap.String("mailbox", address))
	}
	r.sessions[address] = s
}

// Unregister removes the entry for address if there is one.
func (r *Registry) Unregister(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, address)
}

// Has reports whether address has a live session.
func (r *Registry) Has(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[address]
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Addresses returns the addresses with live sessions, sorted.
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for addr := range r.sessions {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// DrainAndClose logs out every registered session and empties the registry.
// Logout failures are logged and do not stop the drain. It returns the
// number of sessions it attempted to log out.
func (r *Registry) DrainAndClose() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempted := 0
	for addr, s := range r.sessions {
		attempted++
		if err := s.Logout(); err != nil {
			r.logger.Warn("logout failed during shutdown", zap.String("mailbox", addr), zap.Error(err))
			continue
		}
		r.logger.Info("logged out", zap.String("mailbox", addr))
	}
	clear(r.sessions)
	r.logger.Info("mail sessions drained", zap.Int("sessions", attempted))
	return attempted
}
