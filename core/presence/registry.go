package presence

import (
	"sync"
	"time"

	"github.com/kasuku/mwelekeo/core"
)

// Registry tracks which users are currently online. A user counts as
// online while heartbeats keep arriving within the TTL; silence past the
// TTL drops them on the next sweep.
type Registry struct {
	mu   sync.RWMutex
	seen map[string]time.Time
	ttl  time.Duration
	done chan struct{}
}

func NewRegistry(ttl time.Duration) *Registry {
	reg := &Registry{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go reg.sweep()
	return reg
}

// Heartbeat marks userID as online now.
func (reg *Registry) Heartbeat(userID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.seen[userID] = core.NowFunc()
}

// Disconnect drops userID immediately, without waiting for the TTL.
func (reg *Registry) Disconnect(userID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.seen, userID)
}

// IsOnline reports whether userID has sent a heartbeat within the TTL.
func (reg *Registry) IsOnline(userID string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	at, ok := reg.seen[userID]
	return ok && core.NowFunc().Sub(at) <= reg.ttl
}

// Count returns how many users are online right now.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	now := core.NowFunc()
	var n int
	for _, at := range reg.seen {
		if now.Sub(at) <= reg.ttl {
			n++
		}
	}
	return n
}

// Online returns the IDs of all users online right now.
func (reg *Registry) Online() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	now := core.NowFunc()
	ids := make([]string, 0, len(reg.seen))
	for id, at := range reg.seen {
		if now.Sub(at) <= reg.ttl {
			ids = append(ids, id)
		}
	}
	return ids
}

func (reg *Registry) Close() {
	close(reg.done)
}

func (reg *Registry) sweep() {
	ticker := time.NewTicker(reg.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-reg.done:
			return
		case <-ticker.C:
			now := core.NowFunc()
			reg.mu.Lock()
			for id, at := range reg.seen {
				if now.Sub(at) > reg.ttl {
					delete(reg.seen, id)
				}
			}
			reg.mu.Unlock()
		}
	}
}
