package chat

import (
	"sync"
)

// PresenceRegistry maps a user to the set of currently-open connections
// and derives online/offline from the set size. All reads and writes of
// a user's connection set happen under one lock, so concurrent connects
// and disconnects of the same user can never lose an update.
//
// The registry itself does not broadcast; it reports the 0->1 and 1->0
// transitions and the server decides what to emit. That keeps the
// invariant in one place: exactly one user-online per 0->1, exactly one
// user-offline per N->0, nothing in between.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // user -> conn_id -> client
	byConn map[string]*Client            // conn_id -> client
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// Register adds the connection. first is true only on the user's 0->1
// transition; online is a snapshot of everyone online at that moment,
// the new user included, for the one-time presence-snapshot frame.
func (r *PresenceRegistry) Register(c *Client) (first bool, online []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.byUser[c.UserID]
	if m == nil {
		m = make(map[string]*Client)
		r.byUser[c.UserID] = m
		first = true
	}
	m[c.ConnID] = c
	r.byConn[c.ConnID] = c

	online = make([]string, 0, len(r.byUser))
	for user := range r.byUser {
		online = append(online, user)
	}
	return first, online
}

// Unregister removes the connection. last is true only on the user's
// 1->0 transition. Removing a connection that is not registered is a
// no-op, which absorbs duplicate disconnect events.
func (r *PresenceRegistry) Unregister(c *Client) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[c.ConnID]; !ok {
		return false
	}
	delete(r.byConn, c.ConnID)

	m := r.byUser[c.UserID]
	if m == nil {
		return false
	}
	delete(m, c.ConnID)
	if len(m) == 0 {
		// entry is deleted, not zeroed; this transition alone
		// triggers the offline broadcast
		delete(r.byUser, c.UserID)
		return true
	}
	return false
}

func (r *PresenceRegistry) IsOnline(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user]) > 0
}

// ClientsOf lists the user's live connections.
func (r *PresenceRegistry) ClientsOf(user string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[user]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// AllClients lists every live connection on this gateway.
func (r *PresenceRegistry) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}

// AllClientsExcept lists every connection not owned by the given user.
func (r *PresenceRegistry) AllClientsExcept(user string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		if c.UserID != user {
			out = append(out, c)
		}
	}
	return out
}

func (r *PresenceRegistry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for user := range r.byUser {
		out = append(out, user)
	}
	return out
}
